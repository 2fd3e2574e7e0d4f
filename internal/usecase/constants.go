package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultLockAcquireTimeout bounds the wait for an exclusive entity section.
	DefaultLockAcquireTimeout = 2 * time.Second

	// DefaultLockHoldTimeout bounds the work done inside a section, including
	// the commit.
	DefaultLockHoldTimeout = 5 * time.Second

	// DefaultRefReservationTTL is how long a RefNo reservation outlives a
	// crashed submitter.
	DefaultRefReservationTTL = 30 * time.Second

	// DefaultResolverCacheTTL is how long a code -> ID mapping is cached.
	DefaultResolverCacheTTL = 5 * time.Minute

	// IdempotencyKeyTTL is how long replayable HTTP responses are kept when
	// no TTL is configured.
	IdempotencyKeyTTL = 24 * time.Hour

	// ReconcileBatchSize is the page size used when walking every entity.
	ReconcileBatchSize = 500
)
