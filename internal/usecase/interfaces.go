package usecase

import (
	"context"
	"iter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
)

// EntityRepository defines data access for entities.
type EntityRepository interface {
	Create(ctx context.Context, tx Tx, entity *domain.Entity) error
	GetByID(ctx context.Context, id string) (*domain.Entity, error)
	GetByCode(ctx context.Context, code string) (*domain.Entity, error)
	// GetByIDs reads entities inside tx without locking them.
	GetByIDs(ctx context.Context, tx Tx, ids []string) ([]*domain.Entity, error)
	// GetByIDsForUpdate reads and row-locks entities in ascending ID order.
	GetByIDsForUpdate(ctx context.Context, tx Tx, ids []string) ([]*domain.Entity, error)
	// UpdateBalance stores the cached balance and bumps the version. It fails
	// with domain.ErrConflict when the stored version is not expectedVersion.
	UpdateBalance(ctx context.Context, tx Tx, id string, balance decimal.NullDecimal, expectedVersion int64, updatedAt time.Time) error
	UpdateCode(ctx context.Context, tx Tx, id string, code *string, updatedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.Entity, error)
}

// TransactionRepository defines data access for the transaction log.
type TransactionRepository interface {
	// Append adds a transaction to the log. It fails with domain.ErrDuplicateRef
	// when another non-cancelled transaction holds the same RefNo.
	Append(ctx context.Context, tx Tx, t *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	GetActiveByRef(ctx context.Context, refNo string) (*domain.Transaction, error)
	GetByCorrectionOf(ctx context.Context, originalID string) (*domain.Transaction, error)
	// UpdateStatus persists t.Status, UpdatedAt and FinalizedAt, provided the
	// stored status is still from. Otherwise it fails with domain.ErrConflict.
	UpdateStatus(ctx context.Context, tx Tx, t *domain.Transaction, from domain.Status) error
	// UpdateDraft persists Type and Amount of a transaction still in draft.
	UpdateDraft(ctx context.Context, tx Tx, t *domain.Transaction) error
	// SumFinal returns the signed sum of the entity's final transactions. A nil
	// tx reads outside any transaction.
	SumFinal(ctx context.Context, tx Tx, entityID string) (decimal.Decimal, error)
	// Query lazily yields matching transactions ordered by CreatedAt. The
	// sequence can be ranged over more than once.
	Query(ctx context.Context, q domain.TransactionQuery) iter.Seq2[*domain.Transaction, error]
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Tx, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// Tx represents a storage transaction.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxManager handles transaction lifecycle.
type TxManager interface {
	Begin(ctx context.Context) (Tx, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Delete frees a key so the request can be retried.
	Delete(ctx context.Context, key string) error
}

// RefRegistry holds short-lived RefNo reservations shared by every instance
// of the service. The transaction log stays authoritative; a reservation
// only rejects concurrent duplicates before they reach storage.
type RefRegistry interface {
	// Reserve claims refNo for owner. It returns false when someone else holds it.
	Reserve(ctx context.Context, refNo, owner string, ttl time.Duration) (bool, error)
	// Release drops the reservation if owner still holds it.
	Release(ctx context.Context, refNo, owner string) error
}

// Locker grants exclusive access to a set of keys.
type Locker interface {
	// Acquire blocks until every key is held or ctx ends, in which case it
	// returns domain.ErrLockTimeout and holds nothing. Keys are taken in the
	// order given.
	Acquire(ctx context.Context, keys []string) (release func(), err error)
}

// Retrier re-runs operations that failed with a retryable error.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}
