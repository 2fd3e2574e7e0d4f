package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/ledgercore/internal/domain"
)

// LockerOptions configures the distributed mutexes.
type LockerOptions struct {
	// Expiry bounds how long a crashed holder can keep a key.
	Expiry      time.Duration
	RetryDelay  time.Duration
	DriftFactor float64
}

// DefaultLockerOptions returns defaults suited to short ledger sections.
func DefaultLockerOptions() LockerOptions {
	return LockerOptions{
		Expiry:      10 * time.Second,
		RetryDelay:  20 * time.Millisecond,
		DriftFactor: 0.01,
	}
}

// Locker implements usecase.Locker with one redsync mutex per key, so
// exclusive sections hold across service instances.
type Locker struct {
	rs     *redsync.Redsync
	opts   LockerOptions
	prefix string
	logger zerolog.Logger
}

// NewLocker creates a new Locker.
func NewLocker(client *redis.Client, opts LockerOptions, logger zerolog.Logger) *Locker {
	return &Locker{
		rs:     redsync.New(goredis.NewPool(client)),
		opts:   opts,
		prefix: "lock:",
		logger: logger,
	}
}

// Acquire takes every key in order, retrying until ctx ends.
func (l *Locker) Acquire(ctx context.Context, keys []string) (func(), error) {
	held := make([]*redsync.Mutex, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			// A fresh context so that a cancelled caller still unlocks.
			unlockCtx, cancel := context.WithTimeout(context.Background(), l.opts.Expiry)
			if ok, err := held[i].UnlockContext(unlockCtx); !ok || err != nil {
				l.logger.Warn().Err(err).Str("key", held[i].Name()).Msg("failed to release lock")
			}
			cancel()
		}
		held = held[:0]
	}

	for _, key := range keys {
		mutex := l.rs.NewMutex(
			l.prefix+key,
			redsync.WithExpiry(l.opts.Expiry),
			redsync.WithTries(tries(ctx, l.opts.RetryDelay)),
			redsync.WithRetryDelay(l.opts.RetryDelay),
			redsync.WithDriftFactor(l.opts.DriftFactor),
		)
		if err := mutex.LockContext(ctx); err != nil {
			release()
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrLockTimeout, key, err)
		}
		held = append(held, mutex)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

// tries spreads the remaining time of ctx over retry attempts.
func tries(ctx context.Context, delay time.Duration) int {
	deadline, ok := ctx.Deadline()
	if !ok || delay <= 0 {
		return 32
	}
	n := int(time.Until(deadline)/delay) + 1
	if n < 1 {
		return 1
	}
	return n
}
