// Package retry re-runs operations that lost a race for an entity.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
)

// Config bounds retries.
type Config struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      5,
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     1 * time.Second,
		MaxElapsedTime:  10 * time.Second,
	}
}

// Retrier implements usecase.Retrier with exponential backoff. Only
// domain.ErrConflict and domain.ErrLockTimeout are retried; everything else
// surfaces on the first attempt.
type Retrier struct {
	logger  zerolog.Logger
	metrics *metrics.Metrics
	cfg     Config
}

// New creates a Retrier. m may be nil.
func New(cfg Config, logger zerolog.Logger, m *metrics.Metrics) *Retrier {
	return &Retrier{
		logger:  logger,
		metrics: m,
		cfg:     cfg,
	}
}

// Retry executes an operation with exponential backoff on retryable errors.
// Each attempt re-runs the whole operation, so it re-reads whatever state
// its preconditions depend on.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval
	b.MaxElapsedTime = r.cfg.MaxElapsedTime

	retryCount := 0

	return backoff.Retry(func() error {
		err := operation()
		if err == nil {
			return nil
		}

		if !domain.IsRetryable(err) {
			return backoff.Permanent(err)
		}

		retryCount++
		if retryCount > r.cfg.MaxRetries {
			return backoff.Permanent(err)
		}

		if r.metrics != nil {
			r.metrics.Retries.WithLabelValues(cause(err)).Inc()
		}
		r.logger.Warn().
			Err(err).
			Int("retry", retryCount).
			Msg("retryable ledger error, retrying")

		return err
	}, backoff.WithContext(b, ctx))
}

func cause(err error) string {
	if errors.Is(err, domain.ErrLockTimeout) {
		return "lock_timeout"
	}
	return "conflict"
}
