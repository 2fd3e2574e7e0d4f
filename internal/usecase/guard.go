package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
)

// IdempotencyGuard rejects a submission whose RefNo is already held by a
// non-cancelled transaction.
//
// The log enforces uniqueness on append, so two racing submitters cannot both
// succeed. The optional registry makes the loser fail before it touches
// storage, across every instance sharing the registry.
type IdempotencyGuard struct {
	txRepo   TransactionRepository
	registry RefRegistry
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	ttl      time.Duration
}

// NewIdempotencyGuard creates an IdempotencyGuard. registry may be nil.
func NewIdempotencyGuard(
	txRepo TransactionRepository,
	registry RefRegistry,
	ttl time.Duration,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = DefaultRefReservationTTL
	}
	return &IdempotencyGuard{
		txRepo:   txRepo,
		registry: registry,
		metrics:  m,
		logger:   logger,
		ttl:      ttl,
	}
}

// Reservation is an admitted RefNo. Release it when the submission fails or
// the transaction is cancelled.
type Reservation struct {
	guard *IdempotencyGuard
	refNo string
	owner string
}

// Release gives the RefNo back.
func (r *Reservation) Release(ctx context.Context) {
	if r == nil {
		return
	}
	r.guard.Release(ctx, r.refNo, r.owner)
}

// Register admits refNo for the transaction owner on entityID, or fails with
// domain.ErrDuplicateRef.
func (g *IdempotencyGuard) Register(ctx context.Context, refNo, entityID, owner string) (*Reservation, error) {
	if err := domain.ValidateRefNo(refNo); err != nil {
		return nil, err
	}

	existing, err := g.txRepo.GetActiveByRef(ctx, refNo)
	switch {
	case err == nil:
		g.rejected()
		return nil, fmt.Errorf("%w: %q is held by transaction %s", domain.ErrDuplicateRef, refNo, existing.ID)
	case !errors.Is(err, domain.ErrTransactionNotFound):
		return nil, err
	}

	if g.registry != nil {
		ok, err := g.registry.Reserve(ctx, refNo, owner, g.ttl)
		if err != nil {
			// The log still rejects duplicates on append.
			g.logger.Warn().Err(err).Str("ref_no", refNo).Msg("ref registry unavailable")
		} else if !ok {
			g.rejected()
			return nil, fmt.Errorf("%w: %q is being submitted concurrently", domain.ErrDuplicateRef, refNo)
		}
	}

	g.logger.Debug().Str("ref_no", refNo).Str("entity_id", entityID).Msg("ref admitted")

	return &Reservation{guard: g, refNo: refNo, owner: owner}, nil
}

// Release drops owner's reservation of refNo.
func (g *IdempotencyGuard) Release(ctx context.Context, refNo, owner string) {
	if g.registry == nil {
		return
	}
	if err := g.registry.Release(ctx, refNo, owner); err != nil {
		g.logger.Warn().Err(err).Str("ref_no", refNo).Msg("failed to release ref reservation")
	}
}

// Observe counts a duplicate detected past the guard, at append time.
func (g *IdempotencyGuard) Observe(err error) {
	if errors.Is(err, domain.ErrDuplicateRef) {
		g.rejected()
	}
}

func (g *IdempotencyGuard) rejected() {
	if g.metrics != nil {
		g.metrics.DuplicateRefs.Inc()
	}
}
