package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
)

// BalanceEngine derives entity values from the transaction log.
type BalanceEngine struct {
	entityRepo EntityRepository
	txRepo     TransactionRepository
	mode       domain.BalanceMode
}

// NewBalanceEngine creates a BalanceEngine for mode.
func NewBalanceEngine(mode domain.BalanceMode, entityRepo EntityRepository, txRepo TransactionRepository) *BalanceEngine {
	return &BalanceEngine{
		entityRepo: entityRepo,
		txRepo:     txRepo,
		mode:       mode,
	}
}

// Mode returns the configured balance mode.
func (e *BalanceEngine) Mode() domain.BalanceMode {
	return e.mode
}

// Compute returns the entity's current value. In running mode this is the
// cached balance; an entity without a cache falls back to the log.
func (e *BalanceEngine) Compute(ctx context.Context, tx Tx, entity *domain.Entity) (decimal.Decimal, error) {
	if e.mode == domain.BalanceModeRunning && entity.CachedBalance.Valid {
		return entity.CachedBalance.Decimal, nil
	}
	return e.txRepo.SumFinal(ctx, tx, entity.ID)
}

// Apply adds delta to the entity's value inside s and returns the new value.
// When enforceLimit is set, a negative delta that would take an entity
// without AllowNegative below zero is rejected.
//
// Apply must run before the finalizing write of the transaction carrying
// delta, so realtime sums do not count it twice.
func (e *BalanceEngine) Apply(
	ctx context.Context,
	s *Section,
	entityID string,
	delta decimal.Decimal,
	enforceLimit bool,
	now time.Time,
) (decimal.Decimal, error) {
	entity := s.Entity(entityID)
	if entity == nil {
		return decimal.Zero, fmt.Errorf("%w: %s is outside the section", domain.ErrEntityNotFound, entityID)
	}

	current, err := e.Compute(ctx, s.Tx, entity)
	if err != nil {
		return decimal.Zero, err
	}

	next := current.Add(delta)
	if enforceLimit && delta.IsNegative() {
		if err := entity.ValidateResult(next); err != nil {
			return decimal.Zero, err
		}
	}

	var cached decimal.NullDecimal
	if e.mode == domain.BalanceModeRunning {
		cached = decimal.NewNullDecimal(next)
	}

	if err := e.entityRepo.UpdateBalance(ctx, s.Tx, entity.ID, cached, entity.Version, now); err != nil {
		return decimal.Zero, err
	}

	entity.CachedBalance = cached
	entity.Version++
	entity.UpdatedAt = now

	return next, nil
}

// Rebuild recomputes the entity's value from the log and compares it with the
// cached one. Drift is reported, never written back.
func (e *BalanceEngine) Rebuild(ctx context.Context, s *Section, entityID string) (*domain.RebuildResult, error) {
	entity := s.Entity(entityID)
	if entity == nil {
		return nil, fmt.Errorf("%w: %s is outside the section", domain.ErrEntityNotFound, entityID)
	}

	value, err := e.txRepo.SumFinal(ctx, s.Tx, entityID)
	if err != nil {
		return nil, err
	}

	// The sum and the snapshot must describe the same version.
	current, err := e.entityRepo.GetByIDs(ctx, s.Tx, []string{entityID})
	if err != nil {
		return nil, err
	}
	if len(current) != 1 || current[0].Version != entity.Version {
		return nil, fmt.Errorf("%w: entity %s changed during rebuild", domain.ErrConflict, entityID)
	}

	result := &domain.RebuildResult{
		EntityID:  entityID,
		Value:     value,
		CheckedAt: time.Now().UTC(),
	}
	if e.mode == domain.BalanceModeRunning {
		result.Cached = entity.CachedBalance
		result.DriftDetected = entity.CachedBalance.Valid && !entity.CachedBalance.Decimal.Equal(value)
	}

	return result, nil
}
