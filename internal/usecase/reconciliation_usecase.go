package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
)

// EntityRebuilder recomputes one entity's value from the log.
type EntityRebuilder interface {
	Rebuild(ctx context.Context, entityRef string) (*domain.RebuildResult, error)
}

// ReconciliationUseCase handles balance reconciliation operations
type ReconciliationUseCase struct {
	entityRepo EntityRepository
	rebuilder  EntityRebuilder
	batchSize  int
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(entityRepo EntityRepository, rebuilder EntityRebuilder) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		entityRepo: entityRepo,
		rebuilder:  rebuilder,
		batchSize:  ReconcileBatchSize,
	}
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	LastChecked       time.Time
	RecordedBalance   decimal.NullDecimal
	EntityID          string
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	IsReconciled      bool
}

// ReconcileEntity rebuilds one entity and reports whether its cached value
// matches the log.
func (uc *ReconciliationUseCase) ReconcileEntity(ctx context.Context, entityRef string) (*ReconciliationResult, error) {
	rebuilt, err := uc.rebuilder.Rebuild(ctx, entityRef)
	if err != nil {
		return nil, err
	}

	return &ReconciliationResult{
		EntityID:          rebuilt.EntityID,
		RecordedBalance:   rebuilt.Cached,
		CalculatedBalance: rebuilt.Value,
		Difference:        rebuilt.Drift(),
		IsReconciled:      !rebuilt.DriftDetected,
		LastChecked:       rebuilt.CheckedAt,
	}, nil
}

// ReconcileAllEntities reconciles every entity, page by page.
func (uc *ReconciliationUseCase) ReconcileAllEntities(ctx context.Context) ([]*ReconciliationResult, error) {
	var results []*ReconciliationResult

	for offset := 0; ; offset += uc.batchSize {
		entities, err := uc.entityRepo.List(ctx, uc.batchSize, offset)
		if err != nil {
			return nil, err
		}

		for _, entity := range entities {
			result, err := uc.ReconcileEntity(ctx, entity.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to reconcile entity %s: %w", entity.ID, err)
			}
			results = append(results, result)
		}

		if len(entities) < uc.batchSize {
			return results, nil
		}
	}
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	CheckedAt          time.Time
	Discrepancies      []*ReconciliationResult
	TotalEntities      int
	ReconciledEntities int
}

// Err returns domain.ErrIntegrityDrift when any entity drifted.
func (r *ReconciliationReport) Err() error {
	if len(r.Discrepancies) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d entities", domain.ErrIntegrityDrift, len(r.Discrepancies), r.TotalEntities)
}

// GenerateReconciliationReport generates a comprehensive reconciliation report
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context) (*ReconciliationReport, error) {
	results, err := uc.ReconcileAllEntities(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		TotalEntities: len(results),
		Discrepancies: make([]*ReconciliationResult, 0),
		CheckedAt:     time.Now().UTC(),
	}

	for _, result := range results {
		if result.IsReconciled {
			report.ReconciledEntities++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}

	return report, nil
}
