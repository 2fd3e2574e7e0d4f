package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/postgres/generated"
	"github.com/iho/ledgercore/internal/usecase"
)

// EntityRepository implements usecase.EntityRepository.
type EntityRepository struct {
	queries *generated.Queries
}

// NewEntityRepository creates a new EntityRepository. db is usually a
// *pgxpool.Pool.
func NewEntityRepository(db generated.DBTX) *EntityRepository {
	return &EntityRepository{queries: generated.New(db)}
}

// Create creates a new entity.
func (r *EntityRepository) Create(ctx context.Context, tx usecase.Tx, entity *domain.Entity) error {
	queries, err := queriesFor(tx)
	if err != nil {
		return err
	}

	err = queries.CreateEntity(ctx, generated.CreateEntityParams{
		ID:            entity.ID,
		Code:          stringPtrToText(entity.Code),
		Kind:          string(entity.Kind),
		AllowNegative: entity.AllowNegative,
		CachedBalance: nullDecimalToNumeric(entity.CachedBalance),
		Version:       entity.Version,
		CreatedAt:     timeToPgTimestamptz(entity.CreatedAt),
		UpdatedAt:     timeToPgTimestamptz(entity.UpdatedAt),
	})

	return mapError(err)
}

// GetByID retrieves an entity by ID.
func (r *EntityRepository) GetByID(ctx context.Context, id string) (*domain.Entity, error) {
	row, err := r.queries.GetEntityByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntityNotFound
		}

		return nil, mapError(err)
	}

	return rowToEntity(row), nil
}

// GetByCode retrieves an entity by its current code.
func (r *EntityRepository) GetByCode(ctx context.Context, code string) (*domain.Entity, error) {
	row, err := r.queries.GetEntityByCode(ctx, stringPtrToText(&code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntityNotFound
		}

		return nil, mapError(err)
	}

	return rowToEntity(row), nil
}

// GetByIDs retrieves entities inside tx without locking them.
func (r *EntityRepository) GetByIDs(ctx context.Context, tx usecase.Tx, ids []string) ([]*domain.Entity, error) {
	queries := r.queries
	if tx != nil {
		var err error
		if queries, err = queriesFor(tx); err != nil {
			return nil, err
		}
	}

	rows, err := queries.GetEntitiesByIDs(ctx, ids)
	if err != nil {
		return nil, mapError(err)
	}

	return rowsToEntities(rows), nil
}

// GetByIDsForUpdate retrieves entities with FOR NO KEY UPDATE locks, taken in
// ascending ID order.
func (r *EntityRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Tx, ids []string) ([]*domain.Entity, error) {
	queries, err := queriesFor(tx)
	if err != nil {
		return nil, err
	}

	rows, err := queries.GetEntitiesByIDsForUpdate(ctx, ids)
	if err != nil {
		return nil, mapError(err)
	}

	return rowsToEntities(rows), nil
}

// UpdateBalance stores the cached balance if the entity is still at
// expectedVersion.
func (r *EntityRepository) UpdateBalance(
	ctx context.Context,
	tx usecase.Tx,
	id string,
	balance decimal.NullDecimal,
	expectedVersion int64,
	updatedAt time.Time,
) error {
	queries, err := queriesFor(tx)
	if err != nil {
		return err
	}

	n, err := queries.UpdateEntityBalance(ctx, generated.UpdateEntityBalanceParams{
		ID:            id,
		CachedBalance: nullDecimalToNumeric(balance),
		Version:       expectedVersion,
		UpdatedAt:     timeToPgTimestamptz(updatedAt),
	})
	if err != nil {
		return mapError(err)
	}
	if n == 1 {
		return nil
	}

	if _, err := queries.GetEntityByID(ctx, id); errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrEntityNotFound
	}
	return fmt.Errorf("%w: entity %s moved past version %d", domain.ErrConflict, id, expectedVersion)
}

// UpdateCode replaces or clears an entity's code.
func (r *EntityRepository) UpdateCode(ctx context.Context, tx usecase.Tx, id string, code *string, updatedAt time.Time) error {
	queries, err := queriesFor(tx)
	if err != nil {
		return err
	}

	n, err := queries.UpdateEntityCode(ctx, generated.UpdateEntityCodeParams{
		ID:        id,
		Code:      stringPtrToText(code),
		UpdatedAt: timeToPgTimestamptz(updatedAt),
	})
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return domain.ErrEntityNotFound
	}

	return nil
}

// List lists entities ordered by ID.
func (r *EntityRepository) List(ctx context.Context, limit, offset int) ([]*domain.Entity, error) {
	rows, err := r.queries.ListEntities(ctx, generated.ListEntitiesParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, mapError(err)
	}

	return rowsToEntities(rows), nil
}

func rowsToEntities(rows []generated.Entity) []*domain.Entity {
	entities := make([]*domain.Entity, 0, len(rows))
	for _, row := range rows {
		entities = append(entities, rowToEntity(row))
	}
	return entities
}
