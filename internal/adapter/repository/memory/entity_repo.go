package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

// EntityRepository implements usecase.EntityRepository.
type EntityRepository struct {
	store *Store
}

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(store *Store) *EntityRepository {
	return &EntityRepository{store: store}
}

// Create stages a new entity.
func (r *EntityRepository) Create(ctx context.Context, tx usecase.Tx, entity *domain.Entity) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	e := cloneEntity(entity)
	return mt.stage(func(s *Store) (func(), error) {
		if _, ok := s.entities[e.ID]; ok {
			return nil, fmt.Errorf("%w: entity %s already exists", domain.ErrValidation, e.ID)
		}
		if e.Code != nil {
			if _, ok := s.codes[*e.Code]; ok {
				return nil, fmt.Errorf("%w: %q", domain.ErrDuplicateCode, *e.Code)
			}
			s.codes[*e.Code] = e.ID
		}
		s.entities[e.ID] = e

		return func() {
			delete(s.entities, e.ID)
			if e.Code != nil {
				delete(s.codes, *e.Code)
			}
		}, nil
	})
}

// GetByID retrieves an entity by ID.
func (r *EntityRepository) GetByID(ctx context.Context, id string) (*domain.Entity, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	e, ok := r.store.entities[id]
	if !ok {
		return nil, domain.ErrEntityNotFound
	}
	return cloneEntity(e), nil
}

// GetByCode retrieves an entity by its current code.
func (r *EntityRepository) GetByCode(ctx context.Context, code string) (*domain.Entity, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.codes[code]
	if !ok {
		return nil, domain.ErrEntityNotFound
	}
	return cloneEntity(r.store.entities[id]), nil
}

// GetByIDs retrieves entities in ascending ID order. Missing IDs are skipped.
func (r *EntityRepository) GetByIDs(ctx context.Context, tx usecase.Tx, ids []string) ([]*domain.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sorted := slices.Clone(ids)
	slices.Sort(sorted)

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entities := make([]*domain.Entity, 0, len(sorted))
	for _, id := range slices.Compact(sorted) {
		if e, ok := r.store.entities[id]; ok {
			entities = append(entities, cloneEntity(e))
		}
	}
	return entities, nil
}

// GetByIDsForUpdate is GetByIDs. Exclusion in memory comes from the
// coordinator's Locker.
func (r *EntityRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Tx, ids []string) ([]*domain.Entity, error) {
	return r.GetByIDs(ctx, tx, ids)
}

// UpdateBalance stages a version-checked cache write.
func (r *EntityRepository) UpdateBalance(
	ctx context.Context,
	tx usecase.Tx,
	id string,
	balance decimal.NullDecimal,
	expectedVersion int64,
	updatedAt time.Time,
) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	return mt.stage(func(s *Store) (func(), error) {
		e, ok := s.entities[id]
		if !ok {
			return nil, domain.ErrEntityNotFound
		}
		if e.Version != expectedVersion {
			return nil, fmt.Errorf("%w: entity %s is at version %d, expected %d", domain.ErrConflict, id, e.Version, expectedVersion)
		}

		prev := *e
		e.CachedBalance = balance
		e.Version++
		e.UpdatedAt = updatedAt

		return func() { *e = prev }, nil
	})
}

// UpdateCode stages a code change.
func (r *EntityRepository) UpdateCode(ctx context.Context, tx usecase.Tx, id string, code *string, updatedAt time.Time) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	var next *string
	if code != nil {
		c := *code
		next = &c
	}

	return mt.stage(func(s *Store) (func(), error) {
		e, ok := s.entities[id]
		if !ok {
			return nil, domain.ErrEntityNotFound
		}
		if next != nil {
			if owner, ok := s.codes[*next]; ok && owner != id {
				return nil, fmt.Errorf("%w: %q", domain.ErrDuplicateCode, *next)
			}
		}

		prev := *e
		if e.Code != nil {
			delete(s.codes, *e.Code)
		}
		if next != nil {
			s.codes[*next] = id
		}
		e.Code = next
		e.UpdatedAt = updatedAt

		return func() {
			if next != nil {
				delete(s.codes, *next)
			}
			if prev.Code != nil {
				s.codes[*prev.Code] = id
			}
			*e = prev
		}, nil
	})
}

// List returns entities ordered by ID.
func (r *EntityRepository) List(ctx context.Context, limit, offset int) ([]*domain.Entity, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids := make([]string, 0, len(r.store.entities))
	for id := range r.store.entities {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	if offset >= len(ids) {
		return []*domain.Entity{}, nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	entities := make([]*domain.Entity, 0, len(ids))
	for _, id := range ids {
		entities = append(entities, cloneEntity(r.store.entities[id]))
	}
	return entities, nil
}
