package memory

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	store *Store
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(store *Store) *TransactionRepository {
	return &TransactionRepository{store: store}
}

// Append stages a new log entry.
func (r *TransactionRepository) Append(ctx context.Context, tx usecase.Tx, t *domain.Transaction) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	rec := cloneTransaction(t)
	return mt.stage(func(s *Store) (func(), error) {
		if _, ok := s.entities[rec.EntityID]; !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrEntityNotFound, rec.EntityID)
		}
		if _, ok := s.transactions[rec.ID]; ok {
			return nil, fmt.Errorf("%w: transaction %s already exists", domain.ErrValidation, rec.ID)
		}
		if rec.CorrectionOf != nil {
			if _, ok := s.transactions[*rec.CorrectionOf]; !ok {
				return nil, fmt.Errorf("%w: corrected transaction %s", domain.ErrUnknownReference, *rec.CorrectionOf)
			}
			if holder, ok := s.corrections[*rec.CorrectionOf]; ok {
				return nil, fmt.Errorf("%w: compensated by %s", domain.ErrAlreadyReversed, holder)
			}
		}
		if rec.IsActive() {
			if holder, ok := s.activeRefs[rec.RefNo]; ok {
				return nil, fmt.Errorf("%w: %q is held by transaction %s", domain.ErrDuplicateRef, rec.RefNo, holder)
			}
			s.activeRefs[rec.RefNo] = rec.ID
		}
		if rec.CorrectionOf != nil {
			s.corrections[*rec.CorrectionOf] = rec.ID
		}
		s.transactions[rec.ID] = rec
		s.byEntity[rec.EntityID] = append(s.byEntity[rec.EntityID], rec.ID)

		return func() {
			list := s.byEntity[rec.EntityID]
			s.byEntity[rec.EntityID] = list[:len(list)-1]
			delete(s.transactions, rec.ID)
			if rec.CorrectionOf != nil {
				delete(s.corrections, *rec.CorrectionOf)
			}
			if rec.IsActive() {
				delete(s.activeRefs, rec.RefNo)
			}
		}, nil
	})
}

// GetByID retrieves a transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	t, ok := r.store.transactions[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return cloneTransaction(t), nil
}

// GetActiveByRef retrieves the non-cancelled transaction holding refNo.
func (r *TransactionRepository) GetActiveByRef(ctx context.Context, refNo string) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.activeRefs[refNo]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return cloneTransaction(r.store.transactions[id]), nil
}

// GetByCorrectionOf retrieves the compensation of originalID.
func (r *TransactionRepository) GetByCorrectionOf(ctx context.Context, originalID string) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.corrections[originalID]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return cloneTransaction(r.store.transactions[id]), nil
}

// UpdateStatus stages a status change conditional on the stored status.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx usecase.Tx, t *domain.Transaction, from domain.Status) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	next := cloneTransaction(t)
	return mt.stage(func(s *Store) (func(), error) {
		stored, ok := s.transactions[next.ID]
		if !ok {
			return nil, domain.ErrTransactionNotFound
		}
		if stored.Status != from {
			return nil, fmt.Errorf("%w: transaction %s is %s, expected %s", domain.ErrConflict, next.ID, stored.Status, from)
		}
		if from.IsTerminal() {
			return nil, fmt.Errorf("%w: %s records are immutable", domain.ErrInvalidStateTransition, from)
		}

		prev := *stored
		stored.Status = next.Status
		stored.UpdatedAt = next.UpdatedAt
		stored.FinalizedAt = next.FinalizedAt
		if !stored.IsActive() {
			delete(s.activeRefs, stored.RefNo)
		}

		return func() {
			*stored = prev
			if prev.IsActive() {
				s.activeRefs[prev.RefNo] = prev.ID
			}
		}, nil
	})
}

// UpdateDraft stages an edit of a draft's type and amount.
func (r *TransactionRepository) UpdateDraft(ctx context.Context, tx usecase.Tx, t *domain.Transaction) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}

	next := cloneTransaction(t)
	return mt.stage(func(s *Store) (func(), error) {
		stored, ok := s.transactions[next.ID]
		if !ok {
			return nil, domain.ErrTransactionNotFound
		}
		if stored.Status != domain.StatusDraft {
			return nil, fmt.Errorf("%w: transaction %s is %s, expected %s", domain.ErrConflict, next.ID, stored.Status, domain.StatusDraft)
		}

		prev := *stored
		stored.Type = next.Type
		stored.Amount = next.Amount
		stored.UpdatedAt = next.UpdatedAt

		return func() { *stored = prev }, nil
	})
}

// SumFinal returns the signed sum of committed final transactions.
func (r *TransactionRepository) SumFinal(ctx context.Context, tx usecase.Tx, entityID string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	sum := decimal.Zero
	for _, id := range r.store.byEntity[entityID] {
		t := r.store.transactions[id]
		if t.Status.AffectsBalance() {
			sum = sum.Add(t.SignedAmount())
		}
	}
	return sum, nil
}

// Query yields a snapshot of matching transactions taken when ranging starts.
func (r *TransactionRepository) Query(ctx context.Context, q domain.TransactionQuery) iter.Seq2[*domain.Transaction, error] {
	return func(yield func(*domain.Transaction, error) bool) {
		r.store.mu.RLock()
		matched := make([]*domain.Transaction, 0, len(r.store.byEntity[q.EntityID]))
		for _, id := range r.store.byEntity[q.EntityID] {
			if t := r.store.transactions[id]; q.Matches(t) {
				matched = append(matched, cloneTransaction(t))
			}
		}
		r.store.mu.RUnlock()

		slices.SortStableFunc(matched, func(a, b *domain.Transaction) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		})

		for _, t := range matched {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(t, nil) {
				return
			}
		}
	}
}
