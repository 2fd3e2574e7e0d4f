package usecase

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
)

// LedgerDeps are the collaborators of a LedgerUseCase.
type LedgerDeps struct {
	TxManager   TxManager
	TxRepo      TransactionRepository
	OutboxRepo  OutboxRepository
	Coordinator Coordinator
	Engine      *BalanceEngine
	Guard       *IdempotencyGuard
	Resolver    *Resolver
	Retrier     Retrier
	IDGen       IDGenerator
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
}

// LedgerUseCase drives transactions through their lifecycle and keeps entity
// values consistent with the log.
type LedgerUseCase struct {
	txManager   TxManager
	txRepo      TransactionRepository
	outboxRepo  OutboxRepository
	coordinator Coordinator
	engine      *BalanceEngine
	guard       *IdempotencyGuard
	resolver    *Resolver
	retrier     Retrier
	idGen       IDGenerator
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	now         func() time.Time
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(deps LedgerDeps) *LedgerUseCase {
	return &LedgerUseCase{
		txManager:   deps.TxManager,
		txRepo:      deps.TxRepo,
		outboxRepo:  deps.OutboxRepo,
		coordinator: deps.Coordinator,
		engine:      deps.Engine,
		guard:       deps.Guard,
		resolver:    deps.Resolver,
		retrier:     deps.Retrier,
		idGen:       deps.IDGen,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SubmitInput represents input for submitting a transaction.
type SubmitInput struct {
	EntityRef string
	Type      domain.TransactionType
	Amount    decimal.Decimal
	RefNo     string
}

// AmendInput represents input for editing a draft.
type AmendInput struct {
	ID     string
	Type   domain.TransactionType
	Amount decimal.Decimal
}

// TransferInput represents input for moving value between two entities.
type TransferInput struct {
	FromRef string
	ToRef   string
	Amount  decimal.Decimal
	RefNo   string
}

// ListTransactionsInput represents input for querying the log.
type ListTransactionsInput struct {
	From      *time.Time
	To        *time.Time
	EntityRef string
	Statuses  []domain.Status
}

// FinalizeResult is a transaction that reached Final and the resulting
// value of its entity.
type FinalizeResult struct {
	Transaction *domain.Transaction
	Balance     decimal.Decimal
}

// TransferResult holds both legs of a transfer.
type TransferResult struct {
	Out         *domain.Transaction
	In          *domain.Transaction
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
}

// Submit records a new draft transaction.
func (uc *LedgerUseCase) Submit(ctx context.Context, input SubmitInput) (*domain.Transaction, error) {
	t, err := uc.submit(ctx, input)
	uc.record("submit", err)
	return t, err
}

func (uc *LedgerUseCase) submit(ctx context.Context, input SubmitInput) (*domain.Transaction, error) {
	if err := domain.ValidateClientRefNo(input.RefNo); err != nil {
		return nil, err
	}
	entityID, err := uc.resolver.Resolve(ctx, input.EntityRef)
	if err != nil {
		return nil, err
	}

	t := &domain.Transaction{
		ID:       uc.idGen.Generate(),
		EntityID: entityID,
		Type:     input.Type,
		Amount:   input.Amount,
		Status:   domain.StatusDraft,
		RefNo:    input.RefNo,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	// The append can wait on a finalize holding the entity row. Each attempt
	// re-runs the guard, as a concurrent submit may have taken the RefNo.
	err = uc.retrier.Retry(ctx, func() error {
		now := uc.now()
		t.CreatedAt, t.UpdatedAt = now, now

		reservation, err := uc.guard.Register(ctx, t.RefNo, t.EntityID, t.ID)
		if err != nil {
			return err
		}

		err = inTx(ctx, uc.txManager, func(ctx context.Context, tx Tx) error {
			if err := uc.txRepo.Append(ctx, tx, t); err != nil {
				return err
			}
			return uc.emit(ctx, tx, domain.EventTypeTransactionSubmitted, t, "")
		})
		if err != nil {
			uc.guard.Observe(err)
			reservation.Release(ctx)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.TransactionsSubmitted.Inc()
	}
	uc.logger.Info().
		Str("transaction_id", t.ID).
		Str("entity_id", t.EntityID).
		Str("ref_no", t.RefNo).
		Msg("transaction submitted")

	return t, nil
}

// Amend changes the type and amount of a draft.
func (uc *LedgerUseCase) Amend(ctx context.Context, input AmendInput) (*domain.Transaction, error) {
	var t *domain.Transaction

	err := uc.retrier.Retry(ctx, func() error {
		var err error
		t, err = uc.txRepo.GetByID(ctx, input.ID)
		if err != nil {
			return err
		}
		if t.Status != domain.StatusDraft {
			return fmt.Errorf("%w: only drafts can be amended, transaction is %s", domain.ErrInvalidStateTransition, t.Status)
		}

		t.Type = input.Type
		t.Amount = input.Amount
		t.UpdatedAt = uc.now()
		if err := t.Validate(); err != nil {
			return err
		}

		return inTx(ctx, uc.txManager, func(ctx context.Context, tx Tx) error {
			return uc.txRepo.UpdateDraft(ctx, tx, t)
		})
	})
	uc.record("amend", err)
	if err != nil {
		return nil, err
	}

	return t, nil
}

// RequestApproval moves a draft to pending.
func (uc *LedgerUseCase) RequestApproval(ctx context.Context, id string) (*domain.Transaction, error) {
	t, err := uc.transition(ctx, id, domain.StatusPending, domain.EventTypeTransactionPending)
	uc.record("request_approval", err)
	return t, err
}

// Cancel cancels a draft or pending transaction and frees its RefNo. It needs
// no coordination because nothing it touches affects a balance.
func (uc *LedgerUseCase) Cancel(ctx context.Context, id string) (*domain.Transaction, error) {
	t, err := uc.transition(ctx, id, domain.StatusCancelled, domain.EventTypeTransactionCancelled)
	uc.record("cancel", err)
	if err != nil {
		return nil, err
	}

	uc.guard.Release(ctx, t.RefNo, t.ID)
	if uc.metrics != nil {
		uc.metrics.TransactionsCancelled.Inc()
	}
	uc.logger.Info().Str("transaction_id", t.ID).Str("ref_no", t.RefNo).Msg("transaction cancelled")

	return t, nil
}

func (uc *LedgerUseCase) transition(ctx context.Context, id string, to domain.Status, eventType string) (*domain.Transaction, error) {
	var t *domain.Transaction

	err := uc.retrier.Retry(ctx, func() error {
		var err error
		t, err = uc.txRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		from := t.Status
		if err := t.Transition(to, uc.now()); err != nil {
			return err
		}

		return inTx(ctx, uc.txManager, func(ctx context.Context, tx Tx) error {
			if err := uc.txRepo.UpdateStatus(ctx, tx, t, from); err != nil {
				return err
			}
			return uc.emit(ctx, tx, eventType, t, "")
		})
	})
	if err != nil {
		return nil, err
	}

	return t, nil
}

// Approve finalizes a draft or pending transaction and applies it to its
// entity's value. A draft passes through pending in the same step.
func (uc *LedgerUseCase) Approve(ctx context.Context, id string) (*FinalizeResult, error) {
	var result *FinalizeResult

	err := uc.retrier.Retry(ctx, func() error {
		t, err := uc.txRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		path, err := domain.PathToFinal(t.Status)
		if err != nil {
			return err
		}

		return uc.finalize(ctx, []string{t.EntityID}, func(ctx context.Context, s *Section) error {
			now := uc.now()
			from := t.Status

			balance, err := uc.engine.Apply(ctx, s, t.EntityID, t.SignedAmount(), true, now)
			if err != nil {
				return err
			}

			for _, step := range path {
				if err := t.Transition(step, now); err != nil {
					return err
				}
			}

			if err := uc.txRepo.UpdateStatus(ctx, s.Tx, t, from); err != nil {
				return err
			}
			if err := uc.emit(ctx, s.Tx, domain.EventTypeTransactionFinalized, t, balance.String()); err != nil {
				return err
			}

			result = &FinalizeResult{Transaction: t, Balance: balance}
			return nil
		})
	})
	uc.record("approve", err)
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.TransactionsFinalized.Inc()
	}
	uc.logger.Info().
		Str("transaction_id", result.Transaction.ID).
		Str("entity_id", result.Transaction.EntityID).
		Str("balance", result.Balance.String()).
		Msg("transaction finalized")

	return result, nil
}

// Reverse offsets a final transaction with a compensating one of opposite
// type and equal amount, finalized immediately. The original stays final.
// Compensations are exempt from the negative balance rule, as they restore
// what the log should have said.
func (uc *LedgerUseCase) Reverse(ctx context.Context, id string) (*FinalizeResult, error) {
	var result *FinalizeResult

	err := uc.retrier.Retry(ctx, func() error {
		original, err := uc.txRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if original.Status != domain.StatusFinal {
			return fmt.Errorf("%w: only final transactions can be reversed, transaction is %s", domain.ErrInvalidStateTransition, original.Status)
		}

		existing, err := uc.txRepo.GetByCorrectionOf(ctx, original.ID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: compensated by %s", domain.ErrAlreadyReversed, existing.ID)
		case !errors.Is(err, domain.ErrTransactionNotFound):
			return err
		}

		now := uc.now()
		comp := original.NewCompensation(uc.idGen.Generate(), domain.ReversalRefNo(original.ID), now)

		return uc.finalize(ctx, []string{comp.EntityID}, func(ctx context.Context, s *Section) error {
			// A reversal that committed while this one waited for the section.
			if existing, err := uc.txRepo.GetByCorrectionOf(ctx, original.ID); err == nil {
				return fmt.Errorf("%w: compensated by %s", domain.ErrAlreadyReversed, existing.ID)
			}

			balance, err := uc.engine.Apply(ctx, s, comp.EntityID, comp.SignedAmount(), false, now)
			if err != nil {
				return err
			}

			for _, step := range []domain.Status{domain.StatusPending, domain.StatusFinal} {
				if err := comp.Transition(step, now); err != nil {
					return err
				}
			}

			if err := uc.txRepo.Append(ctx, s.Tx, comp); err != nil {
				return err
			}
			if err := uc.emit(ctx, s.Tx, domain.EventTypeTransactionReversed, comp, balance.String()); err != nil {
				return err
			}

			result = &FinalizeResult{Transaction: comp, Balance: balance}
			return nil
		})
	})
	uc.record("reverse", err)
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.TransactionsReversed.Inc()
	}
	uc.logger.Info().
		Str("transaction_id", result.Transaction.ID).
		Str("correction_of", id).
		Str("balance", result.Balance.String()).
		Msg("transaction reversed")

	return result, nil
}

// Transfer moves amount from one entity to another as two final legs
// written in one section over both entities.
func (uc *LedgerUseCase) Transfer(ctx context.Context, input TransferInput) (*TransferResult, error) {
	result, err := uc.transfer(ctx, input)
	uc.record("transfer", err)
	return result, err
}

func (uc *LedgerUseCase) transfer(ctx context.Context, input TransferInput) (*TransferResult, error) {
	fromID, err := uc.resolver.Resolve(ctx, input.FromRef)
	if err != nil {
		return nil, err
	}
	toID, err := uc.resolver.Resolve(ctx, input.ToRef)
	if err != nil {
		return nil, err
	}
	if fromID == toID {
		return nil, domain.ErrSameEntity
	}
	if err := domain.ValidateClientRefNo(input.RefNo); err != nil {
		return nil, err
	}

	var result *TransferResult

	err = uc.retrier.Retry(ctx, func() error {
		now := uc.now()
		out := &domain.Transaction{
			ID:        uc.idGen.Generate(),
			EntityID:  fromID,
			Type:      domain.TransactionTypeOut,
			Amount:    input.Amount,
			Status:    domain.StatusDraft,
			RefNo:     domain.TransferLegRefNo(domain.TransactionTypeOut, input.RefNo),
			CreatedAt: now,
			UpdatedAt: now,
		}
		in := &domain.Transaction{
			ID:        uc.idGen.Generate(),
			EntityID:  toID,
			Type:      domain.TransactionTypeIn,
			Amount:    input.Amount,
			Status:    domain.StatusDraft,
			RefNo:     domain.TransferLegRefNo(domain.TransactionTypeIn, input.RefNo),
			CreatedAt: now,
			UpdatedAt: now,
		}

		legs := []*domain.Transaction{out, in}
		var reservations []*Reservation
		release := func() {
			for _, r := range reservations {
				r.Release(ctx)
			}
		}

		for _, leg := range legs {
			if err := leg.Validate(); err != nil {
				release()
				return err
			}
			r, err := uc.guard.Register(ctx, leg.RefNo, leg.EntityID, leg.ID)
			if err != nil {
				release()
				return err
			}
			reservations = append(reservations, r)
		}

		balances := make([]decimal.Decimal, len(legs))
		err := uc.finalize(ctx, []string{fromID, toID}, func(ctx context.Context, s *Section) error {
			for i, leg := range legs {
				balance, err := uc.engine.Apply(ctx, s, leg.EntityID, leg.SignedAmount(), true, now)
				if err != nil {
					return err
				}
				balances[i] = balance

				for _, step := range []domain.Status{domain.StatusPending, domain.StatusFinal} {
					if err := leg.Transition(step, now); err != nil {
						return err
					}
				}
				if err := uc.txRepo.Append(ctx, s.Tx, leg); err != nil {
					return err
				}
				if err := uc.emit(ctx, s.Tx, domain.EventTypeTransactionFinalized, leg, balance.String()); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			uc.guard.Observe(err)
			release()
			return err
		}

		result = &TransferResult{Out: out, In: in, FromBalance: balances[0], ToBalance: balances[1]}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.TransactionsFinalized.Add(2)
	}
	uc.logger.Info().
		Str("from_entity_id", fromID).
		Str("to_entity_id", toID).
		Str("ref_no", input.RefNo).
		Msg("transfer finalized")

	return result, nil
}

// GetTransaction retrieves a transaction by ID.
func (uc *LedgerUseCase) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return uc.txRepo.GetByID(ctx, id)
}

// ListTransactions returns a lazy sequence over an entity's log ordered by
// creation time.
func (uc *LedgerUseCase) ListTransactions(ctx context.Context, input ListTransactionsInput) (iter.Seq2[*domain.Transaction, error], error) {
	entityID, err := uc.resolver.Resolve(ctx, input.EntityRef)
	if err != nil {
		return nil, err
	}

	q := domain.TransactionQuery{
		EntityID: entityID,
		Statuses: input.Statuses,
		From:     input.From,
		To:       input.To,
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	return uc.txRepo.Query(ctx, q), nil
}

// GetBalance returns the current value of the referenced entity.
func (uc *LedgerUseCase) GetBalance(ctx context.Context, entityRef string) (*domain.Balance, error) {
	entity, err := uc.resolver.ResolveEntity(ctx, entityRef)
	if err != nil {
		return nil, err
	}

	value, err := uc.engine.Compute(ctx, nil, entity)
	if err != nil {
		return nil, err
	}

	return &domain.Balance{
		EntityID: entity.ID,
		Mode:     uc.engine.Mode(),
		Value:    value,
		Version:  entity.Version,
		AsOf:     uc.now(),
	}, nil
}

// Rebuild recomputes the referenced entity's value from the log and reports
// whether the cached value drifted from it.
func (uc *LedgerUseCase) Rebuild(ctx context.Context, entityRef string) (*domain.RebuildResult, error) {
	entityID, err := uc.resolver.Resolve(ctx, entityRef)
	if err != nil {
		return nil, err
	}

	result, err := uc.rebuild(ctx, entityID)
	uc.record("rebuild", err)
	return result, err
}

func (uc *LedgerUseCase) rebuild(ctx context.Context, entityID string) (*domain.RebuildResult, error) {
	var result *domain.RebuildResult

	err := uc.retrier.Retry(ctx, func() error {
		return uc.coordinator.Run(ctx, []string{entityID}, func(ctx context.Context, s *Section) error {
			var err error
			result, err = uc.engine.Rebuild(ctx, s, entityID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.Rebuilds.Inc()
	}
	if result.DriftDetected {
		if uc.metrics != nil {
			uc.metrics.DriftDetections.Inc()
		}
		uc.logger.Error().
			Str("entity_id", entityID).
			Str("cached", result.Cached.Decimal.String()).
			Str("log", result.Value.String()).
			Msg("integrity drift detected")
	}

	return result, nil
}

func (uc *LedgerUseCase) finalize(ctx context.Context, ids []string, fn SectionFunc) error {
	start := time.Now()
	err := uc.coordinator.Run(ctx, ids, fn)
	if err == nil && uc.metrics != nil {
		uc.metrics.FinalizeDuration.Observe(time.Since(start).Seconds())
	}
	return err
}

func (uc *LedgerUseCase) emit(ctx context.Context, tx Tx, eventType string, t *domain.Transaction, balance string) error {
	return uc.outboxRepo.Create(ctx, tx, domain.NewTransactionEvent(uc.idGen.Generate(), eventType, t, balance, uc.now()))
}

func (uc *LedgerUseCase) record(operation string, err error) {
	if err == nil || uc.metrics == nil {
		return
	}
	uc.metrics.TransactionErrors.WithLabelValues(operation, ErrorKind(err)).Inc()
}

// ErrorKind names the taxonomy kind of err for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrDuplicateRef):
		return "duplicate_ref"
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return "invalid_state_transition"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, domain.ErrUnknownReference):
		return "unknown_reference"
	case errors.Is(err, domain.ErrIntegrityDrift):
		return "integrity_drift"
	case errors.Is(err, domain.ErrTransactionNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrDuplicateCode):
		return "duplicate_code"
	}
	return "internal"
}
