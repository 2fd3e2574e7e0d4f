package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
)

// EntityUseCase handles entity registration and code management.
type EntityUseCase struct {
	txManager  TxManager
	entityRepo EntityRepository
	outboxRepo OutboxRepository
	resolver   *Resolver
	idGen      IDGenerator
	metrics    *metrics.Metrics
	mode       domain.BalanceMode
}

// NewEntityUseCase creates a new EntityUseCase.
func NewEntityUseCase(
	txManager TxManager,
	entityRepo EntityRepository,
	outboxRepo OutboxRepository,
	resolver *Resolver,
	idGen IDGenerator,
	mode domain.BalanceMode,
	m *metrics.Metrics,
) *EntityUseCase {
	return &EntityUseCase{
		txManager:  txManager,
		entityRepo: entityRepo,
		outboxRepo: outboxRepo,
		resolver:   resolver,
		idGen:      idGen,
		metrics:    m,
		mode:       mode,
	}
}

// RegisterEntityInput represents input for registering an entity. Balances
// may go below zero unless RejectNegative is set.
type RegisterEntityInput struct {
	Code           *string
	Kind           domain.EntityKind
	RejectNegative bool
}

// Register creates a new entity.
func (uc *EntityUseCase) Register(ctx context.Context, input RegisterEntityInput) (*domain.Entity, error) {
	if !input.Kind.Valid() {
		return nil, domain.ErrInvalidKind
	}
	if input.Code != nil {
		if err := domain.ValidateCode(*input.Code); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	entity := &domain.Entity{
		ID:            uc.idGen.Generate(),
		Code:          input.Code,
		Kind:          input.Kind,
		AllowNegative: !input.RejectNegative,
		Version:       0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if uc.mode == domain.BalanceModeRunning {
		entity.CachedBalance = decimal.NewNullDecimal(decimal.Zero)
	}

	err := inTx(ctx, uc.txManager, func(ctx context.Context, tx Tx) error {
		if err := uc.entityRepo.Create(ctx, tx, entity); err != nil {
			return err
		}
		return uc.outboxRepo.Create(ctx, tx, domain.NewEntityEvent(uc.idGen.Generate(), domain.EventTypeEntityRegistered, entity, now))
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.EntitiesRegistered.Inc()
	}

	return entity, nil
}

// Get retrieves an entity by ID or code.
func (uc *EntityUseCase) Get(ctx context.Context, ref string) (*domain.Entity, error) {
	return uc.resolver.ResolveEntity(ctx, ref)
}

// ChangeCode replaces or clears an entity's code. Transactions keep pointing
// at the entity ID, so nothing else changes.
func (uc *EntityUseCase) ChangeCode(ctx context.Context, ref string, code *string) (*domain.Entity, error) {
	if code != nil {
		if err := domain.ValidateCode(*code); err != nil {
			return nil, err
		}
	}

	entity, err := uc.resolver.ResolveEntity(ctx, ref)
	if err != nil {
		return nil, err
	}

	previous := entity.Code
	now := time.Now().UTC()
	entity.Code = code
	entity.UpdatedAt = now

	err = inTx(ctx, uc.txManager, func(ctx context.Context, tx Tx) error {
		if err := uc.entityRepo.UpdateCode(ctx, tx, entity.ID, code, now); err != nil {
			return err
		}
		return uc.outboxRepo.Create(ctx, tx, domain.NewEntityEvent(uc.idGen.Generate(), domain.EventTypeEntityCodeChanged, entity, now))
	})
	if err != nil {
		return nil, err
	}

	if previous != nil {
		uc.resolver.Invalidate(ctx, *previous)
	}

	return entity, nil
}

// ListEntitiesInput represents input for listing entities.
type ListEntitiesInput struct {
	Limit  int
	Offset int
}

// List lists entities with pagination.
func (uc *EntityUseCase) List(ctx context.Context, input ListEntitiesInput) ([]*domain.Entity, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}
	if input.Offset < 0 {
		input.Offset = 0
	}
	return uc.entityRepo.List(ctx, input.Limit, input.Offset)
}
