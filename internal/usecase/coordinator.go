package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
)

// Strategy selects how finalizations on one entity are serialized.
type Strategy string

const (
	// StrategyPessimistic takes an exclusive section per entity before reading.
	StrategyPessimistic Strategy = "pessimistic"
	// StrategyOptimistic reads freely and rejects the write when the entity
	// version moved in between.
	StrategyOptimistic Strategy = "optimistic"
)

// ParseStrategy validates a configured strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case StrategyPessimistic, StrategyOptimistic:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown coordination strategy %q", domain.ErrValidation, s)
}

// Section is the coordinated read-compute-write window over a set of
// entities. Everything written through Tx commits together.
type Section struct {
	Tx       Tx
	entities map[string]*domain.Entity
}

// Entity returns the snapshot of id loaded when the section opened.
func (s *Section) Entity(id string) *domain.Entity {
	return s.entities[id]
}

// SectionFunc is the work done inside a section.
type SectionFunc func(ctx context.Context, s *Section) error

// Coordinator runs a SectionFunc with exclusive write access to entities.
type Coordinator interface {
	Strategy() Strategy
	// Run opens a section over ids in ascending order, runs fn and commits.
	// A section that cannot be entered or completed in time fails with
	// domain.ErrLockTimeout; a lost optimistic race fails with
	// domain.ErrConflict. Nothing is committed on error.
	Run(ctx context.Context, ids []string, fn SectionFunc) error
}

// CoordinatorConfig bounds coordinated sections.
type CoordinatorConfig struct {
	AcquireTimeout time.Duration
	HoldTimeout    time.Duration
}

func (c CoordinatorConfig) withDefaults() CoordinatorConfig {
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = DefaultLockAcquireTimeout
	}
	if c.HoldTimeout <= 0 {
		c.HoldTimeout = DefaultLockHoldTimeout
	}
	return c
}

// NewCoordinator builds the coordinator for strategy. locker is only used by
// the pessimistic strategy and may be nil when storage row locks suffice.
func NewCoordinator(
	strategy Strategy,
	txManager TxManager,
	entityRepo EntityRepository,
	locker Locker,
	cfg CoordinatorConfig,
	m *metrics.Metrics,
) (Coordinator, error) {
	base := sectionRunner{
		txManager:  txManager,
		entityRepo: entityRepo,
		cfg:        cfg.withDefaults(),
		metrics:    m,
	}

	switch strategy {
	case StrategyPessimistic:
		return &PessimisticCoordinator{sectionRunner: base, locker: locker}, nil
	case StrategyOptimistic:
		return &OptimisticCoordinator{sectionRunner: base}, nil
	}
	return nil, fmt.Errorf("%w: unknown coordination strategy %q", domain.ErrValidation, strategy)
}

// PessimisticCoordinator holds an exclusive lock on every entity for the
// duration of the section and reads them with row locks.
type PessimisticCoordinator struct {
	sectionRunner
	locker Locker
}

// Strategy implements Coordinator.
func (c *PessimisticCoordinator) Strategy() Strategy { return StrategyPessimistic }

// Run implements Coordinator.
func (c *PessimisticCoordinator) Run(ctx context.Context, ids []string, fn SectionFunc) error {
	ids = sortedUnique(ids)

	if c.locker != nil {
		start := time.Now()
		acquireCtx, cancel := context.WithTimeout(ctx, c.cfg.AcquireTimeout)
		release, err := c.locker.Acquire(acquireCtx, LockKeys(ids))
		cancel()
		c.observeWait(StrategyPessimistic, start)
		if err != nil {
			c.observe(StrategyPessimistic, err)
			return err
		}
		defer release()
	}

	err := c.run(ctx, ids, c.entityRepo.GetByIDsForUpdate, fn)
	c.observe(StrategyPessimistic, err)
	return err
}

// OptimisticCoordinator reads without locks. Writes made through
// EntityRepository.UpdateBalance carry the version read at section start, so
// a concurrent finalize on the same entity makes one of them fail with
// domain.ErrConflict.
type OptimisticCoordinator struct {
	sectionRunner
}

// Strategy implements Coordinator.
func (c *OptimisticCoordinator) Strategy() Strategy { return StrategyOptimistic }

// Run implements Coordinator.
func (c *OptimisticCoordinator) Run(ctx context.Context, ids []string, fn SectionFunc) error {
	err := c.run(ctx, sortedUnique(ids), c.entityRepo.GetByIDs, fn)
	c.observe(StrategyOptimistic, err)
	return err
}

type loadFunc func(ctx context.Context, tx Tx, ids []string) ([]*domain.Entity, error)

type sectionRunner struct {
	txManager  TxManager
	entityRepo EntityRepository
	metrics    *metrics.Metrics
	cfg        CoordinatorConfig
}

func (r *sectionRunner) run(ctx context.Context, ids []string, load loadFunc, fn SectionFunc) error {
	sectionCtx, cancel := context.WithTimeout(ctx, r.cfg.HoldTimeout)
	defer cancel()

	tx, err := r.txManager.Begin(sectionCtx)
	if err != nil {
		return holdError(sectionCtx, err)
	}
	defer func() { _ = tx.Rollback(sectionCtx) }()

	entities, err := load(sectionCtx, tx, ids)
	if err != nil {
		return holdError(sectionCtx, err)
	}

	section := &Section{Tx: tx, entities: make(map[string]*domain.Entity, len(entities))}
	for _, e := range entities {
		section.entities[e.ID] = e
	}
	for _, id := range ids {
		if section.entities[id] == nil {
			return fmt.Errorf("%w: %s", domain.ErrEntityNotFound, id)
		}
	}

	if err := fn(sectionCtx, section); err != nil {
		return holdError(sectionCtx, err)
	}

	if err := tx.Commit(sectionCtx); err != nil {
		return holdError(sectionCtx, err)
	}

	return nil
}

func (r *sectionRunner) observeWait(strategy Strategy, start time.Time) {
	if r.metrics != nil {
		r.metrics.LockWaitDuration.WithLabelValues(string(strategy)).Observe(time.Since(start).Seconds())
	}
}

func (r *sectionRunner) observe(strategy Strategy, err error) {
	if r.metrics == nil || err == nil {
		return
	}
	switch {
	case errors.Is(err, domain.ErrConflict):
		r.metrics.Conflicts.WithLabelValues(string(strategy)).Inc()
	case errors.Is(err, domain.ErrLockTimeout):
		r.metrics.LockTimeouts.WithLabelValues(string(strategy)).Inc()
	}
}

// holdError reports work cut short by the section deadline as a lock timeout.
func holdError(ctx context.Context, err error) error {
	if domain.IsRetryable(err) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: section exceeded hold time: %v", domain.ErrLockTimeout, err)
	}
	return err
}

// LockKeys maps entity IDs to the keys used by a Locker.
func LockKeys(ids []string) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "entity:" + id
	}
	return keys
}

func sortedUnique(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
