package usecase_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/ledgercore/internal/adapter/repository/memory"
	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/idgen"
	"github.com/iho/ledgercore/internal/infrastructure/lock"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
	"github.com/iho/ledgercore/internal/infrastructure/retry"
	"github.com/iho/ledgercore/internal/usecase"
)

type harness struct {
	store      *memory.Store
	txManager  *memory.TxManager
	entityRepo *memory.EntityRepository
	txRepo     *memory.TransactionRepository
	outboxRepo *memory.OutboxRepository
	metrics    *metrics.Metrics
	resolver   *usecase.Resolver
	engine     *usecase.BalanceEngine
	entities   *usecase.EntityUseCase
	ledger     *usecase.LedgerUseCase
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	mode     domain.BalanceMode
	strategy usecase.Strategy
	locker   usecase.Locker
	registry usecase.RefRegistry
	cache    usecase.Cache
	retry    retry.Config
	coord    usecase.CoordinatorConfig
	wrapLog  func(usecase.TransactionRepository) usecase.TransactionRepository
}

func withMode(mode domain.BalanceMode) harnessOption {
	return func(c *harnessConfig) { c.mode = mode }
}

func withStrategy(strategy usecase.Strategy) harnessOption {
	return func(c *harnessConfig) { c.strategy = strategy }
}

func withLocker(locker usecase.Locker) harnessOption {
	return func(c *harnessConfig) { c.locker = locker }
}

func withRegistry(registry usecase.RefRegistry) harnessOption {
	return func(c *harnessConfig) { c.registry = registry }
}

func withCache(cache usecase.Cache) harnessOption {
	return func(c *harnessConfig) { c.cache = cache }
}

// withLog decorates the transaction log seen by the ledger and the guard.
func withLog(wrap func(usecase.TransactionRepository) usecase.TransactionRepository) harnessOption {
	return func(c *harnessConfig) { c.wrapLog = wrap }
}

// withHighContention sizes retries and timeouts for tests that hammer one entity.
func withHighContention() harnessOption {
	return func(c *harnessConfig) {
		c.retry = retry.Config{
			MaxRetries:      500,
			InitialInterval: time.Millisecond,
			MaxInterval:     20 * time.Millisecond,
			MaxElapsedTime:  30 * time.Second,
		}
		c.coord = usecase.CoordinatorConfig{
			AcquireTimeout: 30 * time.Second,
			HoldTimeout:    30 * time.Second,
		}
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	cfg := harnessConfig{
		mode:     domain.BalanceModeRunning,
		strategy: usecase.StrategyPessimistic,
		locker:   lock.NewLocalLocker(),
		retry:    retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := zerolog.Nop()
	m := metrics.New(prometheus.NewRegistry())
	ids := idgen.NewULIDGenerator()

	store := memory.NewStore()
	txManager := memory.NewTxManager(store)
	entityRepo := memory.NewEntityRepository(store)
	txRepo := memory.NewTransactionRepository(store)
	outboxRepo := memory.NewOutboxRepository(store)

	var log usecase.TransactionRepository = txRepo
	if cfg.wrapLog != nil {
		log = cfg.wrapLog(txRepo)
	}

	locker := cfg.locker
	if cfg.strategy == usecase.StrategyOptimistic {
		locker = nil
	}
	coordinator, err := usecase.NewCoordinator(cfg.strategy, txManager, entityRepo, locker, cfg.coord, m)
	require.NoError(t, err)

	resolver := usecase.NewResolver(entityRepo, cfg.cache, time.Minute)
	engine := usecase.NewBalanceEngine(cfg.mode, entityRepo, txRepo)
	guard := usecase.NewIdempotencyGuard(log, cfg.registry, time.Minute, m, logger)

	return &harness{
		store:      store,
		txManager:  txManager,
		entityRepo: entityRepo,
		txRepo:     txRepo,
		outboxRepo: outboxRepo,
		metrics:    m,
		resolver:   resolver,
		engine:     engine,
		entities:   usecase.NewEntityUseCase(txManager, entityRepo, outboxRepo, resolver, ids, cfg.mode, m),
		ledger: usecase.NewLedgerUseCase(usecase.LedgerDeps{
			TxManager:   txManager,
			TxRepo:      log,
			OutboxRepo:  outboxRepo,
			Coordinator: coordinator,
			Engine:      engine,
			Guard:       guard,
			Resolver:    resolver,
			Retrier:     retry.New(cfg.retry, logger, m),
			IDGen:       ids,
			Metrics:     m,
			Logger:      logger,
		}),
	}
}

func (h *harness) register(t *testing.T, code string) *domain.Entity {
	t.Helper()
	return h.registerWith(t, code, false)
}

// registerStrict registers an entity whose balance may not go below zero.
func (h *harness) registerStrict(t *testing.T, code string) *domain.Entity {
	t.Helper()
	return h.registerWith(t, code, true)
}

func (h *harness) registerWith(t *testing.T, code string, rejectNegative bool) *domain.Entity {
	t.Helper()

	input := usecase.RegisterEntityInput{Kind: domain.EntityKindAccount, RejectNegative: rejectNegative}
	if code != "" {
		input.Code = &code
	}
	e, err := h.entities.Register(context.Background(), input)
	require.NoError(t, err)
	return e
}

func (h *harness) submit(t *testing.T, ref string, typ domain.TransactionType, amount int64, refNo string) *domain.Transaction {
	t.Helper()

	tx, err := h.ledger.Submit(context.Background(), usecase.SubmitInput{
		EntityRef: ref,
		Type:      typ,
		Amount:    decimal.NewFromInt(amount),
		RefNo:     refNo,
	})
	require.NoError(t, err)
	return tx
}

func (h *harness) approve(t *testing.T, id string) *usecase.FinalizeResult {
	t.Helper()

	res, err := h.ledger.Approve(context.Background(), id)
	require.NoError(t, err)
	return res
}

func (h *harness) balance(t *testing.T, ref string) decimal.Decimal {
	t.Helper()

	b, err := h.ledger.GetBalance(context.Background(), ref)
	require.NoError(t, err)
	return b.Value
}

// corruptCache overwrites the cached balance the way a faulty writer would.
func (h *harness) corruptCache(t *testing.T, entityID string, value decimal.Decimal) {
	t.Helper()

	ctx := context.Background()
	e, err := h.entityRepo.GetByID(ctx, entityID)
	require.NoError(t, err)

	tx, err := h.txManager.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, h.entityRepo.UpdateBalance(ctx, tx, entityID, decimal.NewNullDecimal(value), e.Version, time.Now()))
	require.NoError(t, tx.Commit(ctx))
}

func bothModes() []domain.BalanceMode {
	return []domain.BalanceMode{domain.BalanceModeRealTime, domain.BalanceModeRunning}
}

func bothStrategies() []usecase.Strategy {
	return []usecase.Strategy{usecase.StrategyPessimistic, usecase.StrategyOptimistic}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// busyLog fails the first failures appends with a lock timeout, like an
// insert waiting on an entity row held by a finalize.
type busyLog struct {
	usecase.TransactionRepository
	failures atomic.Int32
	appends  atomic.Int32
}

func (l *busyLog) Append(ctx context.Context, tx usecase.Tx, t *domain.Transaction) error {
	l.appends.Add(1)
	if l.failures.Add(-1) >= 0 {
		return fmt.Errorf("%w: canceling statement due to lock timeout", domain.ErrLockTimeout)
	}
	return l.TransactionRepository.Append(ctx, tx, t)
}
