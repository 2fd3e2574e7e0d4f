package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/ledgercore/internal/adapter/http"
	"github.com/iho/ledgercore/internal/adapter/http/handler"
	"github.com/iho/ledgercore/internal/adapter/http/middleware"
	"github.com/iho/ledgercore/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/ledgercore/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/ledgercore/internal/adapter/repository/redis"
	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/config"
	"github.com/iho/ledgercore/internal/infrastructure/eventpublisher"
	"github.com/iho/ledgercore/internal/infrastructure/idgen"
	"github.com/iho/ledgercore/internal/infrastructure/lock"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
	"github.com/iho/ledgercore/internal/infrastructure/postgres"
	"github.com/iho/ledgercore/internal/infrastructure/redis"
	"github.com/iho/ledgercore/internal/infrastructure/retry"
	"github.com/iho/ledgercore/internal/usecase"
)

// app is the wired service.
type app struct {
	handler     http.Handler
	publisher   *eventpublisher.EventPublisher
	rateLimiter *middleware.RateLimiter
	closers     []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// storage groups the repositories of one backend.
type storage struct {
	txManager  usecase.TxManager
	entityRepo usecase.EntityRepository
	txRepo     usecase.TransactionRepository
	outboxRepo usecase.OutboxRepository
	ping       handler.Pinger
}

func build(ctx context.Context, cfg *config.Config, log zerolog.Logger, reg *prometheus.Registry) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	mode, err := domain.ParseBalanceMode(cfg.BalanceMode)
	if err != nil {
		return nil, err
	}
	strategy, err := usecase.ParseStrategy(cfg.CoordinationStrategy)
	if err != nil {
		return nil, err
	}

	m := metrics.New(reg)

	store, err := newStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if closer, ok := store.ping.(interface{ Close() }); ok {
		a.closers = append(a.closers, closer.Close)
	}

	var (
		redisClient *goredis.Client
		cache       usecase.Cache
		registry    usecase.RefRegistry
		replay      usecase.IdempotencyStore
		locker      usecase.Locker
	)

	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		log.Info().Msg("connected to redis")

		cache = redisRepo.NewCache(redisClient, redisRepo.WithDefaultTTL(cfg.ResolverCacheTTL))
		registry = redisRepo.NewRefRegistry(redisClient)
		replay = redisRepo.NewIdempotencyStore(redisClient)
	}

	if strategy == usecase.StrategyPessimistic {
		switch cfg.LockBackend {
		case "redis":
			locker = redisRepo.NewLocker(redisClient, redisRepo.DefaultLockerOptions(), log)
		default:
			locker = lock.NewLocalLocker()
		}
	}

	coordinator, err := usecase.NewCoordinator(strategy, store.txManager, store.entityRepo, locker, usecase.CoordinatorConfig{
		AcquireTimeout: cfg.LockAcquireTimeout,
		HoldTimeout:    cfg.LockHoldTimeout,
	}, m)
	if err != nil {
		return nil, err
	}

	ids := idgen.NewULIDGenerator()
	resolver := usecase.NewResolver(store.entityRepo, cache, cfg.ResolverCacheTTL)
	engine := usecase.NewBalanceEngine(mode, store.entityRepo, store.txRepo)
	guard := usecase.NewIdempotencyGuard(store.txRepo, registry, cfg.RefReservationTTL, m, log)
	retrier := retry.New(retry.Config{
		MaxRetries:      cfg.RetryMaxAttempts,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		MaxElapsedTime:  retry.DefaultConfig().MaxElapsedTime,
	}, log, m)

	ledgerUC := usecase.NewLedgerUseCase(usecase.LedgerDeps{
		TxManager:   store.txManager,
		TxRepo:      store.txRepo,
		OutboxRepo:  store.outboxRepo,
		Coordinator: coordinator,
		Engine:      engine,
		Guard:       guard,
		Resolver:    resolver,
		Retrier:     retrier,
		IDGen:       ids,
		Metrics:     m,
		Logger:      log,
	})
	entityUC := usecase.NewEntityUseCase(store.txManager, store.entityRepo, store.outboxRepo, resolver, ids, mode, m)
	reconUC := usecase.NewReconciliationUseCase(store.entityRepo, ledgerUC)

	publisher, err := newPublisher(cfg, log, redisClient)
	if err != nil {
		return nil, err
	}
	if closer, ok := publisher.(interface{ Close() error }); ok {
		a.closers = append(a.closers, func() { _ = closer.Close() })
	}
	a.publisher = eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: store.outboxRepo,
		Publisher:  publisher,
		Logger:     log,
		Metrics:    m,
		BatchSize:  cfg.EventBatchSize,
		Interval:   cfg.EventPublishInterval,
	})

	if cfg.RateLimitRPS > 0 {
		a.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)
	}

	checks := map[string]handler.Pinger{"storage": store.ping}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	a.handler = httpAdapter.NewRouter(httpAdapter.RouterConfig{
		EntityHandler:         handler.NewEntityHandler(entityUC),
		TransactionHandler:    handler.NewTransactionHandler(ledgerUC),
		BalanceHandler:        handler.NewBalanceHandler(ledgerUC),
		ReconciliationHandler: handler.NewReconciliationHandler(reconUC),
		HealthHandler:         handler.NewHealthHandler(checks),
		Logger:                log,
		Metrics:               m,
		Gatherer:              reg,
		RateLimiter:           a.rateLimiter,
		IdempotencyStore:      replay,
		IdempotencyTTL:        cfg.IdempotencyTTL,
	})

	log.Info().
		Str("storage", cfg.StorageBackend).
		Str("balance_mode", string(mode)).
		Str("strategy", string(strategy)).
		Str("lock_backend", cfg.LockBackend).
		Bool("redis", redisClient != nil).
		Str("event_publisher", cfg.EventPublisher).
		Msg("ledger wired")

	return a, nil
}

func newStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.StorageBackend == "memory" {
		s := memory.NewStore()
		return &storage{
			txManager:  memory.NewTxManager(s),
			entityRepo: memory.NewEntityRepository(s),
			txRepo:     memory.NewTransactionRepository(s),
			outboxRepo: memory.NewOutboxRepository(s),
		}, nil
	}

	if cfg.MigrateOnStart {
		if err := postgres.RunMigrations(cfg.DatabaseURL, log); err != nil {
			return nil, err
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseTimeout)
	defer cancel()

	pool, err := postgres.NewPoolWithConfig(connectCtx, postgres.PoolConfig{
		DatabaseURL:     cfg.DatabaseURL,
		MaxConns:        cfg.DatabaseMaxConns,
		MinConns:        cfg.DatabaseMinConns,
		MaxConnLifetime: cfg.DatabaseMaxConnLifetime,
		MaxConnIdleTime: cfg.DatabaseMaxConnIdleTime,
		ApplicationName: "ledgercore",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	log.Info().Msg("connected to postgres")

	return &storage{
		txManager: postgresRepo.NewTxManager(pool, postgresRepo.TxConfig{
			LockTimeout:      cfg.DatabaseLockTimeout,
			StatementTimeout: cfg.DatabaseStatementTimeout,
		}),
		entityRepo: postgresRepo.NewEntityRepository(pool),
		txRepo:     postgresRepo.NewTransactionRepository(pool),
		outboxRepo: postgresRepo.NewOutboxRepository(pool),
		ping:       poolPinger{pool},
	}, nil
}

// poolPinger checks and owns the pool.
type poolPinger struct{ pool *pgxpool.Pool }

func (p poolPinger) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p poolPinger) Close() { p.pool.Close() }

func newPublisher(cfg *config.Config, log zerolog.Logger, client *goredis.Client) (eventpublisher.Publisher, error) {
	switch cfg.EventPublisher {
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("%w: redis publisher needs REDIS_URL", domain.ErrValidation)
		}
		return eventpublisher.NewRedisPublisher(client, cfg.RedisEventsChannel), nil
	case "kafka":
		return eventpublisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log), nil
	default:
		return eventpublisher.NewLogPublisher(log), nil
	}
}
