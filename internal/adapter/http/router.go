package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/ledgercore/internal/adapter/http/handler"
	"github.com/iho/ledgercore/internal/adapter/http/middleware"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
	"github.com/iho/ledgercore/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	EntityHandler         *handler.EntityHandler
	TransactionHandler    *handler.TransactionHandler
	BalanceHandler        *handler.BalanceHandler
	ReconciliationHandler *handler.ReconciliationHandler
	HealthHandler         *handler.HealthHandler

	Logger           zerolog.Logger
	Metrics          *metrics.Metrics
	Gatherer         prometheus.Gatherer
	RateLimiter      *middleware.RateLimiter
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery)
	if cfg.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(cfg.Metrics).Wrap)
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL).Wrap)
		}

		r.Route("/entities", func(r chi.Router) {
			r.Post("/", cfg.EntityHandler.Register)
			r.Get("/", cfg.EntityHandler.List)
			r.Get("/{ref}", cfg.EntityHandler.Get)
			r.Put("/{ref}/code", cfg.EntityHandler.ChangeCode)
			r.Get("/{ref}/balance", cfg.BalanceHandler.Get)
			r.Post("/{ref}/rebuild", cfg.BalanceHandler.Rebuild)
			r.Get("/{ref}/transactions", cfg.TransactionHandler.List)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", cfg.TransactionHandler.Submit)
			r.Get("/", cfg.TransactionHandler.List)
			r.Get("/{id}", cfg.TransactionHandler.Get)
			r.Put("/{id}", cfg.TransactionHandler.Amend)
			r.Post("/{id}/request-approval", cfg.TransactionHandler.RequestApproval)
			r.Post("/{id}/approve", cfg.TransactionHandler.Approve)
			r.Post("/{id}/cancel", cfg.TransactionHandler.Cancel)
			r.Post("/{id}/reverse", cfg.TransactionHandler.Reverse)
		})

		r.Post("/transfers", cfg.TransactionHandler.Transfer)
		r.Post("/reconcile", cfg.ReconciliationHandler.Report)
	})

	return r
}
