package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Transaction metrics
	TransactionsSubmitted prometheus.Counter
	TransactionsFinalized prometheus.Counter
	TransactionsCancelled prometheus.Counter
	TransactionsReversed  prometheus.Counter
	TransactionErrors     *prometheus.CounterVec
	FinalizeDuration      prometheus.Histogram

	// Coordination metrics
	LockWaitDuration *prometheus.HistogramVec
	Conflicts        *prometheus.CounterVec
	LockTimeouts     *prometheus.CounterVec
	Retries          *prometheus.CounterVec
	DuplicateRefs    prometheus.Counter

	// Balance metrics
	Rebuilds        prometheus.Counter
	DriftDetections prometheus.Counter

	// Entity metrics
	EntitiesRegistered prometheus.Counter

	// Outbox metrics
	EventsPublished prometheus.Counter
	EventsFailed    prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		// Transaction metrics
		TransactionsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "ledgercore_transactions_submitted_total",
			Help: "Total number of transactions submitted as draft",
		}),
		TransactionsFinalized: f.NewCounter(prometheus.CounterOpts{
			Name: "ledgercore_transactions_finalized_total",
			Help: "Total number of transactions finalized",
		}),
		TransactionsCancelled: f.NewCounter(prometheus.CounterOpts{
			Name: "ledgercore_transactions_cancelled_total",
			Help: "Total number of transactions cancelled",
		}),
		TransactionsReversed: f.NewCounter(prometheus.CounterOpts{
			Name: "ledgercore_transactions_reversed_total",
			Help: "Total number of final transactions offset by a compensation",
		}),
		TransactionErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgercore_transaction_errors_total",
				Help: "Total number of transaction errors by operation and kind",
			},
			[]string{"operation", "kind"},
		),
		FinalizeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgercore_finalize_duration_seconds",
			Help:    "Duration of coordinated finalize sections",
			Buckets: prometheus.DefBuckets,
		}),

		// Coordination metrics
		LockWaitDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledgercore_lock_wait_duration_seconds",
				Help:    "Time spent waiting for exclusive entity sections",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"strategy"},
		),
		Conflicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgercore_conflicts_total",
				Help: "Total optimistic version conflicts",
			},
			[]string{"strategy"},
		),
		LockTimeouts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgercore_lock_timeouts_total",
				Help: "Total lock acquisition or hold timeouts",
			},
			[]string{"strategy"},
		),
		Retries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgercore_retries_total",
				Help: "Total retried attempts by cause",
			},
			[]string{"cause"},
		),
		DuplicateRefs: f.NewCounter(prometheus.CounterOpts{
			Name: "ledgercore_duplicate_refs_total",
			Help: "Total submissions rejected for a duplicate reference number",
		}),

		// Balance metrics
		Rebuilds: f.NewCounter(prometheus.CounterOpts{
			Name: "ledgercore_rebuilds_total",
			Help: "Total balance rebuilds from the transaction log",
		}),
		DriftDetections: f.NewCounter(prometheus.CounterOpts{
			Name: "ledgercore_drift_detections_total",
			Help: "Total rebuilds where the cached balance disagreed with the log",
		}),

		// Entity metrics
		EntitiesRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "ledgercore_entities_registered_total",
			Help: "Total number of entities registered",
		}),

		// Outbox metrics
		EventsPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "ledgercore_outbox_events_published_total",
			Help: "Total outbox events published",
		}),
		EventsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "ledgercore_outbox_events_failed_total",
			Help: "Total outbox events that failed to publish",
		}),

		// API metrics
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgercore_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledgercore_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "ledgercore_http_in_flight_requests",
			Help: "Current number of HTTP requests being served",
		}),

		// Rate limiting metrics
		RateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgercore_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"path"},
		),
	}
}
