package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage counters and histograms for the settlement core.

var (
	// Verification
	VerificationDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "verification",
		Name:      "decisions_total",
		Help:      "Total verification decisions by result code",
	}, []string{"code"})

	HashMismatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "verification",
		Name:      "hash_mismatches_total",
		Help:      "Total inbound callbacks rejected with a digest mismatch",
	}, []string{"merchant"})

	// Routing
	RoutingOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "routing",
		Name:      "outcomes_total",
		Help:      "Total routing outcomes by outcome kind",
	}, []string{"outcome"})

	RoutingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "settlement",
		Subsystem: "routing",
		Name:      "route_duration_seconds",
		Help:      "Ledger routing duration including persistence",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	// Callback processing
	CallbacksProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "callbacks",
		Name:      "processed_total",
		Help:      "Total inbound callbacks processed, by terminal stage",
	}, []string{"stage"})

	CallbackDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "settlement",
		Subsystem: "callbacks",
		Name:      "process_duration_seconds",
		Help:      "End-to-end callback processing duration",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	// Sweeper
	SweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "sweeper",
		Name:      "runs_total",
		Help:      "Total reconciliation sweeps executed",
	})

	SweepTransitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "sweeper",
		Name:      "transitions_total",
		Help:      "Total stale transactions forced to FAILED by the sweeper",
	})

	SweepOverlapSkipsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "sweeper",
		Name:      "overlap_skips_total",
		Help:      "Total sweep invocations skipped because a sweep was already running",
	})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "settlement",
		Subsystem: "sweeper",
		Name:      "sweep_duration_seconds",
		Help:      "Reconciliation sweep duration",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// Merchant directory cache
	MerchantCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "cache",
		Name:      "merchant_hits_total",
		Help:      "Total merchant directory cache hits",
	})

	MerchantCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "cache",
		Name:      "merchant_misses_total",
		Help:      "Total merchant directory cache misses",
	})

	// Audit
	AuditEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "audit",
		Name:      "events_total",
		Help:      "Total audit events emitted by type",
	}, []string{"type"})

	AuditStreamPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "audit",
		Name:      "stream_publish_failures_total",
		Help:      "Total audit events that failed to publish to the stream transport",
	})

	// Alerts
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Total alerts sent",
	}, []string{"channel", "alert_type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "settlement",
		Subsystem: "alert",
		Name:      "cooldown_skipped_total",
		Help:      "Total alerts skipped due to cooldown",
	}, []string{"channel", "alert_type"})

	// Database pool
	DBPoolOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "settlement",
		Subsystem: "postgres",
		Name:      "db_pool_open",
		Help:      "Current number of open PostgreSQL connections in the pool",
	})

	DBPoolInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "settlement",
		Subsystem: "postgres",
		Name:      "db_pool_in_use",
		Help:      "Current number of in-use PostgreSQL connections in the pool",
	})

	DBPoolIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "settlement",
		Subsystem: "postgres",
		Name:      "db_pool_idle",
		Help:      "Current number of idle PostgreSQL connections in the pool",
	})

	DBPoolWaitCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "settlement",
		Subsystem: "postgres",
		Name:      "db_pool_wait_count",
		Help:      "Cumulative count of waits for PostgreSQL connections from pool",
	})
)
