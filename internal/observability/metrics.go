package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// hazard engine.
type Metrics struct {
	ReportsConsumed prometheus.Counter
	NormalizeErrors prometheus.Counter
	UpsertsApplied  prometheus.Counter
	StaleSeqDrops   prometheus.Counter
	MatchesEmitted  prometheus.Counter
	EngineRunning   prometheus.Gauge
	HazardsActive   prometheus.Gauge

	// Sweep metrics.
	HazardsResolved prometheus.Counter
	SweepDuration   prometheus.Histogram

	// Dispatch metrics.
	DedupSkips       prometheus.Counter
	DispatchAttempts *prometheus.CounterVec   // labels: channel, outcome={sent,transient,permanent}
	DispatchDuration *prometheus.HistogramVec // labels: channel
	RetryQueueDepth  prometheus.Gauge
	LedgerExpired    prometheus.Counter
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ReportsConsumed,
		m.NormalizeErrors,
		m.UpsertsApplied,
		m.StaleSeqDrops,
		m.MatchesEmitted,
		m.EngineRunning,
		m.HazardsActive,
		m.HazardsResolved,
		m.SweepDuration,
		m.DedupSkips,
		m.DispatchAttempts,
		m.DispatchDuration,
		m.RetryQueueDepth,
		m.LedgerExpired,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReportsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_engine",
			Name:      "reports_consumed_total",
			Help:      "Total raw reports read from the ingest topic.",
		}),
		NormalizeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_engine",
			Name:      "normalize_errors_total",
			Help:      "Total reports dropped by normalization.",
		}),
		UpsertsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_engine",
			Name:      "upserts_applied_total",
			Help:      "Total index mutations applied.",
		}),
		StaleSeqDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_engine",
			Name:      "stale_seq_drops_total",
			Help:      "Total reports ignored for carrying a stale sequence number.",
		}),
		MatchesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_engine",
			Name:      "matches_emitted_total",
			Help:      "Total (hazard, recipient, template) matches handed to dispatch.",
		}),
		EngineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazard_engine",
			Name:      "running",
			Help:      "1 when the ingest loop is active, 0 when shut down.",
		}),
		HazardsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazard_engine",
			Name:      "hazards_active",
			Help:      "Number of hazards currently in the Active state.",
		}),
		HazardsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_engine",
			Name:      "hazards_resolved_total",
			Help:      "Total hazards resolved by the silence-window sweep.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazard_engine",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one stale-hazard sweep.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		DedupSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_engine",
			Name:      "dedup_skips_total",
			Help:      "Total dispatches skipped because the ledger key was already reserved.",
		}),
		DispatchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_engine",
			Name:      "dispatch_attempts_total",
			Help:      "Delivery attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hazard_engine",
			Name:      "dispatch_duration_seconds",
			Help:      "Channel adapter send duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"channel"}),
		RetryQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazard_engine",
			Name:      "retry_queue_depth",
			Help:      "Ledger entries currently in the Retrying state.",
		}),
		LedgerExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_engine",
			Name:      "ledger_expired_total",
			Help:      "Total ledger entries expired by attempt or age limits.",
		}),
	}
}
