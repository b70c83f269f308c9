package testenv

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics of a fixture run.
type Metrics struct {
	// --- Health ---
	ErrorsTotal  *prometheus.CounterVec
	BaselineLost *prometheus.GaugeVec

	// --- Timing ---
	InitializationDur *prometheus.HistogramVec
	SnapshotDur       *prometheus.HistogramVec
	SuiteDur          *prometheus.HistogramVec

	// --- Fixture state ---
	Identities      *prometheus.GaugeVec
	ResolvedSymbols *prometheus.GaugeVec
	SnapshotsTotal  *prometheus.CounterVec
	SuitesTotal     *prometheus.CounterVec
}

// NewMetrics creates and registers the fixture metrics. A nil registerer
// creates unregistered metrics.
func NewMetrics(reg prometheus.Registerer, runName string) *Metrics {
	return &Metrics{
		ErrorsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Subsystem: runName,
			Name:      "fixture_errors_total",
			Help:      "Total number of fixture errors, labeled by error type.",
		}, []string{"type"}),

		BaselineLost: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Subsystem: runName,
			Name:      "fixture_baseline_lost",
			Help:      "1 once a suite failed to restore the chain state, 0 otherwise.",
		}, []string{}),

		InitializationDur: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: runName,
			Name:      "fixture_initialization_duration_seconds",
			Help:      "Time taken to build the fixture context.",
			Buckets:   prometheus.DefBuckets,
		}, []string{}),

		SnapshotDur: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: runName,
			Name:      "fixture_snapshot_duration_seconds",
			Help:      "Time taken by snapshot create and restore calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),

		SuiteDur: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: runName,
			Name:      "fixture_suite_duration_seconds",
			Help:      "Wall time of a suite including its snapshot bracket.",
			Buckets:   prometheus.DefBuckets,
		}, []string{}),

		Identities: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Subsystem: runName,
			Name:      "fixture_identities",
			Help:      "Number of signing identities enumerated for the run.",
		}, []string{}),

		ResolvedSymbols: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Subsystem: runName,
			Name:      "fixture_resolved_symbols",
			Help:      "Number of symbols resolved to contract addresses.",
		}, []string{}),

		SnapshotsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Subsystem: runName,
			Name:      "fixture_snapshots_total",
			Help:      "Snapshot operations, labeled by operation, mode and result.",
		}, []string{"op", "mode", "result"}),

		SuitesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Subsystem: runName,
			Name:      "fixture_suites_total",
			Help:      "Suites run, labeled by result.",
		}, []string{"result"}),
	}
}
