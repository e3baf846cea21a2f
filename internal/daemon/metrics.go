package daemon

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// IterationsTotal counts completed scan iterations by result.
	IterationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_scanner_daemon_iterations_total",
			Help: "Total number of scan iterations by result",
		},
		[]string{"result"},
	)

	// IterationDuration tracks scan iteration latency.
	IterationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arb_scanner_daemon_iteration_duration_seconds",
			Help:    "Duration of scan iterations",
			Buckets: prometheus.DefBuckets,
		},
	)

	// UniverseSize tracks the cached scan universe size.
	UniverseSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arb_scanner_daemon_universe_size",
			Help: "Number of tickers in the cached scan universe",
		},
	)

	// CursorPosition tracks the batch cursor.
	CursorPosition = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arb_scanner_daemon_cursor_position",
			Help: "Current batch cursor into the scan universe",
		},
	)

	// BackoffsTotal counts outer-loop backoff sleeps by error kind.
	BackoffsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_scanner_daemon_backoffs_total",
			Help: "Total number of outer-loop backoff sleeps by error kind",
		},
		[]string{"kind"},
	)

	// SnapshotsInsertedTotal counts snapshot rows actually inserted.
	SnapshotsInsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arb_scanner_daemon_snapshots_inserted_total",
			Help: "Total number of snapshot rows inserted",
		},
	)
)
