package arbitrage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// EvaluationsTotal counts evaluated hedge directions by signal kind.
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_scanner_evaluations_total",
			Help: "Total number of hedge directions evaluated",
		},
		[]string{"kind"},
	)

	// SignalsTotal counts classified signals by kind and class.
	SignalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_scanner_signals_total",
			Help: "Total number of opportunity and near-miss signals",
		},
		[]string{"kind", "class"},
	)

	// RejectsTotal counts rejected directions by reason.
	RejectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_scanner_evaluation_rejects_total",
			Help: "Total number of hedge directions rejected by the evaluator",
		},
		[]string{"reason"},
	)

	// BufEdgeObserved tracks the buffered edge of every priced direction.
	BufEdgeObserved = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arb_scanner_buf_edge",
		Help:    "Buffered edge of evaluated hedge directions",
		Buckets: []float64{-0.10, -0.05, -0.02, -0.01, 0, 0.005, 0.01, 0.02, 0.05, 0.10},
	})
)
