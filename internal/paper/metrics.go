package paper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// ExecutionsTotal counts execution attempts by outcome.
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_scanner_paper_executions_total",
			Help: "Total number of paper execution attempts by outcome",
		},
		[]string{"outcome"},
	)

	// SettlementsTotal counts settled paper trades.
	SettlementsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arb_scanner_paper_settlements_total",
			Help: "Total number of paper trades settled",
		},
	)
)
