package kalshi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// RequestsTotal counts public API requests per endpoint.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_scanner_kalshi_requests_total",
			Help: "Total number of Kalshi public API requests per endpoint",
		},
		[]string{"endpoint"},
	)
)
