package polymarket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// RequestsTotal counts public API requests per backend (gamma or clob).
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_scanner_polymarket_requests_total",
			Help: "Total number of Polymarket public API requests per backend",
		},
		[]string{"backend"},
	)

	// GammaFallbacksTotal counts snapshots priced from Gamma metadata because
	// the CLOB book was empty or unreachable.
	GammaFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arb_scanner_polymarket_gamma_fallbacks_total",
			Help: "Total number of snapshots priced from Gamma metadata fallback",
		},
	)
)
