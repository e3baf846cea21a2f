package venue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// SnapshotsFetchedTotal counts snapshots produced per venue.
	SnapshotsFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_scanner_venue_snapshots_fetched_total",
			Help: "Total number of market snapshots fetched per venue",
		},
		[]string{"venue"},
	)

	// MarketsDroppedTotal counts markets dropped at the venue boundary.
	MarketsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_scanner_venue_markets_dropped_total",
			Help: "Total number of markets dropped before evaluation",
		},
		[]string{"venue", "reason"},
	)

	// FetchDurationSeconds tracks snapshot fetch latency per venue.
	FetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arb_scanner_venue_fetch_duration_seconds",
			Help:    "Duration of snapshot fetches per venue",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"venue"},
	)
)
