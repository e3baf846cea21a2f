package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// CacheHitsTotal counts cache hits.
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_scanner_cache_hits_total",
		Help: "Total number of cache hits",
	})

	// CacheMissesTotal counts cache misses.
	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_scanner_cache_misses_total",
		Help: "Total number of cache misses",
	})

	// CacheSetsTotal counts cache sets.
	CacheSetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_scanner_cache_sets_total",
		Help: "Total number of cache sets",
	})

	// CacheDeletesTotal counts cache deletes.
	CacheDeletesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_scanner_cache_deletes_total",
		Help: "Total number of cache deletes",
	})
)
