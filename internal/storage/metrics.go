package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// SnapshotsInsertedTotal counts stored orderbook snapshots.
	SnapshotsInsertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_scanner_snapshots_inserted_total",
		Help: "Total number of orderbook snapshots inserted",
	})

	// SnapshotsPrunedTotal counts snapshots deleted by retention pruning.
	SnapshotsPrunedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_scanner_snapshots_pruned_total",
		Help: "Total number of orderbook snapshots pruned",
	})

	// SignalsInsertedTotal counts stored signals.
	SignalsInsertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_scanner_signals_inserted_total",
		Help: "Total number of signals inserted",
	})

	// PaperTradesTotal counts recorded paper trades.
	PaperTradesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arb_scanner_paper_trades_total",
		Help: "Total number of paper trades recorded",
	})
)
