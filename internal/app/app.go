// Package app wires the scanner together: config, storage, venue providers,
// control plane, paper executor, scan daemon and the ops HTTP server.
package app

import (
	"context"
	"sync"

	"github.com/mselser95/arb-scanner/internal/botctl"
	"github.com/mselser95/arb-scanner/internal/daemon"
	"github.com/mselser95/arb-scanner/internal/storage"
	"github.com/mselser95/arb-scanner/pkg/config"
	"github.com/mselser95/arb-scanner/pkg/healthprobe"
	"github.com/mselser95/arb-scanner/pkg/httpserver"
	"github.com/mselser95/arb-scanner/pkg/types"
	"go.uber.org/zap"
)

// App is the daemon-mode application orchestrator.
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	probe      *healthprobe.Probe
	httpServer *httpserver.Server
	store      storage.Store
	control    *botctl.Reader
	daemon     *daemon.Daemon
	mappings   []types.MarketMapping
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// Options selects what the daemon scans.
type Options struct {
	UseInternal bool
	UseCross    bool
}

// RunID returns the run identifier assigned at construction.
func (a *App) RunID() string {
	return a.daemon.RunStatus().RunID
}
