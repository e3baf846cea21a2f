package app

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown or a fatal daemon
// error. Exit is always through Shutdown so the HTTP server and store close
// cleanly.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("mode", a.cfg.Mode),
		zap.String("run_id", a.RunID()),
		zap.Int("mappings", len(a.mappings)),
		zap.String("log-level", a.cfg.LogLevel))

	daemonErr := a.startComponents()

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort))

	return a.waitForShutdown(daemonErr)
}

// startComponents launches the HTTP server and the scan daemon. The returned
// channel delivers the daemon's exit error, nil on clean stop.
func (a *App) startComponents() <-chan error {
	a.wg.Add(1)
	go a.runHTTPServer()

	daemonErr := make(chan error, 1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		daemonErr <- a.daemon.Run(a.ctx)
	}()

	return daemonErr
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) waitForShutdown(daemonErr <-chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case err := <-daemonErr:
		if err != nil {
			a.logger.Error("daemon-fatal", zap.Error(err))
			runErr = err
		} else {
			a.logger.Info("daemon-finished")
		}
	}

	if err := a.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}

	return runErr
}
