package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully stops the daemon, HTTP server and storage. Safe to
// call once Run has returned control.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.probe.SetReady(false)
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	a.wg.Wait()

	// The store closes last: the daemon persists its cursor and run state
	// through it until the loop exits.
	if err := a.store.Close(); err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
		return err
	}

	a.logger.Info("application-shutdown-complete")
	return nil
}
