// Package app wires up and runs the application services.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/pxseu/flipper-pc-monitor-backend/internal/config"
	"github.com/pxseu/flipper-pc-monitor-backend/internal/execx"
	"github.com/pxseu/flipper-pc-monitor-backend/internal/gpu"
	"github.com/pxseu/flipper-pc-monitor-backend/internal/httpserver"
	"github.com/pxseu/flipper-pc-monitor-backend/internal/sampler"
	"github.com/pxseu/flipper-pc-monitor-backend/internal/snapshot"
)

const shutdownTimeout = 10 * time.Second

// Run bootstraps the application lifecycle.
func Run(ctx context.Context, baseLogger *slog.Logger, cfg config.Config) error {
	appLogger := baseLogger.With("component", "app")

	runner := execx.NewSystemRunner(cfg.ProbeTimeout, baseLogger.With("component", "execx"))
	chain := gpu.ChainFor(runtime.GOOS, runner, cfg.SysfsRoot, baseLogger)
	appLogger.Info("gpu probe chain assembled", "os", runtime.GOOS, "probes", chain.Probes())

	builder := snapshot.NewBuilder(chain, baseLogger.With("component", "snapshot"))

	samplerManager, err := sampler.NewManager(cfg.SampleInterval, builder, baseLogger)
	if err != nil {
		return fmt.Errorf("init sampler manager: %w", err)
	}

	samplerCtx, samplerCancel := context.WithCancel(ctx)
	defer samplerCancel()

	samplerErrCh := make(chan error, 1)
	go func() {
		samplerErrCh <- samplerManager.Run(samplerCtx)
	}()

	srv := httpserver.New(cfg, baseLogger.With("component", "http"), chain.Probes(), samplerManager)

	appLogger.Info("starting HTTP server", "listen_addr", cfg.ListenAddr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	for {
		select {
		case err := <-errCh:
			samplerCancel()
			if err != nil {
				return err
			}
			if samplerErrCh != nil {
				if samplerErr := <-samplerErrCh; samplerErr != nil && !errors.Is(samplerErr, context.Canceled) {
					return samplerErr
				}
			}
			return nil
		case err := <-samplerErrCh:
			samplerErrCh = nil
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
		case <-ctx.Done():
			appLogger.Info("shutdown initiated", "reason", ctx.Err())

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("http shutdown: %w", err)
			}

			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			samplerCancel()
			if samplerErrCh != nil {
				if samplerErr := <-samplerErrCh; samplerErr != nil && !errors.Is(samplerErr, context.Canceled) {
					return samplerErr
				}
			}

			appLogger.Info("shutdown complete")
			return nil
		}
	}
}
