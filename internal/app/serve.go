package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Yulikepython/drive-cleaner/internal/handler"
	"github.com/Yulikepython/drive-cleaner/internal/middleware"
	"github.com/Yulikepython/drive-cleaner/internal/router"
	"github.com/Yulikepython/drive-cleaner/internal/service"
)

// Serve runs the HTTP API and the cron scheduler until ctx is cancelled, then
// shuts both down and cancels background runs.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	authService, err := service.NewAuthService(cfg.JWTSecret, cfg.JWTTokenTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize auth service: %w", err)
	}

	scheduler := service.NewScheduler(a.Sweep, cfg.DiscoverSchedule, cfg.ReconcileSchedule, a.Location)
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer scheduler.Stop()

	stores := map[string]handler.Pinger{}
	if a.db != nil {
		stores["postgres"] = a.db
	}
	if a.sqlite != nil {
		stores["sqlite"] = handler.PingFunc(a.sqlite.PingContext)
	}

	appRouter := router.New(cfg, middleware.NewAuthMiddleware(authService), router.Handlers{
		Health:  handler.NewHealthHandler(stores, scheduler),
		Ledger:  handler.NewLedgerHandler(a.Ledger),
		Runs:    handler.NewRunsHandler(a.Sweep, a.Audit),
		Audit:   handler.NewAuditHandler(a.Audit),
		Metrics: promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}),
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadTimeout,
		ReadTimeout:       cfg.ServerReadTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	a.Sweep.Shutdown()

	slog.Info("server stopped")
	return nil
}
