// seriated is the series materialization daemon: it serves the HTTP API
// and calendar feeds, and keeps every active series extended through its
// horizon on a cron schedule.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"seriate/internal/config"
	"seriate/internal/metrics"
	"seriate/internal/sweep"
	"seriate/internal/web"
	"seriate/publish"
	"seriate/recurrence"
	"seriate/series"
	"seriate/storage"
	memstore "seriate/storage/memory"
	"seriate/storage/postgres"
	"seriate/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "seriate.yaml", "path to the config file; written with defaults on first run")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	logger.Info("store open", "driver", cfg.Store.Driver)

	publisher, err := publish.Open(ctx, cfg.Publish)
	if err != nil {
		return fmt.Errorf("open publisher: %w", err)
	}

	gen := recurrence.NewGenerator()
	defer gen.Close()
	metrics.Register()
	metrics.RegisterCacheGauge(gen)

	reconciler := series.NewReconcilerWithConfig(gen, cfg.SeriesConfig(), logger)
	server := web.NewServer(store, reconciler, publisher, logger)
	sweeper := sweep.New(store, reconciler, publisher, logger)

	sched := cron.New()
	if _, err := sched.AddFunc(cfg.MaintenanceCron, func() {
		if _, err := sweeper.Run(context.Background()); err != nil {
			logger.Error("maintenance sweep errored", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("maintenance schedule %q: %w", cfg.MaintenanceCron, err)
	}
	sched.Start()

	// Catch up on extensions missed while the daemon was down.
	go func() {
		if _, err := sweeper.Run(ctx); err != nil {
			logger.Error("startup sweep errored", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		sched.Stop()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-sched.Stop().Done()
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "memory":
		return memstore.New(), nil
	case "sqlite":
		return sqlite.New(cfg.Path)
	case "postgres":
		return postgres.New(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
