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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/codesync/internal/config"
	"github.com/iudanet/codesync/internal/server"
	"github.com/iudanet/codesync/internal/server/metrics"
	"github.com/iudanet/codesync/internal/server/middleware"
	"github.com/iudanet/codesync/internal/server/session"
	"github.com/iudanet/codesync/internal/server/storage"
	"github.com/iudanet/codesync/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if cfg.ShowVersion {
		printVersion()
		os.Exit(0)
	}

	logger, err := cfg.NewLogger(os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("Starting codesync server",
		"version", Version,
		"address", cfg.Server.Address,
		"storage", cfg.Storage.Driver)

	var snapshots storage.SnapshotStorage
	if cfg.Storage.Driver == config.StorageSQLite {
		db, err := sqlite.New(ctx, cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("failed to open snapshot storage: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("Failed to close snapshot storage", "error", err)
			}
		}()
		snapshots = db
		logger.Info("Snapshot storage opened", "dsn", cfg.Storage.DSN)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	manager := session.NewManager(cfg.SessionOptions(), snapshots, m, logger)

	var limiter *middleware.RateLimiter
	if cfg.RateLimitEnabled() {
		limiter = middleware.NewRateLimiter(cfg.Limit(), cfg.RateLimit.Burst, cfg.RateLimit.MaxIdle, logger)
		defer limiter.Stop()
	}

	srv := &http.Server{
		Addr: cfg.Server.Address,
		Handler: server.NewRouter(server.Deps{
			Logger:    logger,
			Sessions:  manager,
			Snapshots: manager,
			Metrics:   m,
			Limiter:   limiter,
			Version:   Version,
			Transport: cfg.TransportOptions(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Hijacked websocket-соединения http.Server не закрывает,
		// их закрывают координаторы
		var errs []error
		if err := manager.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("session shutdown: %w", err))
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Server stopped")
	return nil
}

func printVersion() {
	fmt.Printf("codesync server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
