/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the benefit engine HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (environment, then flags)
  2. Open the configured store (memory, sqlite, postgres)
  3. Wire Redis lock and queued audit when REDIS_ADDR is set
  4. Seed the catalog when CATALOG_PATH is set
  5. Configure HTTP router and start serving

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides APP_ADDR)
  -db      SQLite database path (overrides SQLITE_PATH)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SHUTDOWN_TIMEOUT)
  3. Close store, queue client and Redis
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/benefit.db"

  # Run against postgres with the Redis lock
  STORE_DRIVER=postgres PG_DSN=postgres://... REDIS_ADDR=localhost:6379 ./server

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - cmd/worker: Audit queue consumer
*/
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

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/warp/benefit-engine/api"
	"github.com/warp/benefit-engine/benefit"
	"github.com/warp/benefit-engine/catalog"
	"github.com/warp/benefit-engine/config"
	"github.com/warp/benefit-engine/generic"
	"github.com/warp/benefit-engine/jobs"
	"github.com/warp/benefit-engine/lock"
	"github.com/warp/benefit-engine/observability"
	"github.com/warp/benefit-engine/store"
)

func main() {
	// Flags
	port := flag.Int("port", 0, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	if *port > 0 {
		cfg.AppAddr = fmt.Sprintf(":%d", *port)
	}
	if *dbPath != "" {
		cfg.StoreDriver = config.StoreSQLite
		cfg.SQLitePath = *dbPath
	}

	logger := config.NewLogger(cfg)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Initialize store
	st, closeStore, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	metrics := observability.NewMetrics()
	opts := []benefit.Option{
		benefit.WithLogger(logger),
		benefit.WithObserver(metrics),
	}

	if cfg.RedisEnabled() {
		redisClient, err := lock.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		opts = append(opts, benefit.WithLocker(lock.NewRedisLocker(redisClient, lock.WithTTL(cfg.LockTTL))))

		queue := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer func() {
			if err := queue.Close(); err != nil {
				logger.Warn("queue close", slog.Any("error", err))
			}
		}()
		opts = append(opts, benefit.WithAuditSink(jobs.NewAuditPublisher(queue)))
		logger.Info("redis lock and audit queue enabled", slog.String("addr", cfg.RedisAddr))
	}

	clock := generic.SystemClock{Location: cfg.Location()}
	logger.Info("service clock", slog.String("location", clock.Location.String()))
	svc := benefit.NewClaimService(st, clock, opts...)

	if cfg.CatalogPath != "" {
		c, err := catalog.LoadFile(cfg.CatalogPath)
		if err != nil {
			return err
		}
		res, err := catalog.Seed(ctx, svc, c)
		if err != nil {
			return err
		}
		logger.Info("catalog seeded",
			slog.String("path", cfg.CatalogPath),
			slog.Int("periods", res.Periods),
			slog.Int("employees", res.Employees),
			slog.Int("expense_types", res.ExpenseTypes),
			slog.Int("skipped", res.Skipped),
		)
	}

	router := api.NewRouter(api.NewHandler(svc, logger), api.RouterOptions{
		Logger:             logger,
		Metrics:            metrics,
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Production:         cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      http.TimeoutHandler(router, cfg.AppRequestTimeout, "request timeout"),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
