// Command worker consumes the audit queue and writes entries to the store.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/warp/benefit-engine/config"
	"github.com/warp/benefit-engine/jobs"
	"github.com/warp/benefit-engine/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := config.NewLogger(cfg)

	if !cfg.RedisEnabled() {
		logger.Error("REDIS_ADDR is required for the worker")
		os.Exit(1)
	}
	if cfg.StoreDriver == config.StoreMemory {
		logger.Error("the worker needs a shared store; memory is per-process")
		os.Exit(1)
	}

	st, closeStore, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	audit := jobs.NewAuditHandler(st, logger)
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskClaimAudit, Handler: audit.Handle},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting", slog.Int("concurrency", cfg.WorkerConcurrency), slog.String("store", cfg.StoreDriver))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
