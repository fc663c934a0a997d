package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/artisouq/artisouq/internal/app"
	jobmetrics "github.com/artisouq/artisouq/internal/jobs"
	"github.com/artisouq/artisouq/internal/pilots"
	"github.com/artisouq/artisouq/internal/platform/db"
	"github.com/artisouq/artisouq/internal/realtime"
	"github.com/artisouq/artisouq/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)

	// Reconciliation only needs the repository side; no order orchestration
	// runs from the worker.
	pilotsRepo := pilots.NewRepository(pool)
	pilotsService := pilots.NewService(pilotsRepo, nil, realtime.NopNotifier{}, logger)

	statsJob := jobs.NewPilotStatsJob(pilotsService, logger, metrics)
	pruneJob := jobs.NewCartPruneJob(pool, logger, metrics)

	pruneTask, err := jobs.NewCartPruneTask(jobs.CartPrunePayload{})
	if err != nil {
		logger.Error("build cart prune task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPilotStatsReconcile, Handler: statsJob.Handle},
			{Type: jobs.TaskCartPrune, Handler: pruneJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.PilotStatsCron, Task: jobs.NewPilotStatsTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.CartPruneCron, Task: pruneTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
