package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/draftgate/draftgate/internal/app"
	"github.com/draftgate/draftgate/internal/attachments"
	"github.com/draftgate/draftgate/internal/auth"
	"github.com/draftgate/draftgate/internal/platform/blob"
	"github.com/draftgate/draftgate/internal/platform/db"
	"github.com/draftgate/draftgate/jobs"

	jobmetrics "github.com/draftgate/draftgate/internal/jobs"
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	store, err := blob.NewStore(cfg.BlobDir)
	if err != nil {
		logger.Error("open blob store", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := jobmetrics.NewMetrics(nil)
	attachmentsRepo := attachments.NewRepository(pool)
	sweepJob := jobs.NewBlobSweepJob(store, attachmentsRepo, logger, metrics)
	sessionJob := jobs.NewSessionCleanupJob(auth.NewRepository(pool), logger, metrics)

	sweepTask, err := jobs.NewBlobSweepTask(jobs.BlobSweepPayload{})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}
	sessionTask, err := jobs.NewSessionCleanupTask()
	if err != nil {
		logger.Error("build session cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeBlobSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskTypeSessionCleanup, Handler: sessionJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.BlobSweepCron, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.SessionCleanupCron, Task: sessionTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
