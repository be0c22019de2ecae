package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/explotacion/internal/app"
	jobmetrics "github.com/odyssey-erp/explotacion/internal/jobs"
	"github.com/odyssey-erp/explotacion/internal/observability"
	"github.com/odyssey-erp/explotacion/internal/platform/cache"
	"github.com/odyssey-erp/explotacion/internal/platform/db"
	"github.com/odyssey-erp/explotacion/internal/profitability"
	"github.com/odyssey-erp/explotacion/internal/records"
	"github.com/odyssey-erp/explotacion/internal/shared"
	"github.com/odyssey-erp/explotacion/internal/snapshots"
	"github.com/odyssey-erp/explotacion/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	loc, _ := cfg.Location()

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, TimeZone: cfg.TimeZone})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts, err := cache.Options(cfg.RedisAddr)
	if err != nil {
		logger.Error("redis options", slog.Any("error", err))
		os.Exit(1)
	}
	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	store := records.NewStore(pool, logger)
	reportCache := profitability.NewCache(redisClient, cfg.ReportCacheTTL)
	reportService := profitability.NewService(store, reportCache, metrics, loc, logger)

	snapshotService := snapshots.NewService(snapshots.NewRepository(pool), reportService, nil, loc, logger)
	snapshotJob := snapshots.NewJob(snapshotService, jobMetrics, logger)
	warmupJob := jobs.NewWarmupJob(reportService, loc, logger, jobMetrics)
	cleanupJob := jobs.NewCleanupJob(shared.NewIdempotencyStore(pool), jobs.DefaultKeyRetention, logger, jobMetrics)

	warmupTask, err := jobs.NewWarmupTask(jobs.WarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: jobs.RedisOpt(redisOpts),
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskProfitabilitySnapshot, Handler: snapshotJob.Handle},
			{Type: jobs.TaskProfitabilityWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.WarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3), asynq.Queue(jobs.QueueDefault)}},
			{Spec: cfg.CleanupCron, Task: asynq.NewTask(jobs.TaskIdempotencyCleanup, nil), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
		Location:    loc,
		Concurrency: cfg.WorkerConcurrency,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() { _ = metricsServer.Close() }()
	}

	logger.Info("starting worker", slog.Int("concurrency", cfg.WorkerConcurrency), slog.String("warmup_cron", cfg.WarmupCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
