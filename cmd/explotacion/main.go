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

	"github.com/odyssey-erp/explotacion/cmd/explotacion/cli"
	"github.com/odyssey-erp/explotacion/internal/app"
	"github.com/odyssey-erp/explotacion/internal/budget"
	"github.com/odyssey-erp/explotacion/internal/cpr"
	"github.com/odyssey-erp/explotacion/internal/observability"
	"github.com/odyssey-erp/explotacion/internal/platform/cache"
	"github.com/odyssey-erp/explotacion/internal/platform/db"
	"github.com/odyssey-erp/explotacion/internal/profitability"
	profitabilityhttp "github.com/odyssey-erp/explotacion/internal/profitability/http"
	"github.com/odyssey-erp/explotacion/internal/records"
	"github.com/odyssey-erp/explotacion/internal/shared"
	"github.com/odyssey-erp/explotacion/internal/snapshots"
	"github.com/odyssey-erp/explotacion/jobs"
	"github.com/odyssey-erp/explotacion/report"
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

	redisOpts, err := cache.Options(cfg.RedisAddr)
	if err != nil {
		logger.Error("redis options", slog.Any("error", err))
		os.Exit(1)
	}
	queueOpts := jobs.RedisOpt(redisOpts)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		jobsCLI := cli.NewJobsCLI(queueOpts)
		err := jobsCLI.Run(ctx, os.Args[2:], os.Stdout)
		_ = jobsCLI.Close()
		if err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(2)
		}
		return
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, TimeZone: cfg.TimeZone})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	store := records.NewStore(pool, logger)
	reportCache := profitability.NewCache(redisClient, cfg.ReportCacheTTL)
	if err := reportCache.ListenForInvalidation(ctx, profitability.BumpChannel); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}
	reportService := profitability.NewService(store, reportCache, metrics, loc, logger)
	budgetService := budget.NewService(store, reportService, logger)
	cprService := cpr.NewService(records.NewCPRStore(store), loc)

	jobClient, err := jobs.NewClient(queueOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	snapshotService := snapshots.NewService(snapshots.NewRepository(pool), reportService, jobClient, loc, logger)

	pdfClient := report.NewClient(cfg.GotenbergURL, cfg.GotenbergTimeout)
	var printer profitabilityhttp.StatementPrinter
	if pdfClient.Ready() {
		renderer, err := report.NewStatementRenderer(pdfClient)
		if err != nil {
			logger.Error("parse statement template", slog.Any("error", err))
			os.Exit(1)
		}
		printer = renderer
	}

	profitabilityHandler := profitabilityhttp.NewHandler(profitabilityhttp.Deps{
		Reports:     reportService,
		Budget:      budgetService,
		CPR:         cprService,
		Snapshots:   snapshotService,
		PDF:         printer,
		Idempotency: shared.NewIdempotencyStore(pool),
		Location:    loc,
		Logger:      logger,
	})

	inspector := asynq.NewInspector(queueOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		Metrics:              metrics,
		ProfitabilityHandler: profitabilityHandler,
		ReportHandler:        report.NewHandler(pdfClient, logger),
		JobHandler:           jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("tz", loc.String()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
