package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/kazna-mp/kazna-mp/internal/app"
	"github.com/kazna-mp/kazna-mp/internal/catalog"
	"github.com/kazna-mp/kazna-mp/internal/feed"
	"github.com/kazna-mp/kazna-mp/internal/flags"
	"github.com/kazna-mp/kazna-mp/internal/notify"
	"github.com/kazna-mp/kazna-mp/internal/observability"
	"github.com/kazna-mp/kazna-mp/internal/platform/cache"
	"github.com/kazna-mp/kazna-mp/internal/platform/db"
	"github.com/kazna-mp/kazna-mp/internal/shared"
	"github.com/kazna-mp/kazna-mp/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	flagStore, err := flags.Load(ctx, flags.NewRepository(dbpool))
	if err != nil {
		logger.Error("load flags", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	notifier := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, logger)

	runner, err := catalog.NewRunner(catalog.RunnerConfig{
		Repo:    catalog.NewRepository(dbpool),
		Feed:    feed.NewLoader(dbpool, cfg.FeedMinQty, logger),
		Flags:   flagStore,
		Locks:   shared.NewKeyedMutex(),
		Audit:   shared.NewAuditLogger(dbpool),
		Metrics: metrics,
		Sink:    catalog.NewSummaryCache(redisClient, cfg.SummaryTTL),
		Logger:  logger,
	})
	if err != nil {
		logger.Error("init runner", slog.Any("error", err))
		os.Exit(1)
	}

	reconcileJob := jobs.NewReconcileJob(runner, logger, notifier)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReconcileMarketplace, Handler: reconcileJob.Handle},
			{Type: jobs.TaskReconcileAll, Handler: reconcileJob.HandleAll},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ReconcileCron, Task: jobs.NewReconcileAllTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	// Kick one full sweep immediately so state converges without
	// waiting for the first cron tick.
	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("init jobs client", slog.Any("error", err))
	} else {
		if _, err := client.EnqueueReconcileAll(ctx); err != nil {
			logger.Warn("enqueue startup sweep", slog.Any("error", err))
		}
		if err := client.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
