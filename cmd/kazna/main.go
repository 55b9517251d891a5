package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

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
	"github.com/kazna-mp/kazna-mp/internal/suppress"
	"github.com/kazna-mp/kazna-mp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
	auditLogger := shared.NewAuditLogger(dbpool)
	notifier := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, logger)
	locks := shared.NewKeyedMutex()

	catalogRepo := catalog.NewRepository(dbpool)
	feedLoader := feed.NewLoader(dbpool, cfg.FeedMinQty, logger)
	summaryCache := catalog.NewSummaryCache(redisClient, cfg.SummaryTTL)

	runner, err := catalog.NewRunner(catalog.RunnerConfig{
		Repo:    catalogRepo,
		Feed:    feedLoader,
		Flags:   flagStore,
		Locks:   locks,
		Audit:   auditLogger,
		Metrics: metrics,
		Sink:    summaryCache,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("init runner", slog.Any("error", err))
		os.Exit(1)
	}

	ledger, err := suppress.NewLedger(suppress.LedgerConfig{
		Repo:               suppress.NewRepository(dbpool),
		Flags:              flagStore,
		Locks:              locks,
		Reconciler:         runner,
		Audit:              auditLogger,
		Notifier:           notifier,
		Metrics:            metrics,
		Logger:             logger,
		ReconcileOnRestore: cfg.ReconcileOnRestore,
	})
	if err != nil {
		logger.Error("init ledger", slog.Any("error", err))
		os.Exit(1)
	}

	catalogHandler := catalog.NewHandler(logger, runner, catalogRepo, summaryCache)
	suppressHandler := suppress.NewHandler(logger, ledger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		CatalogHandler:  catalogHandler,
		SuppressHandler: suppressHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
