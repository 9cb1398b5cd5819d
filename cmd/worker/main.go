package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"rss-digest/internal/bootstrap"
	"rss-digest/internal/config"
	"rss-digest/internal/handler/http/respond"
	"rss-digest/internal/infra/notifier"
	workerPkg "rss-digest/internal/infra/worker"
	"rss-digest/internal/observability/logging"
	envconfig "rss-digest/internal/pkg/config"
	"rss-digest/internal/usecase/notify"
)

func main() {
	logger := initLogger()

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("refresh_timeout", workerConfig.RefreshTimeout),
		slog.Int("health_port", workerConfig.HealthPort),
		slog.Int("metrics_port", workerConfig.MetricsPort))

	configMetrics := envconfig.NewConfigMetrics("app")
	cfg := config.LoadAppConfig(logger, configMetrics)

	engine, err := bootstrap.NewEngine(ctx, logger, cfg, configMetrics)
	if err != nil {
		logger.Error("failed to initialize engine", slog.Any("error", respond.SanitizeError(err)))
		os.Exit(1)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("failed to close store", slog.Any("error", err))
		}
	}()

	if err := engine.Service.Load(ctx); err != nil {
		logger.Error("failed to load snapshot, refreshes will retry it",
			slog.Any("error", respond.SanitizeError(err)))
	}

	// Start metrics HTTP server
	workerPkg.StartMetricsServer(ctx, logger, workerConfig.MetricsPort, engine.Fetcher)

	// Start health check server
	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	healthServer.SetStoreCheck(engine.Store.Ping)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	notifyService := setupNotifyService(logger, workerConfig)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := notifyService.Shutdown(shutdownCtx); err != nil {
			logger.Error("notification service shutdown failed", slog.Any("error", err))
		}
	}()

	job := &workerPkg.RefreshJob{
		Refresher: engine.Service,
		Timeout:   workerConfig.RefreshTimeout,
		Metrics:   workerMetrics,
		Logger:    logger,
		Notifier:  notifyService,
	}

	startCronWorker(ctx, logger, job, workerConfig, healthServer)
}

// setupNotifyService builds the new-article announcer. With no channel
// enabled it dispatches nothing.
func setupNotifyService(logger *slog.Logger, cfg *workerPkg.WorkerConfig) *notify.Service {
	channels := []notify.Channel{
		notify.NewDiscordChannel(notifier.LoadDiscordConfig(logger)),
		notify.NewSlackChannel(notifier.LoadSlackConfig(logger)),
	}
	svc := notify.NewService(channels, notify.Config{
		MaxConcurrent: cfg.NotifyMaxConcurrent,
		MaxPerCycle:   cfg.NotifyMaxPerCycle,
	})
	for _, h := range svc.ChannelHealth() {
		logger.Info("notification channel configured",
			slog.String("channel", h.Name),
			slog.Bool("enabled", h.Enabled))
	}
	return svc
}

// initLogger initializes the process logger and makes it the default.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// startCronWorker runs the job on the schedule until ctx is canceled. One run
// happens at startup so a fresh deployment does not wait for the first tick.
func startCronWorker(ctx context.Context, logger *slog.Logger, job *workerPkg.RefreshJob, cfg *workerPkg.WorkerConfig, healthServer *workerPkg.HealthServer) {
	// Load timezone
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}

	// 前回の実行が終わっていなければ次のティックは飛ばす
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	_, err = c.AddFunc(cfg.CronSchedule, func() {
		job.Run(ctx)
	})
	if err != nil {
		logger.Error("failed to add cron job", slog.Any("error", err))
		os.Exit(1)
	}

	job.Run(ctx)
	c.Start()

	// Mark as ready after cron is set up
	healthServer.SetReady(true)
	logger.Info("worker started", slog.String("schedule", cfg.CronSchedule), slog.String("timezone", cfg.Timezone))

	<-ctx.Done()
	logger.Info("shutting down worker...")
	healthServer.SetReady(false)

	// 実行中のジョブの完了を待つ
	<-c.Stop().Done()
	logger.Info("worker stopped")
}
