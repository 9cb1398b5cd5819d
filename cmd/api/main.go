package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"rss-digest/internal/bootstrap"
	"rss-digest/internal/config"
	hhttp "rss-digest/internal/handler/http"
	"rss-digest/internal/handler/http/middleware"
	"rss-digest/internal/handler/http/respond"
	"rss-digest/internal/observability/logging"
	envconfig "rss-digest/internal/pkg/config"
)

func main() {
	logger := initLogger()

	configMetrics := envconfig.NewConfigMetrics("app")
	cfg := config.LoadAppConfig(logger, configMetrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	version := getVersion()
	loaded := &atomic.Bool{}
	handler := setupServer(logger, cfg, engine, configMetrics, loaded, version)

	// スナップショットの読み込みはサーバ起動と並行して行い、完了まで /ready は 503
	go loadStore(ctx, logger, engine, loaded)

	runServer(ctx, cancel, logger, cfg.HTTPAddr, handler, version)
}

// initLogger initializes the process logger and makes it the default.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

// loadStore restores the persisted snapshot. A failure is logged; refreshes
// retry the load and write nothing until it succeeds.
func loadStore(ctx context.Context, logger *slog.Logger, engine *bootstrap.Engine, loaded *atomic.Bool) {
	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := engine.Service.Load(loadCtx); err != nil {
		logger.Error("failed to load snapshot, refreshes will retry it",
			slog.Any("error", respond.SanitizeError(err)))
	}
	loaded.Store(true)
}

// setupServer builds the API handler.
func setupServer(
	logger *slog.Logger,
	cfg config.AppConfig,
	engine *bootstrap.Engine,
	m *envconfig.ConfigMetrics,
	loaded *atomic.Bool,
	version string,
) http.Handler {
	corsConfig := middleware.LoadCORSConfig(logger, m)
	corsConfig.Logger = logger
	logger.Info("CORS enabled",
		slog.Any("allowed_origins", corsConfig.AllowedOrigins),
		slog.Any("allowed_methods", corsConfig.AllowedMethods),
		slog.Int("max_age", corsConfig.MaxAge))

	proxyConfig := middleware.LoadTrustedProxyConfig(logger)
	var ipExtractor middleware.IPExtractor = &middleware.RemoteAddrExtractor{}
	if proxyConfig.Enabled {
		ipExtractor = middleware.NewTrustedProxyExtractor(proxyConfig)
		logger.Info("trusted proxy mode enabled",
			slog.Int("trusted_proxies_count", len(proxyConfig.AllowedCIDRs)))
	}

	limiter := middleware.NewForceRefreshLimiter(cfg.ForceRefreshRate)
	logger.Info("forced refresh limiter configured", slog.Int("per_minute", cfg.ForceRefreshRate))

	router := hhttp.NewRouter(hhttp.RouterConfig{
		Store:       engine.Service,
		Backend:     engine.Store,
		BackendName: cfg.StoreBackend,
		Loaded:      loaded,
		Limiter:     limiter,
		CORS:        corsConfig,
		Location:    cfg.DisplayLocation(),
		StaleAfter:  cfg.StatusStaleAfter,
		Version:     version,
		Logger:      logger,
	})

	return withClientIP(ipExtractor, router)
}

// withClientIP rewrites RemoteAddr to the extracted client address so the
// request log and handlers see the real client behind a trusted proxy.
func withClientIP(e middleware.IPExtractor, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ip := middleware.ClientIP(e, r); ip != "unknown" {
			r2 := r.Clone(r.Context())
			r2.RemoteAddr = ip
			r = r2
		}
		next.ServeHTTP(w, r)
	})
}

// runServer starts the HTTP server and handles graceful shutdown.
func runServer(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, addr string, handler http.Handler, version string) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		IdleTimeout:       120 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	cancel()
	logger.Info("server stopped")
}
