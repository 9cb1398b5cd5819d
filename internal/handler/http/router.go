package http

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"rss-digest/internal/handler/http/middleware"
	"rss-digest/internal/handler/http/requestid"
	"rss-digest/internal/observability/tracing"
	"rss-digest/internal/repository"
)

// RouterConfig collects what the API routes need.
type RouterConfig struct {
	Store          ArticleStore
	Backend        repository.Pinger
	BackendName    string
	Loaded         *atomic.Bool
	Limiter        *middleware.ForceRefreshLimiter
	CORS           middleware.CORSConfig
	Location       *time.Location
	StaleAfter     time.Duration
	RequestTimeout time.Duration
	Version        string
	Logger         *slog.Logger
}

// NewRouter builds the API handler.
//
// Routes:
//
//	GET /articles, /api/articles  articles of ?category=, optional ?force_update=true
//	GET /categories               known categories with labels and counts
//	GET /status                   store report, always 200
//	GET /health, /ready, /live    probes
//	GET /metrics                  Prometheus
//
// Every route runs behind request ids, tracing, logging, panic recovery,
// metrics and CORS; the API routes additionally get input limits, a method
// guard and a timeout.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	api := func(h http.Handler) http.Handler {
		return Chain(h,
			InputValidation(),
			AllowMethods(http.MethodGet),
			Timeout(cfg.RequestTimeout),
		)
	}
	probe := func(h http.Handler) http.Handler {
		return Chain(h, AllowMethods(http.MethodGet))
	}

	articles := api(&ArticlesHandler{Store: cfg.Store, Limiter: cfg.Limiter, Location: cfg.Location})

	mux := http.NewServeMux()
	mux.Handle("/articles", articles)
	mux.Handle("/api/articles", articles)
	mux.Handle("/categories", api(&CategoriesHandler{Store: cfg.Store}))
	mux.Handle("/status", api(&StatusHandler{Store: cfg.Store, Location: cfg.Location, StaleAfter: cfg.StaleAfter}))

	mux.Handle("/health", probe(&HealthHandler{
		Store:   cfg.Backend,
		Backend: cfg.BackendName,
		Status:  storeSnapshot(cfg.Store),
		Version: cfg.Version,
		Logger:  cfg.Logger,
	}))
	mux.Handle("/ready", probe(&ReadyHandler{Loaded: cfg.Loaded, Store: cfg.Backend}))
	mux.Handle("/live", probe(LiveHandler{}))
	mux.Handle("/metrics", probe(MetricsHandler()))

	return Chain(mux,
		requestid.Middleware,
		tracing.Middleware,
		Logging(cfg.Logger),
		Recover(cfg.Logger),
		MetricsMiddleware,
		middleware.CORS(cfg.CORS),
	)
}

func storeSnapshot(store ArticleStore) func() StatusSnapshot {
	if store == nil {
		return nil
	}
	return func() StatusSnapshot {
		rep := store.Status()
		return StatusSnapshot{Articles: rep.Articles, Warnings: rep.Warnings}
	}
}
