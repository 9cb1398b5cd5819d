// Package bootstrap wires the article engine for the API, the worker and
// feedctl: configuration, the snapshot backend, the feed fetcher and the
// refresh service.
package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"rss-digest/internal/config"
	"rss-digest/internal/infra/adapter/persistence/file"
	"rss-digest/internal/infra/adapter/persistence/postgres"
	"rss-digest/internal/infra/adapter/persistence/sqlite"
	"rss-digest/internal/infra/db"
	"rss-digest/internal/infra/fetcher"
	"rss-digest/internal/infra/scraper"
	envconfig "rss-digest/internal/pkg/config"
	"rss-digest/internal/repository"
	"rss-digest/internal/resilience/circuitbreaker"
	"rss-digest/internal/usecase/categorize"
	"rss-digest/internal/usecase/fetch"
	"rss-digest/internal/usecase/parse"
	"rss-digest/internal/usecase/refresh"
)

// Store is a snapshot backend that can be probed and updated in place.
type Store interface {
	repository.SnapshotRepository
	repository.SnapshotUpdater
	repository.Pinger
}

// Engine is a wired refresh service and the resources it holds.
type Engine struct {
	Config   config.AppConfig
	Registry config.Registry
	Service  *refresh.Service
	Fetcher  *scraper.RSSFetcher
	Store    Store

	closers []func() error
}

// NewEngine loads the feed registry, opens the configured backend and wires
// the refresh service. It does not load the snapshot; callers decide when
// (the API marks itself ready afterwards). m may be nil.
func NewEngine(ctx context.Context, logger *slog.Logger, cfg config.AppConfig, m *envconfig.ConfigMetrics) (*Engine, error) {
	reg, err := config.LoadRegistry(logger, cfg.FeedsFile, cfg.FeedsWriteDefaults)
	if err != nil {
		return nil, err
	}

	categorizer, err := categorize.New(cfg.CategorizerConfig(reg.Vocabulary()))
	if err != nil {
		return nil, fmt.Errorf("invalid category vocabulary: %w", err)
	}

	store, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rss := scraper.NewRSSFetcher(NewHTTPClient(cfg.FetchTimeout))

	contentCfg := fetcher.LoadConfigFromEnv(m)
	var content fetch.ContentFetcher
	if contentCfg.Enabled {
		content = fetcher.NewReadabilityFetcher(contentCfg)
		logger.Info("content fetching enabled",
			slog.Int("parallelism", contentCfg.Parallelism),
			slog.Duration("timeout", contentCfg.Timeout))
	} else {
		logger.Info("content fetching disabled")
	}

	refreshCfg := cfg.RefreshConfig()
	refreshCfg.Sources = reg.Feeds

	svc := refresh.NewService(refreshCfg, refresh.Deps{
		Fetcher:     fetch.NewService(rss, content, fetch.ContentFetchConfig{Parallelism: contentCfg.Parallelism}),
		Parser:      parse.New(parse.Config{DescriptionMaxLength: cfg.DescriptionMaxLength}),
		Categorizer: categorizer,
		Repo:        store,
	})

	logger.Info("engine configured",
		slog.String("preset", string(cfg.Preset)),
		slog.Int("feeds", len(reg.Feeds)),
		slog.Int("categories", len(categorizer.Names())),
		slog.String("category_policy", string(cfg.CategoryPolicy)),
		slog.String("keyword_match", string(cfg.KeywordMatch)),
		slog.String("store_backend", cfg.StoreBackend),
		slog.Duration("refresh_ttl", cfg.RefreshTTL))

	e := &Engine{
		Config:   cfg,
		Registry: reg,
		Service:  svc,
		Fetcher:  rss,
		Store:    store,
	}
	if closeStore != nil {
		e.closers = append(e.closers, closeStore)
	}
	return e, nil
}

// Close releases the backend.
func (e *Engine) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// OpenStore opens the snapshot backend named by cfg.StoreBackend, running the
// schema migrations of the SQL backends. The returned close function is nil
// for the file backend.
func OpenStore(ctx context.Context, cfg config.AppConfig) (Store, func() error, error) {
	switch cfg.StoreBackend {
	case config.StoreFile, "":
		return file.NewSnapshotRepo(cfg.SnapshotPath), nil, nil

	case config.StorePostgres:
		conn, err := db.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.MigratePostgres(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return postgres.NewSnapshotRepoWithBreaker(circuitbreaker.NewDBCircuitBreaker(conn)), conn.Close, nil

	case config.StoreSQLite:
		conn, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := db.MigrateSQLite(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return sqlite.NewSnapshotRepo(conn), conn.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// NewHTTPClient returns the feed client: pooled connections, TLS 1.2+ and
// timeout as the per-request bound.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}
