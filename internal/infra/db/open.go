package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"rss-digest/internal/pkg/config"
	"rss-digest/internal/resilience/retry"
)

// pingTimeout bounds each connection check attempt.
const pingTimeout = 5 * time.Second

// ConnectionConfig holds database connection pool configuration.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConnectionConfig returns the default connection pool configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}

// OpenPostgres opens a pgx-backed pool for dsn, applies the pool settings
// from the environment and verifies the connection. Transient ping failures
// are retried with backoff.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("OpenPostgres: DATABASE_URL not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("OpenPostgres: sql.Open: %w", err)
	}

	cfg := getConnectionConfigFromEnv()
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	slog.Info("database connection pool configured",
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
		slog.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
		slog.Duration("conn_max_idle_time", cfg.ConnMaxIdleTime))

	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("OpenPostgres: ping: %w", err)
	}

	slog.Info("database connection established successfully", slog.String("backend", "postgres"))
	return db, nil
}

// OpenSQLite opens (creating when needed) the SQLite database at path.
// SQLite allows a single writer, so the pool is capped at one connection.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("OpenSQLite: creating dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("OpenSQLite: sql.Open: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA journal_mode = WAL`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("OpenSQLite: %s: %w", pragma, err)
		}
	}

	slog.Info("database connection established successfully",
		slog.String("backend", "sqlite"),
		slog.String("path", path))
	return db, nil
}

func ping(ctx context.Context, db *sql.DB) error {
	return retry.WithBackoff(ctx, retry.DBConfig(), func() error {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		return db.PingContext(pctx)
	})
}

// getConnectionConfigFromEnv reads connection pool configuration from environment variables.
// Invalid or non-positive values fall back to the defaults with a warning.
func getConnectionConfigFromEnv() ConnectionConfig {
	cfg := DefaultConnectionConfig()
	positiveInt := func(v int) error { return config.ValidateIntRange(v, 1, 1000) }

	cfg.MaxOpenConns = intResult("DB_MAX_OPEN_CONNS",
		config.LoadEnvInt("DB_MAX_OPEN_CONNS", cfg.MaxOpenConns, positiveInt))
	cfg.MaxIdleConns = intResult("DB_MAX_IDLE_CONNS",
		config.LoadEnvInt("DB_MAX_IDLE_CONNS", cfg.MaxIdleConns, positiveInt))
	cfg.ConnMaxLifetime = durationResult("DB_CONN_MAX_LIFETIME",
		config.LoadEnvDuration("DB_CONN_MAX_LIFETIME", cfg.ConnMaxLifetime, config.ValidatePositiveDuration))
	cfg.ConnMaxIdleTime = durationResult("DB_CONN_MAX_IDLE_TIME",
		config.LoadEnvDuration("DB_CONN_MAX_IDLE_TIME", cfg.ConnMaxIdleTime, config.ValidatePositiveDuration))

	return cfg
}

func intResult(key string, r config.ConfigLoadResult) int {
	warnFallback(key, r)
	return r.Value.(int)
}

func durationResult(key string, r config.ConfigLoadResult) time.Duration {
	warnFallback(key, r)
	return r.Value.(time.Duration)
}

func warnFallback(key string, r config.ConfigLoadResult) {
	for _, w := range r.Warnings {
		slog.Warn("database pool configuration fallback",
			slog.String("field", key),
			slog.String("warning", w))
	}
}
