// Package sqlite provides the SQLite implementation of the snapshot
// repository. Timestamps are stored as RFC 3339 text.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rss-digest/internal/domain/entity"
	"rss-digest/internal/observability/metrics"
	"rss-digest/internal/repository"
	"rss-digest/internal/resilience/circuitbreaker"
)

const (
	backendName    = "sqlite"
	lastRefreshKey = "last_refresh_at"
)

// SnapshotRepo implements repository.SnapshotRepository using SQLite.
type SnapshotRepo struct {
	db *circuitbreaker.DBCircuitBreaker
}

// NewSnapshotRepo creates a new SQLite-backed snapshot repository.
func NewSnapshotRepo(db *sql.DB) *SnapshotRepo {
	return &SnapshotRepo{db: circuitbreaker.NewDBCircuitBreaker(db)}
}

// querier is satisfied by the guarded connection and by *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Load reads the snapshot.
func (repo *SnapshotRepo) Load(ctx context.Context) (snap entity.Snapshot, err error) {
	start := time.Now()
	defer func() { metrics.RecordSnapshotOperation(backendName, "load", time.Since(start), err) }()

	snap, err = load(ctx, repo.db)
	if err != nil {
		return entity.Snapshot{}, fmt.Errorf("Load: %w", err)
	}
	return snap, nil
}

// Save replaces the whole collection inside one transaction.
func (repo *SnapshotRepo) Save(ctx context.Context, snap entity.Snapshot) (err error) {
	start := time.Now()
	defer func() { metrics.RecordSnapshotOperation(backendName, "save", time.Since(start), err) }()

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Save: BeginTx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := write(ctx, tx, snap); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Save: Commit: %w", err)
	}
	return nil
}

// Update runs load, fn and write in one transaction. The transaction starts
// with a write so it holds the database write lock before reading; other
// connections and processes wait on busy_timeout until it commits.
func (repo *SnapshotRepo) Update(ctx context.Context, fn func(entity.Snapshot) (entity.Snapshot, error)) (err error) {
	start := time.Now()
	defer func() { metrics.RecordSnapshotOperation(backendName, "update", time.Since(start), err) }()

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Update: BeginTx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE meta SET value = value WHERE key = ?`, lastRefreshKey); err != nil {
		return fmt.Errorf("Update: lock: %w", err)
	}
	current, err := load(ctx, tx)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if err := write(ctx, tx, next); err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Update: Commit: %w", err)
	}
	return nil
}

func load(ctx context.Context, q querier) (snap entity.Snapshot, err error) {
	var last string
	switch err := q.QueryRowContext(ctx,
		`SELECT value FROM meta WHERE key = ?`, lastRefreshKey).Scan(&last); {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return entity.Snapshot{}, fmt.Errorf("meta: %w", err)
	default:
		if snap.LastRefreshAt, err = parseTime(last); err != nil {
			return entity.Snapshot{}, fmt.Errorf("%w: last refresh: %v", repository.ErrCorruptSnapshot, err)
		}
	}

	const query = `
SELECT id, title, link, description, published_at, categories, first_seen_at, source
FROM articles
ORDER BY position
`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return entity.Snapshot{}, fmt.Errorf("QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snap.Articles = make([]entity.Article, 0, 64)
	for rows.Next() {
		var (
			a         entity.Article
			published sql.NullString
			cats      string
			firstSeen string
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Link, &a.Description,
			&published, &cats, &firstSeen, &a.Source); err != nil {
			return entity.Snapshot{}, fmt.Errorf("Scan: %w", err)
		}
		if err := json.Unmarshal([]byte(cats), &a.Categories); err != nil {
			return entity.Snapshot{}, fmt.Errorf("%w: categories of %s: %v", repository.ErrCorruptSnapshot, a.ID, err)
		}
		if a.FirstSeenAt, err = parseTime(firstSeen); err != nil {
			return entity.Snapshot{}, fmt.Errorf("%w: first_seen_at of %s: %v", repository.ErrCorruptSnapshot, a.ID, err)
		}
		if published.Valid && published.String != "" {
			t, err := parseTime(published.String)
			if err != nil {
				return entity.Snapshot{}, fmt.Errorf("%w: published_at of %s: %v", repository.ErrCorruptSnapshot, a.ID, err)
			}
			a.PublishedAt = &t
		}
		snap.Articles = append(snap.Articles, a)
	}
	if err := rows.Err(); err != nil {
		return entity.Snapshot{}, fmt.Errorf("rows.Err: %w", err)
	}
	return snap, nil
}

func write(ctx context.Context, tx *sql.Tx, snap entity.Snapshot) (err error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM articles`); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO articles (id, position, title, link, description, published_at, categories, first_seen_at, source)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, a := range snap.Articles {
		cats, err := json.Marshal(a.Categories)
		if err != nil {
			return fmt.Errorf("categories of %s: %w", a.ID, err)
		}
		var published any
		if a.PublishedAt != nil {
			published = formatTime(*a.PublishedAt)
		}
		if _, err := stmt.ExecContext(ctx, a.ID, i, a.Title, a.Link, a.Description,
			published, string(cats), formatTime(a.FirstSeenAt), a.Source); err != nil {
			return fmt.Errorf("insert %s: %w", a.ID, err)
		}
	}

	if snap.LastRefreshAt.IsZero() {
		_, err = tx.ExecContext(ctx, `DELETE FROM meta WHERE key = ?`, lastRefreshKey)
	} else {
		_, err = tx.ExecContext(ctx, `
INSERT INTO meta (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, lastRefreshKey, formatTime(snap.LastRefreshAt))
	}
	if err != nil {
		return fmt.Errorf("meta: %w", err)
	}
	return nil
}

// Ping checks the connection through the circuit breaker.
func (repo *SnapshotRepo) Ping(ctx context.Context) error {
	return repo.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
