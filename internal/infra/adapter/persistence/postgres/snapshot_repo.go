// Package postgres provides the PostgreSQL implementation of the snapshot
// repository.
package postgres

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

const backendName = "postgres"

// SnapshotRepo stores articles in the articles table, ordered by position,
// and the refresh timestamp in the single-row snapshot_meta table.
type SnapshotRepo struct {
	db *circuitbreaker.DBCircuitBreaker
}

// NewSnapshotRepo creates a new PostgreSQL-backed snapshot repository.
func NewSnapshotRepo(db *sql.DB) *SnapshotRepo {
	return &SnapshotRepo{db: circuitbreaker.NewDBCircuitBreaker(db)}
}

// NewSnapshotRepoWithBreaker uses an existing guarded connection.
func NewSnapshotRepoWithBreaker(db *circuitbreaker.DBCircuitBreaker) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// snapshotLockKey is the advisory lock taken by Update.
const snapshotLockKey int64 = 0x7273_7364 // "rssd"

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

// Update runs load, fn and write in one transaction holding a transaction
// scoped advisory lock, so concurrent updaters on the same database run one
// after the other.
func (repo *SnapshotRepo) Update(ctx context.Context, fn func(entity.Snapshot) (entity.Snapshot, error)) (err error) {
	start := time.Now()
	defer func() { metrics.RecordSnapshotOperation(backendName, "update", time.Since(start), err) }()

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Update: BeginTx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, snapshotLockKey); err != nil {
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
	const metaQuery = `SELECT last_refresh_at FROM snapshot_meta WHERE id = 1`

	var last sql.NullTime
	switch err := q.QueryRowContext(ctx, metaQuery).Scan(&last); {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return entity.Snapshot{}, fmt.Errorf("meta: %w", err)
	}
	if last.Valid {
		snap.LastRefreshAt = last.Time.UTC()
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
			published sql.NullTime
			cats      []byte
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Link, &a.Description,
			&published, &cats, &a.FirstSeenAt, &a.Source); err != nil {
			return entity.Snapshot{}, fmt.Errorf("Scan: %w", err)
		}
		if err := json.Unmarshal(cats, &a.Categories); err != nil {
			return entity.Snapshot{}, fmt.Errorf("%w: categories of %s: %v", repository.ErrCorruptSnapshot, a.ID, err)
		}
		if published.Valid {
			t := published.Time.UTC()
			a.PublishedAt = &t
		}
		a.FirstSeenAt = a.FirstSeenAt.UTC()
		snap.Articles = append(snap.Articles, a)
	}
	if err := rows.Err(); err != nil {
		return entity.Snapshot{}, fmt.Errorf("rows.Err: %w", err)
	}
	return snap, nil
}

func write(ctx context.Context, tx *sql.Tx, snap entity.Snapshot) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM articles`); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO articles (id, position, title, link, description, published_at, categories, first_seen_at, source)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)`)
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
			published = a.PublishedAt.UTC()
		}
		if _, err := stmt.ExecContext(ctx, a.ID, i, a.Title, a.Link, a.Description,
			published, string(cats), a.FirstSeenAt.UTC(), a.Source); err != nil {
			return fmt.Errorf("insert %s: %w", a.ID, err)
		}
	}

	var last any
	if !snap.LastRefreshAt.IsZero() {
		last = snap.LastRefreshAt.UTC()
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO snapshot_meta (id, last_refresh_at) VALUES (1, $1)
ON CONFLICT (id) DO UPDATE SET last_refresh_at = EXCLUDED.last_refresh_at`, last); err != nil {
		return fmt.Errorf("meta: %w", err)
	}
	return nil
}

// Ping checks the connection through the circuit breaker.
func (repo *SnapshotRepo) Ping(ctx context.Context) error {
	return repo.db.PingContext(ctx)
}
