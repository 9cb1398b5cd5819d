package db

import (
	"context"
	"database/sql"
)

// postgresSchema creates the snapshot tables. Article order is kept in
// position so Load returns the collection exactly as it was saved.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS snapshot_meta (
    id              SMALLINT PRIMARY KEY CHECK (id = 1),
    last_refresh_at TIMESTAMPTZ NULL
)`,
	`CREATE TABLE IF NOT EXISTS articles (
    id            TEXT PRIMARY KEY,
    position      INTEGER NOT NULL,
    title         TEXT NOT NULL,
    link          TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    published_at  TIMESTAMPTZ NULL,
    categories    JSONB NOT NULL DEFAULT '[]'::jsonb,
    first_seen_at TIMESTAMPTZ NOT NULL,
    source        TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_position ON articles(position)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_categories ON articles USING GIN (categories)`,
}

// sqliteSchema mirrors postgresSchema with TEXT timestamps (RFC 3339) and a
// key/value meta table.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS articles (
    id            TEXT PRIMARY KEY,
    position      INTEGER NOT NULL,
    title         TEXT NOT NULL,
    link          TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    published_at  TEXT NULL,
    categories    TEXT NOT NULL DEFAULT '[]',
    first_seen_at TEXT NOT NULL,
    source        TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_position ON articles(position)`,
}

// MigratePostgres creates the snapshot schema. Every statement is idempotent.
func MigratePostgres(ctx context.Context, db *sql.DB) error {
	return exec(ctx, db, postgresSchema)
}

// MigrateSQLite creates the snapshot schema. Every statement is idempotent.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	return exec(ctx, db, sqliteSchema)
}

// MigrateDown drops the snapshot tables of either backend.
func MigrateDown(ctx context.Context, db *sql.DB) error {
	return exec(ctx, db, []string{
		`DROP TABLE IF EXISTS articles`,
		`DROP TABLE IF EXISTS snapshot_meta`,
		`DROP TABLE IF EXISTS meta`,
	})
}

func exec(ctx context.Context, db *sql.DB, stmts []string) error {
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
