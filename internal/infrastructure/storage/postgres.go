package storage

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

// ErrNotFound is returned when a record does not exist or is already soft-deleted.
var ErrNotFound = errors.New("record not found")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS policies (
		id           BIGSERIAL PRIMARY KEY,
		title        TEXT NOT NULL CHECK (btrim(title) <> ''),
		description  TEXT NOT NULL CHECK (btrim(description) <> ''),
		source_name  TEXT NOT NULL,
		source_url   TEXT NOT NULL,
		published_at TIMESTAMPTZ NULL,
		is_deleted   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS policies_active_title_uniq
		ON policies (btrim(title)) WHERE NOT is_deleted`,
	`CREATE INDEX IF NOT EXISTS policies_active_created_idx
		ON policies (created_at DESC) WHERE NOT is_deleted`,
	`CREATE TABLE IF NOT EXISTS logs (
		id           BIGSERIAL PRIMARY KEY,
		action       TEXT NOT NULL,
		is_duplicate BOOLEAN NOT NULL,
		title        TEXT NOT NULL,
		description  TEXT NOT NULL,
		source_name  TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS logs_created_idx ON logs (created_at DESC)`,
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// Migrate creates tables and indexes when absent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Page bounds a listing query.
type Page struct {
	Limit  uint64
	Offset uint64
}
