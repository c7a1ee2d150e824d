package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// sqliteSchema holds the embedded-backend schema. It mirrors the PostgreSQL
// migrations; statements are idempotent so they run on every startup.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS medicines (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		barcode TEXT NOT NULL UNIQUE,
		description TEXT,
		category TEXT NOT NULL,
		manufacturer TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		medicine_id TEXT NOT NULL REFERENCES medicines(id) ON DELETE CASCADE,
		batch_number TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		expiry_date DATE,
		cost_price REAL,
		selling_price REAL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_batches_medicine_id ON batches(medicine_id)`,
	`CREATE INDEX IF NOT EXISTS idx_batches_expiry_date ON batches(expiry_date)`,
}

// NewSQLite opens (creating if needed) the embedded SQLite database at path
// and applies the schema. The handle is limited to a single connection; the
// driver does not tolerate concurrent writers.
func NewSQLite(ctx context.Context, path string) (*sqlx.DB, error) {
	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", path, err)
	}

	conn.SetMaxOpenConns(1)

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("apply sqlite schema: %w", err)
		}
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	return conn, nil
}
