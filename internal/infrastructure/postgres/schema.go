package postgres

import (
	"context"
	"fmt"
)

// Bootstrap DDL, applied on startup. Statements are idempotent so repeated
// starts against a provisioned database are harmless.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id              TEXT PRIMARY KEY,
		artis_codes     TEXT[] NOT NULL DEFAULT '{}',
		name            TEXT NOT NULL,
		current_stock   NUMERIC(14,2) NOT NULL DEFAULT 0,
		avg_consumption NUMERIC(14,2) NOT NULL DEFAULT 0,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id             TEXT PRIMARY KEY,
		product_id     TEXT NOT NULL REFERENCES products(id),
		type           TEXT NOT NULL CHECK (type IN ('IN', 'OUT', 'CORRECTION')),
		quantity       NUMERIC(14,2) NOT NULL,
		date           TIMESTAMPTZ NOT NULL,
		notes          TEXT NOT NULL DEFAULT '',
		include_in_avg BOOLEAN NOT NULL DEFAULT FALSE,
		sync_batch_id  TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_product_date
		ON transactions (product_id, date DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_sync_batch
		ON transactions (sync_batch_id) WHERE sync_batch_id IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS sync_histories (
		id            TEXT PRIMARY KEY,
		sync_batch_id TEXT NOT NULL UNIQUE,
		sync_type     TEXT NOT NULL,
		sync_date     TIMESTAMPTZ NOT NULL,
		item_count    INTEGER NOT NULL DEFAULT 0,
		status        TEXT NOT NULL,
		errors        TEXT[] NOT NULL DEFAULT '{}',
		warnings      TEXT[] NOT NULL DEFAULT '{}',
		metadata      JSONB NOT NULL DEFAULT '{}',
		user_id       TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_histories_date
		ON sync_histories (sync_date DESC)`,
}

// EnsureSchema creates the tables and indexes the module needs.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
