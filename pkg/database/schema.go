package database

import (
	"context"
	"fmt"
)

// EnsureSchema creates the application tables when they do not exist yet.
// Every statement is idempotent, so running this at startup is safe.
func (db *DB) EnsureSchema(ctx context.Context) error {
	tables := []struct {
		name  string
		query string
	}{
		{
			name: "daily_aggregates",
			query: `
				CREATE TABLE IF NOT EXISTS daily_aggregates (
					date DATE PRIMARY KEY,
					pre_market DOUBLE PRECISION,
					open_price DOUBLE PRECISION,
					noon_price DOUBLE PRECISION,
					two_pm_price DOUBLE PRECISION,
					close_price DOUBLE PRECISION,
					pred_low DOUBLE PRECISION,
					pred_high DOUBLE PRECISION,
					band_locked BOOLEAN NOT NULL DEFAULT FALSE,
					band_source VARCHAR(32) NOT NULL DEFAULT '',
					range_hit BOOLEAN,
					abs_error_to_close DOUBLE PRECISION,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)
			`,
		},
		{
			name: "price_logs",
			query: `
				CREATE TABLE IF NOT EXISTS price_logs (
					id BIGSERIAL PRIMARY KEY,
					date DATE NOT NULL,
					checkpoint VARCHAR(16) NOT NULL,
					price DOUBLE PRECISION NOT NULL,
					captured_at TIMESTAMPTZ NOT NULL
				)
			`,
		},
		{
			name: "predictions",
			query: `
				CREATE TABLE IF NOT EXISTS predictions (
					id BIGSERIAL PRIMARY KEY,
					date DATE NOT NULL,
					checkpoint VARCHAR(16) NOT NULL,
					price DOUBLE PRECISION NOT NULL,
					confidence DOUBLE PRECISION NOT NULL,
					rationale TEXT NOT NULL DEFAULT '',
					pred_low DOUBLE PRECISION,
					pred_high DOUBLE PRECISION,
					source VARCHAR(32) NOT NULL,
					created_at TIMESTAMPTZ NOT NULL,
					actual_price DOUBLE PRECISION,
					abs_error DOUBLE PRECISION,
					UNIQUE (date, checkpoint, source)
				)
			`,
		},
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_price_logs_date ON price_logs (date)`,
		`CREATE INDEX IF NOT EXISTS idx_price_logs_captured_at ON price_logs (captured_at)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_date ON predictions (date, created_at DESC)`,
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, table.query); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}
	}

	for _, index := range indexes {
		if _, err := db.Pool.Exec(ctx, index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
