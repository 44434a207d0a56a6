package database

import (
	"context"
	"fmt"
)

// schemaStatements create the tables used by the observation store and the
// sweep run history. Every statement is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS observations (
		series_id  TEXT NOT NULL,
		obs_date   DATE NOT NULL,
		value      DOUBLE PRECISION NOT NULL,
		fetched_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (series_id, obs_date)
	)`,
	`CREATE TABLE IF NOT EXISTS forecast_runs (
		run_id      UUID PRIMARY KEY,
		scope       TEXT NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		total       INTEGER NOT NULL,
		computed    INTEGER NOT NULL,
		reused      INTEGER NOT NULL,
		failed      INTEGER NOT NULL,
		failures    JSONB NOT NULL DEFAULT '{}'::jsonb
	)`,
	`CREATE INDEX IF NOT EXISTS idx_forecast_runs_started_at ON forecast_runs (started_at DESC)`,
}

// EnsureSchema creates missing tables.
func EnsureSchema(ctx context.Context, pool DatabasePool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
