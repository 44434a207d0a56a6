package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ForecastRun is one row of sweep history.
type ForecastRun struct {
	RunID      uuid.UUID         `json:"runId" db:"run_id"`
	Scope      string            `json:"scope" db:"scope"`
	StartedAt  time.Time         `json:"startedAt" db:"started_at"`
	FinishedAt time.Time         `json:"finishedAt" db:"finished_at"`
	Total      int               `json:"total" db:"total"`
	Computed   int               `json:"computed" db:"computed"`
	Reused     int               `json:"reused" db:"reused"`
	Failed     int               `json:"failed" db:"failed"`
	Failures   map[string]string `json:"failures" db:"failures"`
}

// ForecastRunRepository stores sweep reports in the forecast_runs table.
type ForecastRunRepository struct {
	pool DatabasePool
}

func NewForecastRunRepository(pool DatabasePool) *ForecastRunRepository {
	return &ForecastRunRepository{pool: pool}
}

// Record inserts run. Recording the same run twice is a no-op.
func (r *ForecastRunRepository) Record(ctx context.Context, run ForecastRun) error {
	failures := run.Failures
	if failures == nil {
		failures = map[string]string{}
	}
	payload, err := json.Marshal(failures)
	if err != nil {
		return fmt.Errorf("failed to encode run failures: %w", err)
	}

	query := `
		INSERT INTO forecast_runs (run_id, scope, started_at, finished_at, total, computed, reused, failed, failures)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO NOTHING
	`
	_, err = r.pool.Exec(ctx, query,
		run.RunID, run.Scope, run.StartedAt, run.FinishedAt,
		run.Total, run.Computed, run.Reused, run.Failed, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to record forecast run %s: %w", run.RunID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (r *ForecastRunRepository) Recent(ctx context.Context, limit int) ([]ForecastRun, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT run_id, scope, started_at, finished_at, total, computed, reused, failed, failures
		FROM forecast_runs
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query forecast runs: %w", err)
	}
	defer rows.Close()

	var runs []ForecastRun
	for rows.Next() {
		var (
			run     ForecastRun
			payload []byte
		)
		if err := rows.Scan(
			&run.RunID,
			&run.Scope,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Total,
			&run.Computed,
			&run.Reused,
			&run.Failed,
			&payload,
		); err != nil {
			return nil, fmt.Errorf("failed to scan forecast run: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &run.Failures); err != nil {
				return nil, fmt.Errorf("failed to decode failures of run %s: %w", run.RunID, err)
			}
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate forecast runs: %w", err)
	}
	return runs, nil
}
