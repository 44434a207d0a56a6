package series

import (
	"context"
	"fmt"
	"time"

	"github.com/kobimpw/Economic-terminal/internal/database"
	"github.com/kobimpw/Economic-terminal/internal/models"
)

// ObservationRepository stores observations in the observations table.
type ObservationRepository struct {
	pool database.DatabasePool
}

func NewObservationRepository(pool database.DatabasePool) *ObservationRepository {
	return &ObservationRepository{pool: pool}
}

// Load returns the stored observations of a series in date order and the
// time of the most recent fetch. An unknown series yields no rows and a
// zero time.
func (r *ObservationRepository) Load(ctx context.Context, seriesID string) ([]models.Observation, time.Time, error) {
	query := `
		SELECT obs_date, value, fetched_at
		FROM observations
		WHERE series_id = $1
		ORDER BY obs_date
	`
	rows, err := r.pool.Query(ctx, query, seriesID)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to load observations for %s: %w", seriesID, err)
	}
	defer rows.Close()

	var (
		obs       []models.Observation
		fetchedAt time.Time
	)
	for rows.Next() {
		var (
			o       models.Observation
			fetched time.Time
		)
		if err := rows.Scan(&o.Date, &o.Value, &fetched); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to scan observation for %s: %w", seriesID, err)
		}
		o.Date = o.Date.UTC()
		if fetched.After(fetchedAt) {
			fetchedAt = fetched
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to iterate observations for %s: %w", seriesID, err)
	}
	return obs, fetchedAt, nil
}

// Upsert writes obs in one statement, replacing values of existing dates.
func (r *ObservationRepository) Upsert(ctx context.Context, seriesID string, obs []models.Observation) (int64, error) {
	if len(obs) == 0 {
		return 0, nil
	}

	dates := make([]time.Time, len(obs))
	values := make([]float64, len(obs))
	for i, o := range obs {
		dates[i] = o.Date
		values[i] = o.Value
	}

	query := `
		INSERT INTO observations (series_id, obs_date, value, fetched_at)
		SELECT $1, d, v, NOW()
		FROM unnest($2::date[], $3::double precision[]) AS t(d, v)
		ON CONFLICT (series_id, obs_date)
		DO UPDATE SET value = EXCLUDED.value, fetched_at = EXCLUDED.fetched_at
	`
	tag, err := r.pool.Exec(ctx, query, seriesID, dates, values)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert observations for %s: %w", seriesID, err)
	}
	return tag.RowsAffected(), nil
}
