package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runColumns = []string{"run_id", "scope", "started_at", "finished_at", "total", "computed", "reused", "failed", "failures"}

func TestForecastRunRepository_Record(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewForecastRunRepository(NewMockPoolAdapter(mockPool))
	started := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	run := ForecastRun{
		RunID:      uuid.New(),
		Scope:      "all",
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Total:      18,
		Computed:   17,
		Failed:     1,
		Failures:   map[string]string{"CCSA": "no model converged"},
	}

	mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO forecast_runs")).
		WithArgs(run.RunID, "all", run.StartedAt, run.FinishedAt, 18, 17, 0, 1, []byte(`{"CCSA":"no model converged"}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Record(context.Background(), run))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestForecastRunRepository_Record_NilFailures(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewForecastRunRepository(NewMockPoolAdapter(mockPool))
	run := ForecastRun{RunID: uuid.New(), Scope: "UNRATE"}

	mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO forecast_runs")).
		WithArgs(run.RunID, "UNRATE", run.StartedAt, run.FinishedAt, 0, 0, 0, 0, []byte(`{}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Record(context.Background(), run))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestForecastRunRepository_Record_Error(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewForecastRunRepository(NewMockPoolAdapter(mockPool))
	dbErr := errors.New("connection reset")

	mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO forecast_runs")).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(dbErr)

	err = repo.Record(context.Background(), ForecastRun{RunID: uuid.New(), Scope: "all"})
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestForecastRunRepository_Recent(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewForecastRunRepository(NewMockPoolAdapter(mockPool))
	newest, older := uuid.New(), uuid.New()
	now := time.Date(2024, 3, 2, 6, 0, 0, 0, time.UTC)

	mockPool.ExpectQuery(regexp.QuoteMeta("FROM forecast_runs")).
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow(newest, "all", now, now.Add(time.Minute), 18, 18, 0, 0, []byte(`{}`)).
			AddRow(older, "UNRATE", now.Add(-24*time.Hour), now.Add(-24*time.Hour+time.Second), 1, 0, 0, 1, []byte(`{"UNRATE":"insufficient-data"}`)))

	runs, err := repo.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newest, runs[0].RunID)
	assert.Equal(t, 18, runs[0].Computed)
	assert.Empty(t, runs[0].Failures)
	assert.Equal(t, "UNRATE", runs[1].Scope)
	assert.Equal(t, "insufficient-data", runs[1].Failures["UNRATE"])
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestForecastRunRepository_Recent_DefaultLimit(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewForecastRunRepository(NewMockPoolAdapter(mockPool))

	mockPool.ExpectQuery(regexp.QuoteMeta("FROM forecast_runs")).
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows(runColumns))

	runs, err := repo.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS observations")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mockPool.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS forecast_runs")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mockPool.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS idx_forecast_runs_started_at")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, EnsureSchema(context.Background(), NewMockPoolAdapter(mockPool)))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestEnsureSchema_StopsOnError(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS observations")).
		WillReturnError(errors.New("permission denied"))

	err = EnsureSchema(context.Background(), NewMockPoolAdapter(mockPool))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
