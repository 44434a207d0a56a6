package forecast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobimpw/Economic-terminal/internal/models"
)

func TestSelectBest_PicksLowestRMSE(t *testing.T) {
	selector := NewSelector(DefaultOptions(), nil)
	obs := monthlySeries(60)

	selection, err := selector.SelectBest(context.Background(), obs, DefaultCandidates(12, 6))
	require.NoError(t, err)
	require.NotNil(t, selection.Result)

	assert.Contains(t, []models.ModelKind{
		models.ModelKindAutoregressive,
		models.ModelKindMovingAverage,
		models.ModelKindStochasticSimulation,
	}, selection.Kind)
	assert.Equal(t, selection.Kind, selection.Result.ModelKind)
	require.Len(t, selection.Candidates, 3)

	best := selection.Result.Stats[models.StatRMSE]
	for _, c := range selection.Candidates {
		if c.Error == "" {
			assert.LessOrEqual(t, best, c.RMSE, "candidate %s", c.ModelName)
		}
	}
}

func TestSelectBest_SkipsInsufficientData(t *testing.T) {
	selector := NewSelector(DefaultOptions(), nil)
	obs := monthlySeries(4)
	candidates := []models.ModelConfig{
		models.NewAutoregressiveConfig(1, 1, 1, 1, 2),
		models.NewMovingAverageConfig([]int{1, 2}, 1, 2),
		models.NewStochasticSimulationConfig(100, 1, 2),
	}

	selection, err := selector.SelectBest(context.Background(), obs, candidates)
	require.NoError(t, err)
	assert.NotEqual(t, models.ModelKindAutoregressive, selection.Kind)

	require.Len(t, selection.Candidates, 3)
	assert.Contains(t, selection.Candidates[0].Error, string(ReasonInsufficientData))
	assert.Empty(t, selection.Candidates[1].Error)
	assert.Empty(t, selection.Candidates[2].Error)
}

func TestSelectBest_AllFail(t *testing.T) {
	selector := NewSelector(DefaultOptions(), nil)
	obs := monthlySeries(2)

	_, err := selector.SelectBest(context.Background(), obs, DefaultCandidates(1, 3))
	require.Error(t, err)

	var noModel *NoModelConvergedError
	require.True(t, errors.As(err, &noModel))
	assert.Len(t, noModel.Failures, 3)
	assert.Contains(t, err.Error(), "no model converged")
}

func TestSelectBest_TieKeepsFirstListed(t *testing.T) {
	selector := NewSelector(DefaultOptions(), nil)
	obs := constantSeries(24, 80)
	candidates := []models.ModelConfig{
		models.NewMovingAverageConfig([]int{3}, 6, 2),
		models.NewMovingAverageConfig([]int{2}, 6, 2),
	}

	selection, err := selector.SelectBest(context.Background(), obs, candidates)
	require.NoError(t, err)
	assert.Equal(t, "MA(3)", selection.Result.ModelName)
}

func TestSelectBest_NoCandidates(t *testing.T) {
	_, err := NewSelector(DefaultOptions(), nil).SelectBest(context.Background(), monthlySeries(10), nil)
	assert.Error(t, err)
}

func TestSelectBest_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSelector(DefaultOptions(), nil).SelectBest(ctx, monthlySeries(30), DefaultCandidates(6, 3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSelectBest_DeadlineIsNotACandidateFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	candidates := []models.ModelConfig{models.NewStochasticSimulationConfig(models.MaxSimulations, 200, 6)}

	_, err := NewSelector(DefaultOptions(), nil).SelectBest(ctx, monthlySeries(400), candidates)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var noModel *NoModelConvergedError
	assert.False(t, errors.As(err, &noModel))
}

func TestBetter(t *testing.T) {
	tests := []struct {
		name string
		a, b map[string]float64
		want bool
	}{
		{"lower rmse wins", map[string]float64{"RMSE": 1, "MAPE": 9}, map[string]float64{"RMSE": 2, "MAPE": 1}, true},
		{"higher rmse loses", map[string]float64{"RMSE": 3, "MAPE": 1}, map[string]float64{"RMSE": 2, "MAPE": 9}, false},
		{"tie broken by mape", map[string]float64{"RMSE": 2, "MAPE": 1}, map[string]float64{"RMSE": 2, "MAPE": 3}, true},
		{"full tie keeps incumbent", map[string]float64{"RMSE": 2, "MAPE": 3}, map[string]float64{"RMSE": 2, "MAPE": 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, better(tt.a, tt.b))
		})
	}
}

func TestExtendedCandidates(t *testing.T) {
	candidates := ExtendedCandidates(12, 6)
	require.Len(t, candidates, 6)

	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name()
	}
	assert.Equal(t, []string{
		"ARIMA(1,1,1)", "ARIMA(2,1,1)", "ARIMA(1,1,2)", "ARIMA(2,1,2)",
		"MA(3,6,12)", "Monte Carlo (1000 sims)",
	}, names)
}

func TestSelectBest_ObserverSeesEveryCandidate(t *testing.T) {
	selector := NewSelector(DefaultOptions(), nil)
	var seen []string
	failed := 0
	selector.OnRun(func(kind models.ModelKind, name string, elapsed time.Duration, err error) {
		seen = append(seen, name)
		assert.GreaterOrEqual(t, elapsed, time.Duration(0))
		if err != nil {
			failed++
		}
	})

	_, err := selector.SelectBest(context.Background(), monthlySeries(60), DefaultCandidates(12, 6))
	require.NoError(t, err)
	assert.Equal(t, []string{"ARIMA(1,1,1)", "MA(3,6,12)", "Monte Carlo (1000 sims)"}, seen)
	assert.Less(t, failed, 3)
}

func TestTuneCandidates(t *testing.T) {
	base := ExtendedCandidates(24, 3)

	tuned := TuneCandidates(base, []int{2, 4}, 250)
	require.Len(t, tuned, len(base))
	assert.Equal(t, "ARIMA(2,1,2)", tuned[3].Name())
	assert.Equal(t, "MA(2,4)", tuned[4].Name())
	assert.Equal(t, "Monte Carlo (250 sims)", tuned[5].Name())
	assert.Equal(t, 24, tuned[5].TestLength)
	assert.Equal(t, 3, tuned[5].ForecastHorizon)
	assert.Equal(t, "MA(3,6,12)", base[4].Name())

	unchanged := TuneCandidates(base, nil, 0)
	assert.Equal(t, base, unchanged)
}
