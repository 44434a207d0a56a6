package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobimpw/Economic-terminal/internal/forecast"
	"github.com/kobimpw/Economic-terminal/internal/models"
	"github.com/kobimpw/Economic-terminal/internal/series"
	"github.com/kobimpw/Economic-terminal/internal/utils"
)

func newTestAnalysisService(metrics SweepMetrics) *AnalysisService {
	store := series.NewStaticStore(map[string][]models.Observation{
		"UNRATE": monthlyObservations(60),
		"SHORT":  monthlyObservations(5),
	})
	return NewAnalysisService(testCatalog("UNRATE", "SHORT", "EMPTY"), store,
		forecast.DefaultOptions(), AnalysisDefaults{}, metrics, quietLogrus())
}

func intPtr(v int) *int { return &v }

func TestAnalysisService_Analyze(t *testing.T) {
	metrics := &recordingMetrics{}
	service := newTestAnalysisService(metrics)

	resp, err := service.Analyze(context.Background(), models.AnalyzeRequest{
		SeriesID:    "unrate",
		ModelConfig: models.ModelConfigRequest{Order: []int{1, 1, 1}, TestLength: 12, ForecastHorizon: 6},
		RequestSeq:  7,
	})
	require.NoError(t, err)

	assert.Equal(t, "UNRATE", resp.SeriesID)
	assert.Equal(t, "UNRATE display", resp.SeriesName)
	assert.Equal(t, "https://fred.stlouisfed.org/series/UNRATE", resp.FredLink)
	assert.Equal(t, uint64(7), resp.RequestSeq)
	assert.Equal(t, uint64(1), resp.Sequence)
	assert.Equal(t, models.ModelKindAutoregressive, resp.ModelKind)
	assert.Len(t, resp.Comparison.Dates, 12)
	assert.Len(t, resp.Forecast.Values, 6)
	assert.Equal(t, 1, metrics.modelRuns)
}

func TestAnalysisService_DefaultsApplied(t *testing.T) {
	service := newTestAnalysisService(nil)

	resp, err := service.Analyze(context.Background(), models.AnalyzeRequest{
		SeriesID:    "UNRATE",
		ModelConfig: models.ModelConfigRequest{Windows: []int{3, 6}},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Comparison.Dates, 12)
	assert.Len(t, resp.Forecast.Values, 6)
	assert.Equal(t, "MA(3,6)", resp.ModelName)
}

func TestAnalysisService_Errors(t *testing.T) {
	service := newTestAnalysisService(nil)
	ctx := context.Background()

	_, err := service.Analyze(ctx, models.AnalyzeRequest{
		SeriesID:    "NOPE",
		ModelConfig: models.ModelConfigRequest{Simulations: intPtr(100)},
	})
	assert.True(t, errors.Is(err, series.ErrUnknownSeries))

	_, err = service.Analyze(ctx, models.AnalyzeRequest{SeriesID: " "})
	var validation *utils.ValidationError
	assert.True(t, errors.As(err, &validation))

	_, err = service.Analyze(ctx, models.AnalyzeRequest{
		SeriesID:    "UNRATE",
		ModelConfig: models.ModelConfigRequest{Order: []int{1, 1, 1}, Windows: []int{3}},
	})
	assert.True(t, errors.As(err, &validation))

	_, err = service.Analyze(ctx, models.AnalyzeRequest{
		SeriesID:    "SHORT",
		ModelConfig: models.ModelConfigRequest{Order: []int{2, 1, 2}, TestLength: 3, ForecastHorizon: 2},
	})
	var compErr *forecast.ComputationError
	require.True(t, errors.As(err, &compErr))
	assert.Equal(t, forecast.ReasonInsufficientData, compErr.Reason)

	_, err = service.Analyze(ctx, models.AnalyzeRequest{
		SeriesID:    "EMPTY",
		ModelConfig: models.ModelConfigRequest{Simulations: intPtr(100)},
	})
	assert.True(t, errors.Is(err, series.ErrUnknownSeries))
}

func TestAnalysisService_SequenceIsMonotonic(t *testing.T) {
	service := newTestAnalysisService(nil)
	req := models.AnalyzeRequest{
		SeriesID:    "UNRATE",
		ModelConfig: models.ModelConfigRequest{Windows: []int{3}},
	}

	var mu sync.Mutex
	seen := map[uint64]bool{}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := service.Analyze(context.Background(), req)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			seen[resp.Sequence] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 8)
	for i := uint64(1); i <= 8; i++ {
		assert.True(t, seen[i], "sequence %d", i)
	}
}

func TestAnalysisService_Timeout(t *testing.T) {
	store := series.NewStaticStore(map[string][]models.Observation{"UNRATE": monthlyObservations(400)})
	service := NewAnalysisService(testCatalog("UNRATE"), store, forecast.DefaultOptions(),
		AnalysisDefaults{Timeout: 5 * time.Millisecond}, nil, quietLogrus())

	started := time.Now()
	_, err := service.Analyze(context.Background(), models.AnalyzeRequest{
		SeriesID:    "UNRATE",
		ModelConfig: models.ModelConfigRequest{Simulations: intPtr(models.MaxSimulations), TestLength: 200},
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), 2*time.Second)
}

func TestAnalysisService_RejectsOversizedConfig(t *testing.T) {
	service := newTestAnalysisService(nil)

	_, err := service.Analyze(context.Background(), models.AnalyzeRequest{
		SeriesID:    "UNRATE",
		ModelConfig: models.ModelConfigRequest{Windows: []int{3}, ForecastHorizon: 1 << 50},
	})
	var validation *utils.ValidationError
	assert.True(t, errors.As(err, &validation))
}
