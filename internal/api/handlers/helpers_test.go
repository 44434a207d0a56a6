package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kobimpw/Economic-terminal/internal/models"
	"github.com/kobimpw/Economic-terminal/internal/series"
	"github.com/kobimpw/Economic-terminal/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeCache is an in-memory ForecastReader.
type fakeCache struct {
	entries   map[string]models.CacheEntry
	readiness map[string]models.Readiness
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries:   map[string]models.CacheEntry{},
		readiness: map[string]models.Readiness{},
	}
}

func (f *fakeCache) Get(id string) (models.CacheEntry, bool) {
	e, ok := f.entries[id]
	return e, ok
}

func (f *fakeCache) Readiness(id string) models.Readiness {
	if r, ok := f.readiness[id]; ok {
		return r
	}
	return models.Readiness{State: models.ReadinessPending}
}

func (f *fakeCache) Snapshot() map[string]models.CacheEntry {
	return f.entries
}

func (f *fakeCache) put(id string, entry models.CacheEntry) {
	entry.SeriesID = id
	f.entries[id] = entry
	f.readiness[id] = models.Readiness{State: models.ReadinessReady}
}

type mockRefresher struct {
	mock.Mock
}

func (m *mockRefresher) Refresh(ctx context.Context, scope string) (services.SweepReport, error) {
	args := m.Called(ctx, scope)
	return args.Get(0).(services.SweepReport), args.Error(1)
}

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Analyze(ctx context.Context, req models.AnalyzeRequest) (*models.AnalyzeResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*models.AnalyzeResponse)
	return resp, args.Error(1)
}

func testCatalog() *series.Catalog {
	return series.NewCatalog([]models.Indicator{
		{ID: "UNRATE", Name: "Unemployment Rate", DisplayName: "Unemployment Rate", Category: "labor"},
		{ID: "T10Y2Y", Name: "10Y-2Y Spread", DisplayName: "10Y-2Y Treasury Spread", Category: "rates"},
	})
}

// sampleResult has histLen monthly points and a horizon-long forecast.
func sampleResult(histLen, horizon int) *models.ForecastResult {
	start := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	r := &models.ForecastResult{
		ModelKind: models.ModelKindMovingAverage,
		ModelName: "MA(3,6,12)",
		Stats:     map[string]float64{models.StatRMSE: 1, models.StatMAPE: 2, models.StatMAE: 1},
	}
	for i := 0; i < histLen; i++ {
		r.Historical.Dates = append(r.Historical.Dates, start.AddDate(0, i, 0).Format(models.DateLayout))
		r.Historical.Values = append(r.Historical.Values, 100+float64(i))
	}
	for i := 0; i < horizon; i++ {
		v := 200 + float64(i)
		r.Forecast.Dates = append(r.Forecast.Dates, start.AddDate(0, histLen+i, 0).Format(models.DateLayout))
		r.Forecast.Values = append(r.Forecast.Values, v)
		r.Forecast.Sigma1Up = append(r.Forecast.Sigma1Up, v+1)
		r.Forecast.Sigma1Down = append(r.Forecast.Sigma1Down, v-1)
		r.Forecast.Sigma2Up = append(r.Forecast.Sigma2Up, v+2)
		r.Forecast.Sigma2Down = append(r.Forecast.Sigma2Down, v-2)
	}
	return r
}

func perform(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

