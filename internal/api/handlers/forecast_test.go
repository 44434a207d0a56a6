package handlers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kobimpw/Economic-terminal/internal/models"
	"github.com/kobimpw/Economic-terminal/internal/series"
	"github.com/kobimpw/Economic-terminal/internal/services"
)

func forecastRouter(cache *fakeCache, refresher Refresher) *gin.Engine {
	h := NewForecastHandler(cache, testCatalog(), refresher)
	router := gin.New()
	router.GET("/series", h.ListSeries)
	router.GET("/precomputed", h.GetPrecomputedSummary)
	router.GET("/precomputed/:seriesId", h.GetPrecomputed)
	router.GET("/chart/:seriesId", h.GetChart)
	router.POST("/refresh/:scope", h.Refresh)
	return router
}

func TestForecastHandler_GetPrecomputed(t *testing.T) {
	cache := newFakeCache()
	cache.put("UNRATE", models.CacheEntry{
		Result:        sampleResult(24, 6),
		BestModelKind: models.ModelKindMovingAverage,
		ComputedAt:    time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC),
		Candidates:    []models.CandidateScore{{ModelName: "MA(3,6,12)", Kind: models.ModelKindMovingAverage, RMSE: 1}},
	})
	cache.readiness["T10Y2Y"] = models.Readiness{State: models.ReadinessComputing}
	router := forecastRouter(cache, nil)

	t.Run("ready", func(t *testing.T) {
		w := perform(router, http.MethodGet, "/precomputed/unrate", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "moving_average", body["bestModelKind"])
		assert.Contains(t, body, "result")
		assert.Len(t, body["candidates"], 1)
	})

	t.Run("computing", func(t *testing.T) {
		w := perform(router, http.MethodGet, "/precomputed/T10Y2Y", nil)
		assert.Equal(t, http.StatusAccepted, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "not ready", body["error"])
		assert.Equal(t, "computing", body["state"])
	})

	t.Run("unknown", func(t *testing.T) {
		w := perform(router, http.MethodGet, "/precomputed/NOPE", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, decodeBody(t, w)["error"], "NOPE")
	})

	t.Run("failed", func(t *testing.T) {
		cache.readiness["T10Y2Y"] = models.Readiness{State: models.ReadinessFailed, Error: "no model converged"}
		defer delete(cache.readiness, "T10Y2Y")

		w := perform(router, http.MethodGet, "/precomputed/T10Y2Y", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "failed", body["state"])
		assert.Equal(t, "no model converged", body["error"])
	})
}

func TestForecastHandler_GetPrecomputedSummary(t *testing.T) {
	cache := newFakeCache()
	cache.put("UNRATE", models.CacheEntry{Result: sampleResult(12, 3)})
	cache.readiness["T10Y2Y"] = models.Readiness{State: models.ReadinessFailed, Error: "insufficient-data"}

	w := perform(forecastRouter(cache, nil), http.MethodGet, "/precomputed", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, []interface{}{"UNRATE"}, body["ready"])
	assert.Equal(t, []interface{}{"T10Y2Y"}, body["failed"])
	assert.Equal(t, map[string]interface{}{"T10Y2Y": "insufficient-data"}, body["errors"])
	assert.Equal(t, map[string]interface{}{"UNRATE": "MA(3,6,12)"}, body["models"])
}

func TestForecastHandler_GetPrecomputedSummaryStale(t *testing.T) {
	cache := newFakeCache()
	cache.put("UNRATE", models.CacheEntry{Result: sampleResult(12, 3)})
	cache.readiness["UNRATE"] = models.Readiness{State: models.ReadinessReady, Stale: true, Error: "fred unavailable"}

	w := perform(forecastRouter(cache, nil), http.MethodGet, "/precomputed", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, []interface{}{"UNRATE"}, body["ready"])
	assert.Equal(t, []interface{}{}, body["failed"])
	assert.Equal(t, []interface{}{"UNRATE"}, body["stale"])
	assert.Equal(t, map[string]interface{}{"UNRATE": "fred unavailable"}, body["errors"])

	w = perform(forecastRouter(cache, nil), http.MethodGet, "/precomputed/UNRATE", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestForecastHandler_ListSeries(t *testing.T) {
	cache := newFakeCache()
	cache.put("UNRATE", models.CacheEntry{Result: sampleResult(12, 3)})

	w := perform(forecastRouter(cache, nil), http.MethodGet, "/series", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(2), body["count"])
	rows := body["series"].([]interface{})
	first := rows[0].(map[string]interface{})
	assert.Equal(t, "UNRATE", first["id"])
	assert.Equal(t, "https://fred.stlouisfed.org/series/UNRATE", first["fredLink"])
	assert.Equal(t, "ready", first["readiness"].(map[string]interface{})["state"])
}

func TestForecastHandler_GetChart(t *testing.T) {
	cache := newFakeCache()
	cache.put("UNRATE", models.CacheEntry{Result: sampleResult(30, 6)})
	router := forecastRouter(cache, nil)

	t.Run("window", func(t *testing.T) {
		w := perform(router, http.MethodGet, "/chart/UNRATE?window=12M", nil)
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		axis := body["axis"].([]interface{})
		assert.Len(t, axis, 18)
		for _, key := range []string{"historical", "forecast", "sigma1Up", "sigma1Down", "sigma2Up", "sigma2Down"} {
			assert.Len(t, body[key], 18, key)
		}
		forecast := body["forecast"].([]interface{})
		assert.Nil(t, forecast[10])
		assert.Equal(t, float64(129), forecast[11])
		assert.Equal(t, float64(200), forecast[12])
	})

	t.Run("default window is everything", func(t *testing.T) {
		w := perform(router, http.MethodGet, "/chart/UNRATE", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decodeBody(t, w)["axis"], 36)
	})

	t.Run("bad window", func(t *testing.T) {
		w := perform(router, http.MethodGet, "/chart/UNRATE?window=3W", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("not ready", func(t *testing.T) {
		w := perform(router, http.MethodGet, "/chart/T10Y2Y?window=2Y", nil)
		assert.Equal(t, http.StatusAccepted, w.Code)
	})
}

func TestForecastHandler_Refresh(t *testing.T) {
	refresher := &mockRefresher{}
	router := forecastRouter(newFakeCache(), refresher)

	refresher.On("Refresh", mock.Anything, "all").Return(services.SweepReport{
		RunID: uuid.New(), Scope: "all", Total: 2, Computed: 1, Failed: 1,
		Failures: map[string]string{"T10Y2Y": "boom"}, Duration: time.Second,
	}, nil).Once()
	refresher.On("Refresh", mock.Anything, "UNRATE").Return(services.SweepReport{
		Scope: "UNRATE", Total: 1, Failed: 1,
	}, nil).Once()
	refresher.On("Refresh", mock.Anything, "NOPE").Return(services.SweepReport{},
		errors.New("unknown series: NOPE")).Once()
	refresher.On("Refresh", mock.Anything, "GONE").Return(services.SweepReport{},
		wrapUnknown("GONE")).Once()

	w := perform(router, http.MethodPost, "/refresh/all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "refreshed 1 of 2 series in 1s, 1 failed", body["message"])

	w = perform(router, http.MethodPost, "/refresh/UNRATE", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "error", decodeBody(t, w)["status"])

	w = perform(router, http.MethodPost, "/refresh/NOPE", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = perform(router, http.MethodPost, "/refresh/GONE", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "error", decodeBody(t, w)["status"])

	refresher.AssertExpectations(t)
}

func wrapUnknown(id string) error {
	return errors.Join(series.ErrUnknownSeries, errors.New(id))
}
