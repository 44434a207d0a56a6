package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kobimpw/Economic-terminal/internal/chart"
	"github.com/kobimpw/Economic-terminal/internal/middleware"
	"github.com/kobimpw/Economic-terminal/internal/models"
	"github.com/kobimpw/Economic-terminal/internal/series"
	"github.com/kobimpw/Economic-terminal/internal/services"
)

// ForecastReader is the read side of the forecast cache.
type ForecastReader interface {
	Get(seriesID string) (models.CacheEntry, bool)
	Readiness(seriesID string) models.Readiness
	Snapshot() map[string]models.CacheEntry
}

// SeriesCatalog lists the known indicators.
type SeriesCatalog interface {
	Lookup(seriesID string) (models.Indicator, bool)
	IDs() []string
	All() []models.Indicator
	Categories() []string
}

// Refresher recomputes cached forecasts.
type Refresher interface {
	Refresh(ctx context.Context, scope string) (services.SweepReport, error)
}

// ForecastHandler serves precomputed forecasts, chart datasets and refreshes.
type ForecastHandler struct {
	cache     ForecastReader
	catalog   SeriesCatalog
	refresher Refresher
}

func NewForecastHandler(cache ForecastReader, catalog SeriesCatalog, refresher Refresher) *ForecastHandler {
	return &ForecastHandler{
		cache:     cache,
		catalog:   catalog,
		refresher: refresher,
	}
}

// SeriesInfo is one catalog row with its readiness.
type SeriesInfo struct {
	models.Indicator
	FredLink  string           `json:"fredLink"`
	Readiness models.Readiness `json:"readiness"`
}

// ListSeries returns the catalog with the readiness of every series.
func (h *ForecastHandler) ListSeries(c *gin.Context) {
	indicators := h.catalog.All()
	out := make([]SeriesInfo, 0, len(indicators))
	for _, ind := range indicators {
		out = append(out, SeriesInfo{
			Indicator: ind,
			FredLink:  series.FredLink(ind.ID),
			Readiness: h.cache.Readiness(ind.ID),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"count":      len(out),
		"categories": h.catalog.Categories(),
		"series":     out,
	})
}

// lookupEntry resolves the cached entry for the :seriesId parameter. When it
// returns false the response has been written.
func (h *ForecastHandler) lookupEntry(c *gin.Context) (models.CacheEntry, bool) {
	id := strings.ToUpper(strings.TrimSpace(c.Param("seriesId")))
	if _, known := h.catalog.Lookup(id); !known {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown series %s", id)})
		return models.CacheEntry{}, false
	}
	middleware.AddSpanAttribute(c, "series.id", id)

	entry, ok := h.cache.Get(id)
	if ok {
		return entry, true
	}

	readiness := h.cache.Readiness(id)
	if readiness.State == models.ReadinessFailed {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": readiness.Error,
			"state": readiness.State,
		})
		return models.CacheEntry{}, false
	}
	c.JSON(http.StatusAccepted, gin.H{
		"error": "not ready",
		"state": readiness.State,
	})
	return models.CacheEntry{}, false
}

// GetPrecomputed returns the cached best-model result without ever
// computing: 202 while pending, 503 when the last computation failed.
func (h *ForecastHandler) GetPrecomputed(c *gin.Context) {
	entry, ok := h.lookupEntry(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result":        entry.Result,
		"bestModelKind": entry.BestModelKind,
		"computedAt":    entry.ComputedAt,
		"candidates":    entry.Candidates,
	})
}

// GetPrecomputedSummary reports which series are ready, computing or failed.
// Ready series whose last refresh failed are also listed as stale.
func (h *ForecastHandler) GetPrecomputedSummary(c *gin.Context) {
	ready := []string{}
	computing := []string{}
	failed := []string{}
	stale := []string{}
	errs := map[string]string{}
	modelNames := map[string]string{}

	snapshot := h.cache.Snapshot()
	for _, id := range h.catalog.IDs() {
		if entry, ok := snapshot[id]; ok && entry.Result != nil {
			modelNames[id] = entry.Result.ModelName
		}
		readiness := h.cache.Readiness(id)
		switch readiness.State {
		case models.ReadinessReady:
			ready = append(ready, id)
			if readiness.Stale {
				stale = append(stale, id)
				errs[id] = readiness.Error
			}
		case models.ReadinessFailed:
			failed = append(failed, id)
			errs[id] = readiness.Error
		default:
			computing = append(computing, id)
		}
	}
	sort.Strings(ready)
	sort.Strings(computing)
	sort.Strings(failed)
	sort.Strings(stale)

	c.JSON(http.StatusOK, gin.H{
		"count":     len(modelNames),
		"ready":     ready,
		"computing": computing,
		"failed":    failed,
		"stale":     stale,
		"errors":    errs,
		"models":    modelNames,
	})
}

// GetChart returns the combined timeline of the cached result, windowed
// by the window query parameter (12M, 2Y, 5Y, 10Y, Max or a count).
func (h *ForecastHandler) GetChart(c *gin.Context) {
	spec, err := chart.ParseWindow(c.DefaultQuery("window", "Max"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, ok := h.lookupEntry(c)
	if !ok {
		return
	}
	timeline := chart.Compose(chart.Resolve(entry.Result, spec))
	c.JSON(http.StatusOK, timeline)
}

// Refresh recomputes "all" or one series synchronously. The computation
// outlives a disconnected client so the cache is still filled.
func (h *ForecastHandler) Refresh(c *gin.Context) {
	scope := c.Param("scope")
	ctx := context.WithoutCancel(c.Request.Context())

	report, err := h.refresher.Refresh(ctx, scope)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, series.ErrUnknownSeries) {
			code = http.StatusNotFound
		}
		c.JSON(code, gin.H{"status": "error", "message": err.Error()})
		return
	}

	if report.Total > 0 && report.Failed == report.Total {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": fmt.Sprintf("all %d series failed", report.Total),
			"report":  report,
		})
		return
	}

	message := fmt.Sprintf("refreshed %d of %d series in %s", report.Computed, report.Total, report.Duration.Round(time.Millisecond))
	if report.Failed > 0 {
		message += fmt.Sprintf(", %d failed", report.Failed)
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": message,
		"report":  report,
	})
}
