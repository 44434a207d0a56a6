package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kobimpw/Economic-terminal/internal/database"
	"github.com/kobimpw/Economic-terminal/internal/models"
	"github.com/kobimpw/Economic-terminal/internal/services"
)

var startTime = time.Now()

const (
	statusOK       = "ok"
	statusError    = "error"
	statusDisabled = "disabled"
)

// HealthChecker is satisfied by *database.PostgresDB and
// *database.RedisClient; a nil receiver reports database.ErrNotConfigured.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// SweepStatus exposes startup sweep progress.
type SweepStatus interface {
	StartupComplete() bool
	LastReport() (services.SweepReport, bool)
}

type HealthHandler struct {
	db      HealthChecker
	redis   HealthChecker
	sweep   SweepStatus
	cache   ForecastReader
	catalog SeriesCatalog
	timeout time.Duration
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Services   map[string]string `json:"services"`
	Precompute PrecomputeHealth  `json:"precompute"`
	Uptime     string            `json:"uptime"`
}

// PrecomputeHealth is the readiness breakdown of the catalog.
type PrecomputeHealth struct {
	StartupComplete bool                  `json:"startupComplete"`
	Total           int                   `json:"total"`
	Ready           int                   `json:"ready"`
	Computing       int                   `json:"computing"`
	Pending         int                   `json:"pending"`
	Failed          int                   `json:"failed"`
	LastRun         *services.SweepReport `json:"lastRun,omitempty"`
}

// NewHealthHandler creates the handler. db and redis may be nil when the
// backing store is disabled.
func NewHealthHandler(db, redis HealthChecker, sweep SweepStatus, cache ForecastReader, catalog SeriesCatalog) *HealthHandler {
	return &HealthHandler{
		db:      db,
		redis:   redis,
		sweep:   sweep,
		cache:   cache,
		catalog: catalog,
		timeout: 3 * time.Second,
	}
}

// HealthCheck reports dependency status and sweep progress. Any failing
// dependency makes the service degraded (503); disabled ones do not.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	servicesStatus := map[string]string{
		"database": checkDependency(ctx, h.db),
		"redis":    checkDependency(ctx, h.redis),
	}

	status := "healthy"
	for _, s := range servicesStatus {
		if s == statusError {
			status = "degraded"
		}
	}

	response := HealthResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Services:   servicesStatus,
		Precompute: h.precomputeHealth(),
		Uptime:     time.Since(startTime).Round(time.Second).String(),
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, response)
}

func checkDependency(ctx context.Context, checker HealthChecker) string {
	if checker == nil {
		return statusDisabled
	}
	err := checker.HealthCheck(ctx)
	switch {
	case err == nil:
		return statusOK
	case errors.Is(err, database.ErrNotConfigured):
		return statusDisabled
	default:
		return statusError
	}
}

func (h *HealthHandler) precomputeHealth() PrecomputeHealth {
	var out PrecomputeHealth
	if h.sweep != nil {
		out.StartupComplete = h.sweep.StartupComplete()
		if report, ok := h.sweep.LastReport(); ok {
			out.LastRun = &report
		}
	}
	if h.catalog == nil || h.cache == nil {
		return out
	}
	for _, id := range h.catalog.IDs() {
		out.Total++
		switch h.cache.Readiness(id).State {
		case models.ReadinessReady:
			out.Ready++
		case models.ReadinessComputing:
			out.Computing++
		case models.ReadinessFailed:
			out.Failed++
		default:
			out.Pending++
		}
	}
	return out
}
