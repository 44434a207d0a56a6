package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kobimpw/Economic-terminal/internal/forecast"
	"github.com/kobimpw/Economic-terminal/internal/middleware"
	"github.com/kobimpw/Economic-terminal/internal/models"
	"github.com/kobimpw/Economic-terminal/internal/series"
	"github.com/kobimpw/Economic-terminal/internal/utils"
)

// Analyzer runs one model on demand.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalyzeRequest) (*models.AnalyzeResponse, error)
}

type AnalysisHandler struct {
	analyzer Analyzer
}

func NewAnalysisHandler(analyzer Analyzer) *AnalysisHandler {
	return &AnalysisHandler{analyzer: analyzer}
}

// Analyze handles POST /analyze. Errors use a {detail} body: 400 for bad
// input, 404 for unknown series, 422 when the model cannot be fit.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request: " + err.Error()})
		return
	}
	middleware.AddSpanAttribute(c, "series.id", req.SeriesID)

	resp, err := h.analyzer.Analyze(c.Request.Context(), req)
	if err != nil {
		middleware.RecordError(c, err, "analysis failed")
		c.JSON(analysisStatus(err), gin.H{"detail": err.Error()})
		return
	}
	middleware.AddSpanAttribute(c, "analysis.sequence", resp.Sequence)
	c.JSON(http.StatusOK, resp)
}

func analysisStatus(err error) int {
	var compErr *forecast.ComputationError
	var noModel *forecast.NoModelConvergedError
	switch {
	case utils.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, series.ErrUnknownSeries):
		return http.StatusNotFound
	case errors.As(err, &compErr), errors.As(err, &noModel), errors.Is(err, series.ErrNoObservations):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
