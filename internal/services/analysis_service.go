package services

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kobimpw/Economic-terminal/internal/forecast"
	"github.com/kobimpw/Economic-terminal/internal/models"
	"github.com/kobimpw/Economic-terminal/internal/series"
	"github.com/kobimpw/Economic-terminal/internal/utils"
)

// AnalysisDefaults fill in testLength and forecastHorizon when a request
// leaves them at zero. Timeout bounds fetch plus fit for one request.
type AnalysisDefaults struct {
	TestLength      int
	ForecastHorizon int
	Timeout         time.Duration
}

// AnalysisService runs one model on demand, bypassing the forecast cache.
// Every response carries a process-wide monotonic sequence number so a
// client can discard responses that arrive out of order.
type AnalysisService struct {
	catalog  *series.Catalog
	store    series.Store
	opts     forecast.Options
	defaults AnalysisDefaults
	metrics  SweepMetrics
	logger   *logrus.Logger
	sequence atomic.Uint64
}

// NewAnalysisService creates the service. metrics may be nil.
func NewAnalysisService(catalog *series.Catalog, store series.Store, opts forecast.Options, defaults AnalysisDefaults, metrics SweepMetrics, logger *logrus.Logger) *AnalysisService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if defaults.TestLength == 0 {
		defaults.TestLength = 12
	}
	if defaults.ForecastHorizon == 0 {
		defaults.ForecastHorizon = 6
	}
	if defaults.Timeout <= 0 {
		defaults.Timeout = 2 * time.Minute
	}
	return &AnalysisService{
		catalog:  catalog,
		store:    store,
		opts:     opts,
		defaults: defaults,
		metrics:  metrics,
		logger:   logger,
	}
}

// Analyze validates the request, loads the series and runs the configured
// model. Validation failures are *utils.ValidationError, unknown series
// wrap series.ErrUnknownSeries and model failures are
// *forecast.ComputationError.
func (s *AnalysisService) Analyze(ctx context.Context, req models.AnalyzeRequest) (*models.AnalyzeResponse, error) {
	id := strings.ToUpper(strings.TrimSpace(req.SeriesID))
	if id == "" {
		return nil, utils.NewValidationError("seriesId is required")
	}
	indicator, ok := s.catalog.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", series.ErrUnknownSeries, req.SeriesID)
	}

	cfg, err := req.ModelConfig.ToModelConfig(s.defaults.TestLength, s.defaults.ForecastHorizon)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.defaults.Timeout)
	defer cancel()

	observations, err := s.store.Observations(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load observations for %s: %w", id, err)
	}

	started := time.Now()
	result, err := forecast.Run(ctx, observations, cfg, s.opts)
	elapsed := time.Since(started)
	if s.metrics != nil {
		s.metrics.RecordModelRun(string(cfg.Kind), elapsed, err)
	}

	fields := logrus.Fields{
		"series_id":   id,
		"model":       cfg.Name(),
		"duration_ms": elapsed.Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		s.logger.WithFields(fields).Info("Analysis failed")
		return nil, err
	}
	s.logger.WithFields(fields).Debug("Analysis completed")

	return &models.AnalyzeResponse{
		ForecastResult: result,
		SeriesID:       id,
		SeriesName:     indicator.DisplayName,
		FredLink:       series.FredLink(id),
		Sequence:       s.sequence.Add(1),
		RequestSeq:     req.RequestSeq,
	}, nil
}
