package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kobimpw/Economic-terminal/internal/cache"
	"github.com/kobimpw/Economic-terminal/internal/database"
	"github.com/kobimpw/Economic-terminal/internal/forecast"
	"github.com/kobimpw/Economic-terminal/internal/models"
	"github.com/kobimpw/Economic-terminal/internal/series"
	"github.com/kobimpw/Economic-terminal/internal/telemetry"
)

// ScopeAll refreshes every series of the catalog.
const ScopeAll = "all"

// SweepReport summarizes one precompute sweep.
type SweepReport struct {
	RunID     uuid.UUID         `json:"runId"`
	Scope     string            `json:"scope"`
	Total     int               `json:"total"`
	Computed  int               `json:"computed"`
	Reused    int               `json:"reused"`
	Failed    int               `json:"failed"`
	Failures  map[string]string `json:"failures,omitempty"`
	StartedAt time.Time         `json:"startedAt"`
	Duration  time.Duration     `json:"duration"`
}

// PrecomputeConfig tunes the scheduler.
type PrecomputeConfig struct {
	// Workers bounds concurrent series; 0 sizes the pool from the host.
	Workers int
	// ReuseWithin skips series whose cached entry is younger than this
	// during the startup sweep. 0 disables reuse.
	ReuseWithin time.Duration
	Candidates  []models.ModelConfig
}

// RunRecorder persists sweep history.
type RunRecorder interface {
	Record(ctx context.Context, run database.ForecastRun) error
}

// SweepMetrics receives sweep and model run measurements.
type SweepMetrics interface {
	RecordSweep(scope string, computed, reused, failed int, duration time.Duration)
	RecordModelRun(kind string, duration time.Duration, err error)
	SetCacheEntries(n int)
}

// SweepNotifier is told about every finished sweep.
type SweepNotifier interface {
	NotifySweep(ctx context.Context, report SweepReport) error
}

// SchedulerOption configures optional collaborators.
type SchedulerOption func(*PrecomputeScheduler)

// WithRunRecorder stores a history row per sweep.
func WithRunRecorder(r RunRecorder) SchedulerOption {
	return func(s *PrecomputeScheduler) { s.runs = r }
}

// WithSweepMetrics reports to a metrics collector.
func WithSweepMetrics(m SweepMetrics) SchedulerOption {
	return func(s *PrecomputeScheduler) { s.metrics = m }
}

// WithSweepNotifier sends sweep summaries.
func WithSweepNotifier(n SweepNotifier) SchedulerOption {
	return func(s *PrecomputeScheduler) { s.notifier = n }
}

// WithTimeoutManager bounds each series computation.
func WithTimeoutManager(tm *TimeoutManager) SchedulerOption {
	return func(s *PrecomputeScheduler) { s.timeouts = tm }
}

// WithBusinessTracer traces sweeps and series.
func WithBusinessTracer(bt *telemetry.BusinessTracer) SchedulerOption {
	return func(s *PrecomputeScheduler) { s.tracer = bt }
}

// PrecomputeScheduler fills the forecast cache off the request path: one
// sweep at startup and on demand refreshes afterwards.
// ObservationInvalidator is implemented by stores that keep observations in
// memory. Explicit sweeps invalidate the series they recompute so the fit
// runs on a fresh fetch.
type ObservationInvalidator interface {
	Invalidate(seriesID string)
}

type PrecomputeScheduler struct {
	catalog     *series.Catalog
	store       series.Store
	cache       *cache.ForecastCache
	selector    *forecast.Selector
	candidates  []models.ModelConfig
	workers     int
	reuseWithin time.Duration

	runs     RunRecorder
	metrics  SweepMetrics
	notifier SweepNotifier
	timeouts *TimeoutManager
	tracer   *telemetry.BusinessTracer
	logger   *logrus.Logger
	now      func() time.Time

	startOnce sync.Once
	done      chan struct{}

	mu         sync.RWMutex
	lastReport *SweepReport
}

// NewPrecomputeScheduler wires the scheduler. Candidates default to
// forecast.DefaultCandidates(12, 6).
func NewPrecomputeScheduler(
	catalog *series.Catalog,
	store series.Store,
	forecastCache *cache.ForecastCache,
	selector *forecast.Selector,
	cfg PrecomputeConfig,
	logger *logrus.Logger,
	opts ...SchedulerOption,
) *PrecomputeScheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	candidates := cfg.Candidates
	if len(candidates) == 0 {
		candidates = forecast.DefaultCandidates(12, 6)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = NewResourceOptimizer(DefaultResourceOptimizerConfig(), logger).Workers()
	}

	s := &PrecomputeScheduler{
		catalog:     catalog,
		store:       store,
		cache:       forecastCache,
		selector:    selector,
		candidates:  candidates,
		workers:     workers,
		reuseWithin: cfg.ReuseWithin,
		logger:      logger,
		now:         time.Now,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.timeouts == nil {
		s.timeouts = NewTimeoutManager(nil, logger)
	}
	if s.tracer == nil {
		s.tracer = telemetry.NewBusinessTracer(nil)
	}
	if s.metrics != nil {
		metrics := s.metrics
		selector.OnRun(func(kind models.ModelKind, _ string, elapsed time.Duration, err error) {
			metrics.RecordModelRun(string(kind), elapsed, err)
		})
	}
	return s
}

// Workers returns the size of the worker pool.
func (s *PrecomputeScheduler) Workers() int {
	return s.workers
}

// Start launches the startup sweep over the whole catalog and returns at
// once. Later calls are no-ops.
func (s *PrecomputeScheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ids := s.catalog.IDs()
		s.cache.MarkPending(ids...)
		go func() {
			defer close(s.done)
			s.sweep(ctx, ScopeAll, ids, true)
		}()
	})
}

// Done is closed when the startup sweep has finished.
func (s *PrecomputeScheduler) Done() <-chan struct{} {
	return s.done
}

// StartupComplete reports whether the startup sweep has finished.
func (s *PrecomputeScheduler) StartupComplete() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Sweep refetches and recomputes the given series and waits for all of
// them.
func (s *PrecomputeScheduler) Sweep(ctx context.Context, seriesIDs []string) SweepReport {
	scope := ScopeAll
	if len(seriesIDs) == 1 {
		scope = seriesIDs[0]
	}
	if inv, ok := s.store.(ObservationInvalidator); ok {
		for _, id := range seriesIDs {
			inv.Invalidate(id)
		}
	}
	s.cache.MarkPending(seriesIDs...)
	return s.sweep(ctx, scope, seriesIDs, false)
}

// Refresh recomputes scope, which is "all" or one series id, synchronously.
func (s *PrecomputeScheduler) Refresh(ctx context.Context, scope string) (SweepReport, error) {
	if strings.EqualFold(scope, ScopeAll) {
		return s.Sweep(ctx, s.catalog.IDs()), nil
	}
	id := strings.ToUpper(strings.TrimSpace(scope))
	if !s.catalog.Contains(id) {
		return SweepReport{}, fmt.Errorf("%w: %s", series.ErrUnknownSeries, scope)
	}
	return s.Sweep(ctx, []string{id}), nil
}

// LastReport returns the report of the most recent sweep.
func (s *PrecomputeScheduler) LastReport() (SweepReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastReport == nil {
		return SweepReport{}, false
	}
	return *s.lastReport, true
}

func (s *PrecomputeScheduler) sweep(ctx context.Context, scope string, ids []string, allowReuse bool) SweepReport {
	report := SweepReport{
		RunID:     uuid.New(),
		Scope:     scope,
		Total:     len(ids),
		Failures:  make(map[string]string),
		StartedAt: s.now(),
	}
	ctx, span := s.tracer.TraceSweep(ctx, scope, len(ids), s.workers)

	s.logger.WithFields(logrus.Fields{
		"run_id":  report.RunID.String(),
		"scope":   scope,
		"series":  len(ids),
		"workers": s.workers,
	}).Info("Starting precompute sweep")

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.workers)

	for _, id := range ids {
		g.Go(func() error {
			reused, err := s.computeOne(ctx, report.RunID, id, allowReuse)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
				report.Failures[id] = err.Error()
			case reused:
				report.Reused++
			default:
				report.Computed++
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(report.StartedAt)
	s.tracer.RecordSweepOutcome(span, telemetry.SweepOutcome{
		RunID:    report.RunID.String(),
		Computed: report.Computed,
		Reused:   report.Reused,
		Failed:   report.Failed,
	})
	s.finish(ctx, report)
	return report
}

// computeOne fills the cache for one series. Errors are logged here and
// reported to the caller, never propagated to other series.
func (s *PrecomputeScheduler) computeOne(ctx context.Context, runID uuid.UUID, id string, allowReuse bool) (bool, error) {
	if allowReuse && s.reusable(id) {
		s.logger.WithField("series_id", id).Debug("Reusing recent forecast")
		return true, nil
	}

	op := s.timeouts.CreateOperationContextWithParent(ctx, OperationCompute, "compute:"+id+":"+runID.String())
	defer s.timeouts.CompleteOperation(op.OperationID)

	spanCtx, span := s.tracer.TraceSeriesCompute(op.Ctx, id)
	var selection *forecast.Selection
	entry, err := s.cache.GetOrCompute(spanCtx, id, func(ctx context.Context) (entry models.CacheEntry, err error) {
		defer func() {
			if r := recover(); r != nil {
				entry, err = models.CacheEntry{}, fmt.Errorf("compute panicked: %v", r)
			}
		}()
		observations, err := s.store.Observations(ctx, id)
		if err != nil {
			return models.CacheEntry{}, fmt.Errorf("load observations: %w", err)
		}
		selection, err = s.selector.SelectBest(ctx, observations, s.candidates)
		if err != nil {
			return models.CacheEntry{}, err
		}
		return models.CacheEntry{
			SeriesID:      id,
			Result:        selection.Result,
			BestModelKind: selection.Kind,
			ComputedAt:    s.now(),
			Candidates:    selection.Candidates,
		}, nil
	})

	outcome := telemetry.SelectionOutcome{}
	if err == nil {
		outcome = selectionOutcome(entry)
	}
	s.tracer.RecordSelection(span, outcome, err)

	if err != nil {
		fields := logrus.Fields{"series_id": id, "error": err.Error()}
		var noModel *forecast.NoModelConvergedError
		if errors.As(err, &noModel) {
			fields["candidates_failed"] = len(noModel.Failures)
		}
		s.logger.WithFields(fields).Warn("Precompute failed for series")
		return false, err
	}

	s.logger.WithFields(logrus.Fields{
		"series_id": id,
		"model":     entry.Result.ModelName,
		"rmse":      entry.Result.Stats[models.StatRMSE],
	}).Debug("Precomputed forecast")
	return false, nil
}

func (s *PrecomputeScheduler) reusable(id string) bool {
	if s.reuseWithin <= 0 {
		return false
	}
	entry, ok := s.cache.Snapshot()[id]
	if !ok || entry.Result == nil {
		return false
	}
	return s.now().Sub(entry.ComputedAt) < s.reuseWithin
}

func selectionOutcome(entry models.CacheEntry) telemetry.SelectionOutcome {
	outcome := telemetry.SelectionOutcome{
		ModelName:  entry.Result.ModelName,
		ModelKind:  string(entry.BestModelKind),
		RMSE:       entry.Result.Stats[models.StatRMSE],
		MAPE:       entry.Result.Stats[models.StatMAPE],
		Candidates: len(entry.Candidates),
	}
	for _, c := range entry.Candidates {
		if c.Error != "" {
			outcome.Failed++
		}
	}
	return outcome
}

// finish publishes the report: metrics, history row, notification and log.
// None of these can fail the sweep.
func (s *PrecomputeScheduler) finish(ctx context.Context, report SweepReport) {
	s.mu.Lock()
	s.lastReport = &report
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordSweep(report.Scope, report.Computed, report.Reused, report.Failed, report.Duration)
		s.metrics.SetCacheEntries(s.cache.Len())
	}

	// The sweep context may already be cancelled at shutdown; the history
	// row and notification get their own deadline.
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if s.runs != nil {
		err := s.runs.Record(publishCtx, database.ForecastRun{
			RunID:      report.RunID,
			Scope:      report.Scope,
			StartedAt:  report.StartedAt,
			FinishedAt: report.StartedAt.Add(report.Duration),
			Total:      report.Total,
			Computed:   report.Computed,
			Reused:     report.Reused,
			Failed:     report.Failed,
			Failures:   report.Failures,
		})
		if err != nil {
			s.logger.WithError(err).Warn("Failed to record forecast run")
		}
	}

	if s.notifier != nil {
		if err := s.notifier.NotifySweep(publishCtx, report); err != nil {
			s.logger.WithError(err).Warn("Failed to send sweep notification")
		}
	}

	entry := s.logger.WithFields(logrus.Fields{
		"run_id":      report.RunID.String(),
		"scope":       report.Scope,
		"total":       report.Total,
		"computed":    report.Computed,
		"reused":      report.Reused,
		"failed":      report.Failed,
		"duration_ms": report.Duration.Milliseconds(),
	})
	if report.Failed > 0 {
		entry.Warn("Precompute sweep finished with failures")
	} else {
		entry.Info("Precompute sweep finished")
	}
}
