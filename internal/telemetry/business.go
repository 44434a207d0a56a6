package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BusinessTracer opens spans around precompute work: one per sweep and one
// per series computation inside it.
type BusinessTracer struct {
	tracer trace.Tracer
}

// SweepOutcome summarizes a finished sweep for its span.
type SweepOutcome struct {
	RunID    string
	Computed int
	Reused   int
	Failed   int
}

// SelectionOutcome describes the model chosen for one series.
type SelectionOutcome struct {
	ModelName  string
	ModelKind  string
	RMSE       float64
	MAPE       float64
	Candidates int
	Failed     int
}

// NewBusinessTracer uses tracer, or the global forecast tracer when nil.
func NewBusinessTracer(tracer trace.Tracer) *BusinessTracer {
	if tracer == nil {
		tracer = GetForecastTracer()
	}
	return &BusinessTracer{tracer: tracer}
}

// TraceSweep starts the span of a precompute sweep.
func (bt *BusinessTracer) TraceSweep(ctx context.Context, scope string, seriesCount int, workers int) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "precompute.sweep",
		trace.WithAttributes(
			attribute.String("sweep.scope", scope),
			attribute.Int("sweep.series_count", seriesCount),
			attribute.Int("sweep.workers", workers),
		),
	)
}

// RecordSweepOutcome annotates and finishes the sweep span.
func (bt *BusinessTracer) RecordSweepOutcome(span trace.Span, outcome SweepOutcome) {
	span.SetAttributes(
		attribute.String("sweep.run_id", outcome.RunID),
		attribute.Int("sweep.computed", outcome.Computed),
		attribute.Int("sweep.reused", outcome.Reused),
		attribute.Int("sweep.failed", outcome.Failed),
	)
	if outcome.Failed > 0 {
		span.SetStatus(codes.Error, "one or more series failed")
	}
	span.End()
}

// TraceSeriesCompute starts the span of one series computation.
func (bt *BusinessTracer) TraceSeriesCompute(ctx context.Context, seriesID string) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "precompute.series",
		trace.WithAttributes(attribute.String("series.id", seriesID)),
	)
}

// RecordSelection annotates and finishes a series span. A non-nil err marks
// the span failed.
func (bt *BusinessTracer) RecordSelection(span trace.Span, outcome SelectionOutcome, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return
	}
	span.SetAttributes(
		attribute.String("forecast.model", outcome.ModelName),
		attribute.String("forecast.kind", outcome.ModelKind),
		attribute.Float64("forecast.rmse", outcome.RMSE),
		attribute.Float64("forecast.mape", outcome.MAPE),
		attribute.Int("forecast.candidates", outcome.Candidates),
		attribute.Int("forecast.candidates_failed", outcome.Failed),
	)
	span.End()
}
