package forecast

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kobimpw/Economic-terminal/internal/models"
)

// Runner fits one model variant and produces the uniform ForecastResult.
type Runner interface {
	Run(ctx context.Context, observations []models.Observation, cfg models.ModelConfig) (*models.ForecastResult, error)
}

// model is the variant-specific part of a run. backtest predicts the test
// window from the train split; project forecasts beyond the full series.
// Both return ctx.Err() once the context is done.
type model interface {
	kind() models.ModelKind
	minTrainLength(cfg models.ModelConfig) int
	backtest(ctx context.Context, train, test []float64, cfg models.ModelConfig) ([]float64, error)
	project(ctx context.Context, series []float64, cfg models.ModelConfig) (*projection, error)
	opinion(stats map[string]float64) string
}

// projection is the output of the full-series fit.
type projection struct {
	values []float64
	stats  map[string]float64
	params map[string]float64
}

// Options tunes runner behaviour that is not part of a ModelConfig.
type Options struct {
	// Seed feeds the simulation random source; runs with equal seeds are
	// reproducible.
	Seed uint64
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{Seed: 42}
}

// NewRunner returns the runner for a model kind.
func NewRunner(kind models.ModelKind, opts Options) (Runner, error) {
	var m model
	switch kind {
	case models.ModelKindAutoregressive:
		m = autoregressive{}
	case models.ModelKindMovingAverage:
		m = movingAverage{}
	case models.ModelKindStochasticSimulation:
		m = stochasticSimulation{seed: opts.Seed}
	default:
		return nil, fmt.Errorf("unknown model kind %q", kind)
	}
	return &pipeline{model: m}, nil
}

// Run is a convenience for NewRunner(cfg.Kind, opts).Run.
func Run(ctx context.Context, observations []models.Observation, cfg models.ModelConfig, opts Options) (*models.ForecastResult, error) {
	runner, err := NewRunner(cfg.Kind, opts)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx, observations, cfg)
}

type pipeline struct {
	model model
}

func tracer() trace.Tracer {
	return otel.Tracer("github.com/kobimpw/Economic-terminal/internal/forecast")
}

func (p *pipeline) Run(ctx context.Context, observations []models.Observation, cfg models.ModelConfig) (*models.ForecastResult, error) {
	ctx, span := tracer().Start(ctx, "forecast.run", trace.WithAttributes(
		attribute.String("model.kind", string(cfg.Kind)),
		attribute.String("model.name", cfg.Name()),
		attribute.Int("observations", len(observations)),
	))
	defer span.End()

	result, err := p.safeRun(ctx, observations, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Float64("model.rmse", result.Stats[models.StatRMSE]))
	return result, nil
}

// safeRun turns a panic inside a model into a ComputationError so one bad
// fit cannot take down a sweep worker.
func (p *pipeline) safeRun(ctx context.Context, observations []models.Observation, cfg models.ModelConfig) (result *models.ForecastResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = nonConvergence(cfg.Name(), "model panicked: %v", r)
		}
	}()
	return p.run(ctx, observations, cfg)
}

func (p *pipeline) run(ctx context.Context, observations []models.Observation, cfg models.ModelConfig) (*models.ForecastResult, error) {
	name := cfg.Name()
	if cfg.Kind != p.model.kind() {
		return nil, fmt.Errorf("runner for %s received %s config", p.model.kind(), cfg.Kind)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	observations, freq := Regularize(observations)
	if cfg.TestLength >= len(observations) {
		return nil, insufficientData(name, "test length %d needs more than %d observations", cfg.TestLength, len(observations))
	}

	values := models.Values(observations)
	trainLen := len(values) - cfg.TestLength
	if need := p.model.minTrainLength(cfg); trainLen < need {
		return nil, insufficientData(name, "needs at least %d training observations, got %d", need, trainLen)
	}
	if !allFinite(values) {
		return nil, nonConvergence(name, "series contains non-finite values")
	}

	train, test := values[:trainLen], values[trainLen:]
	predicted, err := p.model.backtest(ctx, train, test, cfg)
	if err != nil {
		return nil, err
	}
	if len(predicted) != len(test) || !allFinite(predicted) {
		return nil, nonConvergence(name, "test predictions are not finite")
	}

	proj, err := p.model.project(ctx, values, cfg)
	if err != nil {
		return nil, err
	}
	if len(proj.values) != cfg.ForecastHorizon || !allFinite(proj.values) {
		return nil, nonConvergence(name, "forecast values are not finite")
	}

	rmse, mae, mape := errorMetrics(test, predicted)
	stats := map[string]float64{
		models.StatRMSE: rmse,
		models.StatMAE:  mae,
		models.StatMAPE: mape,
	}
	for k, v := range proj.stats {
		stats[k] = v
	}

	dates := models.Dates(observations)
	actualDiff := periodDiff(test)
	predictedDiff := periodDiff(predicted)
	diffError := make([]float64, len(test))
	for i := range test {
		diffError[i] = actualDiff[i] - predictedDiff[i]
	}
	up1, down1, up2, down2 := flatBands(proj.values, rmse)

	return &models.ForecastResult{
		Historical: models.HistoricalData{
			Dates:  dates,
			Values: values,
		},
		Forecast: models.ForecastData{
			Dates:      FutureDates(observations[len(observations)-1].Date, freq, cfg.ForecastHorizon),
			Values:     proj.values,
			Sigma1Up:   up1,
			Sigma1Down: down1,
			Sigma2Up:   up2,
			Sigma2Down: down2,
		},
		Comparison: models.ComparisonData{
			Dates:         append([]string(nil), dates[trainLen:]...),
			Actual:        append([]float64(nil), test...),
			Predicted:     predicted,
			ActualDiff:    actualDiff,
			PredictedDiff: predictedDiff,
			DiffError:     diffError,
		},
		Stats:          stats,
		Params:         proj.params,
		QualityOpinion: p.model.opinion(stats),
		ModelKind:      cfg.Kind,
		ModelName:      name,
		Frequency:      freq,
	}, nil
}
