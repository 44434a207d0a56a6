package models

import (
	"fmt"
	"strings"
	"time"
)

// ModelKind identifies one variant of the closed set of forecasting models.
type ModelKind string

const (
	ModelKindAutoregressive       ModelKind = "autoregressive"
	ModelKindMovingAverage        ModelKind = "moving_average"
	ModelKindStochasticSimulation ModelKind = "stochastic_simulation"
)

// AutoregressiveParams holds an ARIMA(p,d,q) order.
type AutoregressiveParams struct {
	P int `json:"p"`
	D int `json:"d"`
	Q int `json:"q"`
}

// MovingAverageParams holds the ensemble windows.
type MovingAverageParams struct {
	Windows []int `json:"windows"`
}

// StochasticSimulationParams holds the number of simulated paths.
type StochasticSimulationParams struct {
	Simulations int `json:"simulations"`
}

// ModelConfig is a tagged variant: Kind selects which of the parameter
// blocks is populated.
type ModelConfig struct {
	Kind                 ModelKind                   `json:"kind"`
	Autoregressive       *AutoregressiveParams       `json:"autoregressive,omitempty"`
	MovingAverage        *MovingAverageParams        `json:"movingAverage,omitempty"`
	StochasticSimulation *StochasticSimulationParams `json:"stochasticSimulation,omitempty"`
	TestLength           int                         `json:"testLength"`
	ForecastHorizon      int                         `json:"forecastHorizon"`
}

// NewAutoregressiveConfig builds an ARIMA(p,d,q) config.
func NewAutoregressiveConfig(p, d, q, testLength, horizon int) ModelConfig {
	return ModelConfig{
		Kind:            ModelKindAutoregressive,
		Autoregressive:  &AutoregressiveParams{P: p, D: d, Q: q},
		TestLength:      testLength,
		ForecastHorizon: horizon,
	}
}

// NewMovingAverageConfig builds a moving average ensemble config.
func NewMovingAverageConfig(windows []int, testLength, horizon int) ModelConfig {
	return ModelConfig{
		Kind:            ModelKindMovingAverage,
		MovingAverage:   &MovingAverageParams{Windows: append([]int(nil), windows...)},
		TestLength:      testLength,
		ForecastHorizon: horizon,
	}
}

// NewStochasticSimulationConfig builds a Monte Carlo config.
func NewStochasticSimulationConfig(simulations, testLength, horizon int) ModelConfig {
	return ModelConfig{
		Kind:                 ModelKindStochasticSimulation,
		StochasticSimulation: &StochasticSimulationParams{Simulations: simulations},
		TestLength:           testLength,
		ForecastHorizon:      horizon,
	}
}

// Name returns the display name of the configured model, e.g. "ARIMA(1,1,1)".
func (c ModelConfig) Name() string {
	switch c.Kind {
	case ModelKindAutoregressive:
		if c.Autoregressive == nil {
			return "ARIMA"
		}
		return fmt.Sprintf("ARIMA(%d,%d,%d)", c.Autoregressive.P, c.Autoregressive.D, c.Autoregressive.Q)
	case ModelKindMovingAverage:
		if c.MovingAverage == nil {
			return "MA"
		}
		parts := make([]string, len(c.MovingAverage.Windows))
		for i, w := range c.MovingAverage.Windows {
			parts[i] = fmt.Sprint(w)
		}
		return "MA(" + strings.Join(parts, ",") + ")"
	case ModelKindStochasticSimulation:
		if c.StochasticSimulation == nil {
			return "Monte Carlo"
		}
		return fmt.Sprintf("Monte Carlo (%d sims)", c.StochasticSimulation.Simulations)
	default:
		return string(c.Kind)
	}
}

// HistoricalData is the observation history fed to a model.
type HistoricalData struct {
	Dates  []string  `json:"dates"`
	Values []float64 `json:"values"`
}

// ForecastData is the point forecast with flat error bands.
type ForecastData struct {
	Dates      []string  `json:"dates"`
	Values     []float64 `json:"values"`
	Sigma1Up   []float64 `json:"sigma1Up"`
	Sigma1Down []float64 `json:"sigma1Down"`
	Sigma2Up   []float64 `json:"sigma2Up"`
	Sigma2Down []float64 `json:"sigma2Down"`
}

// ComparisonData is the held-out test window, actual against predicted.
type ComparisonData struct {
	Dates         []string  `json:"dates"`
	Actual        []float64 `json:"actual"`
	Predicted     []float64 `json:"predicted"`
	ActualDiff    []float64 `json:"actualDiff"`
	PredictedDiff []float64 `json:"predictedDiff"`
	DiffError     []float64 `json:"diffError"`
}

// ForecastResult is the uniform output of every model variant.
type ForecastResult struct {
	Historical     HistoricalData     `json:"historical"`
	Forecast       ForecastData       `json:"forecast"`
	Comparison     ComparisonData     `json:"comparison"`
	Stats          map[string]float64 `json:"stats"`
	Params         map[string]float64 `json:"params,omitempty"`
	QualityOpinion string             `json:"qualityOpinion"`
	ModelKind      ModelKind          `json:"modelKind"`
	ModelName      string             `json:"model"`
	Frequency      Frequency          `json:"frequency"`
}

// Stat names shared by every variant.
const (
	StatRMSE = "RMSE"
	StatMAPE = "MAPE"
	StatMAE  = "MAE"
)

// CandidateScore is one row of the model comparison table.
type CandidateScore struct {
	ModelName string    `json:"model"`
	Kind      ModelKind `json:"kind"`
	RMSE      float64   `json:"rmse"`
	MAPE      float64   `json:"mape"`
	AIC       *float64  `json:"aic,omitempty"`
	BIC       *float64  `json:"bic,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// CacheEntry is the latest best-model result for one series.
type CacheEntry struct {
	SeriesID      string           `json:"seriesId"`
	Result        *ForecastResult  `json:"result"`
	BestModelKind ModelKind        `json:"bestModelKind"`
	ComputedAt    time.Time        `json:"computedAt"`
	Candidates    []CandidateScore `json:"candidates,omitempty"`
}

// ReadinessState distinguishes "still computing" from "failed" from "ready".
type ReadinessState string

const (
	ReadinessPending   ReadinessState = "pending"
	ReadinessComputing ReadinessState = "computing"
	ReadinessReady     ReadinessState = "ready"
	ReadinessFailed    ReadinessState = "failed"
)

// Readiness is the observable computation state of one series.
type Readiness struct {
	State ReadinessState `json:"state"`
	Error string         `json:"error,omitempty"`
	// Stale is set when the last refresh failed but an older result is
	// still served.
	Stale     bool      `json:"stale,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
