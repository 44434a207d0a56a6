package models

import (
	"github.com/kobimpw/Economic-terminal/internal/utils"
)

// ModelConfigRequest is the external form of a model configuration. Exactly
// one of Order, Windows or Simulations selects the variant.
type ModelConfigRequest struct {
	Order           []int `json:"order,omitempty"`
	Windows         []int `json:"windows,omitempty"`
	Simulations     *int  `json:"simulations,omitempty"`
	TestLength      int   `json:"testLength"`
	ForecastHorizon int   `json:"forecastHorizon"`
}

// AnalyzeRequest asks for an on-demand, uncached model run.
type AnalyzeRequest struct {
	SeriesID    string             `json:"seriesId" binding:"required"`
	ModelConfig ModelConfigRequest `json:"modelConfig"`
	RequestSeq  uint64             `json:"requestSeq,omitempty"`
}

// AnalyzeResponse is a ForecastResult decorated for display.
type AnalyzeResponse struct {
	*ForecastResult
	SeriesID   string `json:"seriesId"`
	SeriesName string `json:"seriesName"`
	FredLink   string `json:"fredLink"`
	Sequence   uint64 `json:"sequence"`
	RequestSeq uint64 `json:"requestSeq,omitempty"`
}

// ToModelConfig converts the request into a tagged ModelConfig. Zero
// testLength or forecastHorizon fall back to the supplied defaults.
func (r ModelConfigRequest) ToModelConfig(defaultTestLength, defaultHorizon int) (ModelConfig, error) {
	testLength := r.TestLength
	if testLength == 0 {
		testLength = defaultTestLength
	}
	horizon := r.ForecastHorizon
	if horizon == 0 {
		horizon = defaultHorizon
	}

	selected := 0
	if r.Order != nil {
		selected++
	}
	if r.Windows != nil {
		selected++
	}
	if r.Simulations != nil {
		selected++
	}
	if selected != 1 {
		return ModelConfig{}, utils.NewValidationError("modelConfig must set exactly one of order, windows or simulations")
	}

	var cfg ModelConfig
	switch {
	case r.Order != nil:
		if len(r.Order) != 3 {
			return ModelConfig{}, utils.NewValidationErrorf("order must have 3 elements, got %d", len(r.Order))
		}
		cfg = NewAutoregressiveConfig(r.Order[0], r.Order[1], r.Order[2], testLength, horizon)
	case r.Windows != nil:
		cfg = NewMovingAverageConfig(r.Windows, testLength, horizon)
	default:
		cfg = NewStochasticSimulationConfig(*r.Simulations, testLength, horizon)
	}

	if err := cfg.Validate(); err != nil {
		return ModelConfig{}, err
	}
	return cfg, nil
}

// Upper bounds on model parameters. They keep a single run within memory
// and CPU limits whatever a client sends.
const (
	MaxTestLength      = 1000
	MaxForecastHorizon = 520
	MaxARMAOrder       = 10
	MaxDifferencing    = 2
	MaxWindows         = 12
	MaxWindow          = 1000
	MaxSimulations     = 100_000
)

// Validate checks the parameter ranges that do not depend on the data.
func (c ModelConfig) Validate() error {
	if c.TestLength < 1 || c.TestLength > MaxTestLength {
		return utils.NewValidationErrorf("testLength must be between 1 and %d, got %d", MaxTestLength, c.TestLength)
	}
	if c.ForecastHorizon < 1 || c.ForecastHorizon > MaxForecastHorizon {
		return utils.NewValidationErrorf("forecastHorizon must be between 1 and %d, got %d", MaxForecastHorizon, c.ForecastHorizon)
	}

	switch c.Kind {
	case ModelKindAutoregressive:
		p := c.Autoregressive
		if p == nil {
			return utils.NewValidationError("autoregressive parameters are missing")
		}
		if p.P < 0 || p.D < 0 || p.Q < 0 {
			return utils.NewValidationErrorf("order values must be non-negative, got (%d,%d,%d)", p.P, p.D, p.Q)
		}
		if p.P > MaxARMAOrder || p.Q > MaxARMAOrder || p.D > MaxDifferencing {
			return utils.NewValidationErrorf("order (%d,%d,%d) exceeds p,q <= %d and d <= %d", p.P, p.D, p.Q, MaxARMAOrder, MaxDifferencing)
		}
	case ModelKindMovingAverage:
		if c.MovingAverage == nil || len(c.MovingAverage.Windows) == 0 {
			return utils.NewValidationError("windows must not be empty")
		}
		if len(c.MovingAverage.Windows) > MaxWindows {
			return utils.NewValidationErrorf("at most %d windows are allowed, got %d", MaxWindows, len(c.MovingAverage.Windows))
		}
		for _, w := range c.MovingAverage.Windows {
			if w < 1 {
				return utils.NewValidationErrorf("windows must be positive, got %d", w)
			}
			if w > MaxWindow {
				return utils.NewValidationErrorf("window %d exceeds %d", w, MaxWindow)
			}
		}
	case ModelKindStochasticSimulation:
		if c.StochasticSimulation == nil || c.StochasticSimulation.Simulations < 1 {
			return utils.NewValidationError("simulations must be positive")
		}
		if c.StochasticSimulation.Simulations > MaxSimulations {
			return utils.NewValidationErrorf("simulations must be at most %d, got %d", MaxSimulations, c.StochasticSimulation.Simulations)
		}
	default:
		return utils.NewValidationErrorf("unknown model kind %q", c.Kind)
	}
	return nil
}
