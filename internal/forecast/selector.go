package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kobimpw/Economic-terminal/internal/models"
)

// Default candidate parameters for the precompute sweep.
var (
	DefaultMAWindows   = []int{3, 6, 12}
	DefaultSimulations = 1000
)

// Selection is the outcome of SelectBest.
type Selection struct {
	Result     *models.ForecastResult
	Kind       models.ModelKind
	Config     models.ModelConfig
	Candidates []models.CandidateScore
}

// Selector runs every candidate over the same split and keeps the best.
type Selector struct {
	opts    Options
	logger  *logrus.Logger
	observe RunObserver
}

// RunObserver is told about every candidate run, successful or not.
type RunObserver func(kind models.ModelKind, name string, elapsed time.Duration, err error)

// NewSelector creates a selector. A nil logger falls back to the standard
// logrus logger.
func NewSelector(opts Options, logger *logrus.Logger) *Selector {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Selector{opts: opts, logger: logger}
}

// OnRun registers an observer for candidate runs. It must be set before
// the selector is shared.
func (s *Selector) OnRun(fn RunObserver) {
	s.observe = fn
}

// DefaultCandidates returns AR(1,1,1), MA over the default windows and MC
// with the default simulation count.
func DefaultCandidates(testLength, horizon int) []models.ModelConfig {
	return []models.ModelConfig{
		models.NewAutoregressiveConfig(1, 1, 1, testLength, horizon),
		models.NewMovingAverageConfig(DefaultMAWindows, testLength, horizon),
		models.NewStochasticSimulationConfig(DefaultSimulations, testLength, horizon),
	}
}

// ExtendedCandidates adds the wider ARIMA grid to the defaults.
func ExtendedCandidates(testLength, horizon int) []models.ModelConfig {
	defaults := DefaultCandidates(testLength, horizon)
	// AR variants stay adjacent so first-listed tie-breaking prefers (1,1,1).
	return []models.ModelConfig{
		defaults[0],
		models.NewAutoregressiveConfig(2, 1, 1, testLength, horizon),
		models.NewAutoregressiveConfig(1, 1, 2, testLength, horizon),
		models.NewAutoregressiveConfig(2, 1, 2, testLength, horizon),
		defaults[1],
		defaults[2],
	}
}

// TuneCandidates returns candidates with the moving average windows and
// simulation count replaced. Empty windows or a non-positive count keep
// the original parameters.
func TuneCandidates(candidates []models.ModelConfig, windows []int, simulations int) []models.ModelConfig {
	out := make([]models.ModelConfig, len(candidates))
	for i, c := range candidates {
		switch {
		case c.Kind == models.ModelKindMovingAverage && len(windows) > 0:
			c = models.NewMovingAverageConfig(windows, c.TestLength, c.ForecastHorizon)
		case c.Kind == models.ModelKindStochasticSimulation && simulations > 0:
			c = models.NewStochasticSimulationConfig(simulations, c.TestLength, c.ForecastHorizon)
		}
		out[i] = c
	}
	return out
}

// SelectBest runs all candidates, drops failures and ranks survivors by
// RMSE, then MAPE, then list order. It fails only when every candidate does.
func (s *Selector) SelectBest(ctx context.Context, observations []models.Observation, candidates []models.ModelConfig) (*Selection, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidate models configured")
	}

	var best *Selection
	scores := make([]models.CandidateScore, 0, len(candidates))
	failures := make(map[string]error)

	for _, cfg := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := cfg.Name()
		started := time.Now()
		result, err := Run(ctx, observations, cfg, s.opts)
		if s.observe != nil {
			s.observe(cfg.Kind, name, time.Since(started), err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			var compErr *ComputationError
			if !errors.As(err, &compErr) {
				compErr = nonConvergence(name, "%v", err)
			}
			failures[name] = compErr
			scores = append(scores, models.CandidateScore{ModelName: name, Kind: cfg.Kind, Error: compErr.Error()})
			s.logger.WithFields(logrus.Fields{
				"model":  name,
				"reason": compErr.Reason,
			}).Debug("Candidate model failed")
			continue
		}

		score := scoreOf(name, cfg.Kind, result.Stats)
		scores = append(scores, score)
		if best == nil || better(result.Stats, best.Result.Stats) {
			best = &Selection{Result: result, Kind: cfg.Kind, Config: cfg}
		}
	}

	if best == nil {
		return nil, &NoModelConvergedError{Failures: failures}
	}
	best.Candidates = scores
	return best, nil
}

// better reports whether a strictly outranks b. Equal scores keep b, which
// was listed first.
func better(a, b map[string]float64) bool {
	if a[models.StatRMSE] != b[models.StatRMSE] {
		return a[models.StatRMSE] < b[models.StatRMSE]
	}
	return a[models.StatMAPE] < b[models.StatMAPE]
}

func scoreOf(name string, kind models.ModelKind, stats map[string]float64) models.CandidateScore {
	score := models.CandidateScore{
		ModelName: name,
		Kind:      kind,
		RMSE:      stats[models.StatRMSE],
		MAPE:      stats[models.StatMAPE],
	}
	if v, ok := stats["AIC"]; ok {
		score.AIC = &v
	}
	if v, ok := stats["BIC"]; ok {
		score.BIC = &v
	}
	return score
}
