package forecast

import (
	"context"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/kobimpw/Economic-terminal/internal/models"
)

// stochasticSimulation draws percent-change returns from a normal
// distribution fitted to history and averages the simulated paths.
type stochasticSimulation struct {
	seed uint64
}

func (stochasticSimulation) kind() models.ModelKind { return models.ModelKindStochasticSimulation }

func (stochasticSimulation) minTrainLength(models.ModelConfig) int { return 3 }

// ctxCheckInterval is the number of simulated draws between context checks.
const ctxCheckInterval = 1024

func (s stochasticSimulation) backtest(ctx context.Context, train, test []float64, cfg models.ModelConfig) ([]float64, error) {
	rng := s.rng(1)
	sims := cfg.StochasticSimulation.Simulations

	history := make([]float64, 0, len(train)+len(test))
	history = append(history, train...)

	predicted := make([]float64, len(test))
	for i, actual := range test {
		mu, sigma, err := returnMoments(history, cfg.Name())
		if err != nil {
			return nil, err
		}
		last := history[len(history)-1]
		var sum float64
		for j := 0; j < sims; j++ {
			if j%ctxCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			sum += last * (1 + mu + sigma*rng.NormFloat64())
		}
		predicted[i] = sum / float64(sims)
		history = append(history, actual)
	}
	return predicted, nil
}

func (s stochasticSimulation) project(ctx context.Context, series []float64, cfg models.ModelConfig) (*projection, error) {
	mu, sigma, err := returnMoments(series, cfg.Name())
	if err != nil {
		return nil, err
	}
	rng := s.rng(2)
	sims := cfg.StochasticSimulation.Simulations
	horizon := cfg.ForecastHorizon

	sums := make([]float64, horizon)
	final := make([]float64, sims)
	for j := 0; j < sims; j++ {
		if j%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		price := series[len(series)-1]
		for h := 0; h < horizon; h++ {
			price *= 1 + mu + sigma*rng.NormFloat64()
			sums[h] += price
		}
		final[j] = price
	}
	values := make([]float64, horizon)
	for h := range values {
		values[h] = sums[h] / float64(sims)
	}

	sort.Float64s(final)
	return &projection{
		values: values,
		stats: map[string]float64{
			"Mean Return": mu,
			"Volatility":  sigma,
			"Simulations": float64(sims),
			"P5":          stat.Quantile(0.05, stat.Empirical, final, nil),
			"P25":         stat.Quantile(0.25, stat.Empirical, final, nil),
			"P75":         stat.Quantile(0.75, stat.Empirical, final, nil),
			"P95":         stat.Quantile(0.95, stat.Empirical, final, nil),
		},
	}, nil
}

func (stochasticSimulation) opinion(stats map[string]float64) string {
	return simulationOpinion(stats)
}

func (s stochasticSimulation) rng(stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(s.seed, stream))
}

// returnMoments returns the mean and sample standard deviation of the
// percent changes of x. Zero values make returns undefined.
func returnMoments(x []float64, name string) (mu, sigma float64, err error) {
	if len(x) < 3 {
		return 0, 0, insufficientData(name, "needs at least 3 observations for return statistics, got %d", len(x))
	}
	returns := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		if x[i-1] == 0 {
			return 0, 0, nonConvergence(name, "percent change undefined after a zero value")
		}
		returns[i-1] = x[i]/x[i-1] - 1
	}
	mu, sigma = stat.MeanStdDev(returns, nil)
	if !allFinite([]float64{mu, sigma}) {
		return 0, 0, nonConvergence(name, "return statistics are not finite")
	}
	return mu, sigma, nil
}
