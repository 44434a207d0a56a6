package forecast

import (
	"context"
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"

	"github.com/kobimpw/Economic-terminal/internal/models"
)

// movingAverage averages the simple moving averages of several windows.
// Its forecast is flat at the ensemble mean of the most recent windows.
type movingAverage struct{}

func (movingAverage) kind() models.ModelKind { return models.ModelKindMovingAverage }

func (movingAverage) minTrainLength(cfg models.ModelConfig) int {
	longest := 1
	for _, w := range cfg.MovingAverage.Windows {
		if w > longest {
			longest = w
		}
	}
	return longest
}

func (m movingAverage) backtest(ctx context.Context, train, test []float64, cfg models.ModelConfig) ([]float64, error) {
	history := make([]float64, 0, len(train)+len(test))
	history = append(history, train...)

	predicted := make([]float64, len(test))
	for i, actual := range test {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := ensembleSMA(history, cfg.MovingAverage.Windows)
		if err != nil {
			return nil, insufficientData(cfg.Name(), "%v", err)
		}
		predicted[i] = v
		history = append(history, actual)
	}
	return predicted, nil
}

func (m movingAverage) project(ctx context.Context, series []float64, cfg models.ModelConfig) (*projection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	level, err := ensembleSMA(series, cfg.MovingAverage.Windows)
	if err != nil {
		return nil, insufficientData(cfg.Name(), "%v", err)
	}
	values := make([]float64, cfg.ForecastHorizon)
	for i := range values {
		values[i] = level
	}
	return &projection{
		values: values,
		stats:  map[string]float64{"Windows": float64(len(cfg.MovingAverage.Windows))},
	}, nil
}

func (movingAverage) opinion(stats map[string]float64) string {
	return movingAverageOpinion(stats)
}

// ensembleSMA is the mean over windows of the latest SMA value.
func ensembleSMA(values []float64, windows []int) (float64, error) {
	var sum float64
	for _, w := range windows {
		last, err := lastSMA(values, w)
		if err != nil {
			return 0, err
		}
		sum += last
	}
	return sum / float64(len(windows)), nil
}

func lastSMA(values []float64, period int) (float64, error) {
	if len(values) < period {
		return 0, fmt.Errorf("window %d exceeds %d observations", period, len(values))
	}
	sma := trend.NewSmaWithPeriod[float64](period)
	out := helper.ChanToSlice(sma.Compute(helper.SliceToChan(values[len(values)-period:])))
	if len(out) == 0 {
		return 0, fmt.Errorf("window %d produced no average", period)
	}
	return out[len(out)-1], nil
}
