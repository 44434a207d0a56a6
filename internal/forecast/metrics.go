package forecast

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// mapeUndefined is reported when any actual value is zero.
const mapeUndefined = 999.0

// errorMetrics returns RMSE, MAE and MAPE (percent) of predicted against actual.
func errorMetrics(actual, predicted []float64) (rmse, mae, mape float64) {
	residuals := make([]float64, len(actual))
	floats.SubTo(residuals, actual, predicted)

	var sq, abs float64
	for _, r := range residuals {
		sq += r * r
		abs += math.Abs(r)
	}
	n := float64(len(residuals))
	rmse = math.Sqrt(sq / n)
	mae = abs / n

	pct := make([]float64, len(actual))
	for i, a := range actual {
		if a == 0 {
			return rmse, mae, mapeUndefined
		}
		pct[i] = math.Abs(residuals[i] / a)
	}
	mape = stat.Mean(pct, nil) * 100
	return rmse, mae, mape
}

// periodDiff returns x[i]-x[i-1] with the first element set to 0.
func periodDiff(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := 1; i < len(x); i++ {
		out[i] = x[i] - x[i-1]
	}
	return out
}

// flatBands returns value ± k·sigma for k = 1, 2.
func flatBands(values []float64, sigma float64) (up1, down1, up2, down2 []float64) {
	n := len(values)
	up1, down1 = make([]float64, n), make([]float64, n)
	up2, down2 = make([]float64, n), make([]float64, n)
	for i, v := range values {
		up1[i] = v + sigma
		down1[i] = v - sigma
		up2[i] = v + 2*sigma
		down2[i] = v - 2*sigma
	}
	return up1, down1, up2, down2
}

func allFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
