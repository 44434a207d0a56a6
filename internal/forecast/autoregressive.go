package forecast

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/kobimpw/Economic-terminal/internal/models"
)

// autoregressive is ARIMA(p,d,q) estimated with the Hannan-Rissanen
// procedure: a long autoregression supplies residual proxies, then a least
// squares regression on lagged values and lagged residuals gives the
// AR and MA coefficients.
type autoregressive struct{}

func (autoregressive) kind() models.ModelKind { return models.ModelKindAutoregressive }

func (autoregressive) minTrainLength(cfg models.ModelConfig) int {
	o := cfg.Autoregressive
	return o.P + o.D + o.Q + 1
}

func (a autoregressive) backtest(ctx context.Context, train, test []float64, cfg models.ModelConfig) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fit, err := fitARIMA(train, *cfg.Autoregressive, cfg.Name())
	if err != nil {
		return nil, err
	}
	return fit.forecast(len(test)), nil
}

func (a autoregressive) project(ctx context.Context, series []float64, cfg models.ModelConfig) (*projection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fit, err := fitARIMA(series, *cfg.Autoregressive, cfg.Name())
	if err != nil {
		return nil, err
	}

	params := make(map[string]float64, len(fit.phi)+len(fit.theta)+2)
	for i, v := range fit.phi {
		params[fmt.Sprintf("ar.L%d", i+1)] = v
	}
	for i, v := range fit.theta {
		params[fmt.Sprintf("ma.L%d", i+1)] = v
	}
	params["sigma2"] = fit.sigma2
	if fit.withMean {
		params["const"] = fit.mean
	}

	aic, bic, hqic := fit.informationCriteria()
	return &projection{
		values: fit.forecast(cfg.ForecastHorizon),
		stats: map[string]float64{
			"AIC":   aic,
			"BIC":   bic,
			"HQIC":  hqic,
			"sigma": math.Sqrt(fit.sigma2),
		},
		params: params,
	}, nil
}

func (autoregressive) opinion(stats map[string]float64) string {
	return autoregressiveOpinion(stats)
}

// arimaFit holds a fitted model on the differenced, mean-centred series.
type arimaFit struct {
	order     models.AutoregressiveParams
	phi       []float64
	theta     []float64
	mean      float64
	withMean  bool
	sigma2    float64
	z         []float64   // centred differenced series
	residuals []float64   // innovations aligned with z
	levels    [][]float64 // levels[k] is the series differenced k times
	nEff      int
}

func fitARIMA(series []float64, order models.AutoregressiveParams, name string) (*arimaFit, error) {
	levels := make([][]float64, order.D+1)
	levels[0] = series
	for k := 1; k <= order.D; k++ {
		levels[k] = difference(levels[k-1])
	}
	y := levels[order.D]
	if len(y) < order.P+order.Q+1 {
		return nil, insufficientData(name, "%d points after differencing", len(y))
	}

	fit := &arimaFit{order: order, levels: levels, withMean: order.D == 0}
	if fit.withMean {
		fit.mean = stat.Mean(y, nil)
	}
	fit.z = make([]float64, len(y))
	for i, v := range y {
		fit.z[i] = v - fit.mean
	}

	switch {
	case order.P == 0 && order.Q == 0:
	case order.Q == 0:
		phi, err := leastSquaresARMA(fit.z, nil, order.P, 0, order.P)
		if err != nil {
			return nil, nonConvergence(name, "%v", err)
		}
		fit.phi = phi
	default:
		long := order.P + order.Q + 2
		if long >= len(fit.z)-order.P-order.Q {
			long = order.P + order.Q
		}
		proxies, err := longARResiduals(fit.z, long)
		if err != nil {
			return nil, nonConvergence(name, "%v", err)
		}
		start := long
		if start < order.P {
			start = order.P
		}
		if start < order.Q {
			start = order.Q
		}
		if len(fit.z)-start < order.P+order.Q {
			return nil, nonConvergence(name, "too few rows for the residual regression")
		}
		coef, err := leastSquaresARMA(fit.z, proxies, order.P, order.Q, start)
		if err != nil {
			return nil, nonConvergence(name, "%v", err)
		}
		fit.phi, fit.theta = coef[:order.P], coef[order.P:]
	}

	if !allFinite(fit.phi) || !allFinite(fit.theta) {
		return nil, nonConvergence(name, "coefficients are not finite")
	}

	fit.residuals = fit.innovations()
	start := order.P
	if start >= len(fit.residuals) {
		start = 0
	}
	var ss float64
	for _, e := range fit.residuals[start:] {
		ss += e * e
	}
	fit.nEff = len(fit.residuals) - start
	fit.sigma2 = ss / float64(fit.nEff)
	if !(fit.sigma2 > 0) || math.IsInf(fit.sigma2, 0) {
		return nil, nonConvergence(name, "innovation variance %v is not positive", fit.sigma2)
	}
	return fit, nil
}

// innovations runs the ARMA recursion over z, treating pre-sample values
// and errors as zero.
func (f *arimaFit) innovations() []float64 {
	e := make([]float64, len(f.z))
	for t := range f.z {
		pred := 0.0
		for i, c := range f.phi {
			if t-i-1 >= 0 {
				pred += c * f.z[t-i-1]
			}
		}
		for j, c := range f.theta {
			if t-j-1 >= 0 {
				pred += c * e[t-j-1]
			}
		}
		e[t] = f.z[t] - pred
	}
	return e
}

// forecast returns h multi-step predictions on the original scale.
func (f *arimaFit) forecast(h int) []float64 {
	n := len(f.z)
	z := append(append(make([]float64, 0, n+h), f.z...), make([]float64, h)...)
	e := append(append(make([]float64, 0, n+h), f.residuals...), make([]float64, h)...)
	for t := n; t < n+h; t++ {
		pred := 0.0
		for i, c := range f.phi {
			if t-i-1 >= 0 {
				pred += c * z[t-i-1]
			}
		}
		for j, c := range f.theta {
			if t-j-1 >= 0 {
				pred += c * e[t-j-1]
			}
		}
		z[t] = pred
	}

	out := make([]float64, h)
	for i := range out {
		out[i] = z[n+i] + f.mean
	}
	for k := f.order.D - 1; k >= 0; k-- {
		level := f.levels[k]
		last := level[len(level)-1]
		for i := range out {
			last += out[i]
			out[i] = last
		}
	}
	return out
}

// informationCriteria uses the Gaussian log-likelihood of the innovations.
func (f *arimaFit) informationCriteria() (aic, bic, hqic float64) {
	n := float64(f.nEff)
	k := float64(f.order.P + f.order.Q + 1)
	if f.withMean {
		k++
	}
	llf := -n / 2 * (math.Log(2*math.Pi) + math.Log(f.sigma2) + 1)
	aic = 2*k - 2*llf
	bic = k*math.Log(n) - 2*llf
	hqic = 2*k*math.Log(math.Log(n)) - 2*llf
	return aic, bic, hqic
}

func difference(x []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	out := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		out[i-1] = x[i] - x[i-1]
	}
	return out
}

// longARResiduals fits AR(order) by Yule-Walker and returns its residuals,
// zero for the first order points.
func longARResiduals(z []float64, order int) ([]float64, error) {
	phi, err := levinsonDurbin(autocovariance(z, order), order)
	if err != nil {
		return nil, err
	}
	res := make([]float64, len(z))
	for t := order; t < len(z); t++ {
		pred := 0.0
		for i, c := range phi {
			pred += c * z[t-i-1]
		}
		res[t] = z[t] - pred
	}
	return res, nil
}

func autocovariance(z []float64, maxLag int) []float64 {
	n := len(z)
	acov := make([]float64, maxLag+1)
	for lag := 0; lag <= maxLag && lag < n; lag++ {
		var sum float64
		for t := lag; t < n; t++ {
			sum += z[t] * z[t-lag]
		}
		acov[lag] = sum / float64(n)
	}
	return acov
}

// levinsonDurbin solves the Yule-Walker equations for AR(order).
func levinsonDurbin(r []float64, order int) ([]float64, error) {
	if order == 0 {
		return nil, nil
	}
	if r[0] <= 0 {
		return nil, fmt.Errorf("series has zero variance")
	}
	phi := make([]float64, order)
	prev := make([]float64, order)
	v := r[0]
	for k := 0; k < order; k++ {
		acc := r[k+1]
		for j := 0; j < k; j++ {
			acc -= prev[j] * r[k-j]
		}
		reflection := acc / v
		phi[k] = reflection
		for j := 0; j < k; j++ {
			phi[j] = prev[j] - reflection*prev[k-1-j]
		}
		v *= 1 - reflection*reflection
		if v <= 0 {
			return nil, fmt.Errorf("numerical instability in Levinson-Durbin recursion")
		}
		copy(prev, phi)
	}
	return phi, nil
}

// leastSquaresARMA regresses z[t] on z[t-1..t-p] and e[t-1..t-q] for
// t >= start and returns the p+q coefficients.
func leastSquaresARMA(z, e []float64, p, q, start int) ([]float64, error) {
	rows := len(z) - start
	cols := p + q
	if rows < cols || rows == 0 {
		return nil, fmt.Errorf("%d rows for %d coefficients", rows, cols)
	}
	x := mat.NewDense(rows, cols, nil)
	y := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		t := start + r
		for i := 0; i < p; i++ {
			x.Set(r, i, z[t-i-1])
		}
		for j := 0; j < q; j++ {
			x.Set(r, p+j, e[t-j-1])
		}
		y.SetVec(r, z[t])
	}

	var beta mat.VecDense
	if err := beta.SolveVec(x, y); err != nil {
		return nil, fmt.Errorf("least squares: %w", err)
	}
	return beta.RawVector().Data, nil
}
