package chart

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobimpw/Economic-terminal/internal/models"
	"github.com/kobimpw/Economic-terminal/internal/utils"
)

func sampleResult(histLen, horizon int) *models.ForecastResult {
	r := &models.ForecastResult{}
	for i := 0; i < histLen; i++ {
		r.Historical.Dates = append(r.Historical.Dates, fmt.Sprintf("2020-%02d-01", i%12+1))
		r.Historical.Values = append(r.Historical.Values, float64(100+i))
	}
	for i := 0; i < horizon; i++ {
		v := float64(200 + i)
		r.Forecast.Dates = append(r.Forecast.Dates, fmt.Sprintf("2030-%02d-01", i%12+1))
		r.Forecast.Values = append(r.Forecast.Values, v)
		r.Forecast.Sigma1Up = append(r.Forecast.Sigma1Up, v+1)
		r.Forecast.Sigma1Down = append(r.Forecast.Sigma1Down, v-1)
		r.Forecast.Sigma2Up = append(r.Forecast.Sigma2Up, v+2)
		r.Forecast.Sigma2Down = append(r.Forecast.Sigma2Down, v-2)
	}
	r.Comparison.Dates = []string{"2020-01-01"}
	r.Comparison.Actual = []float64{1}
	r.Comparison.Predicted = []float64{1}
	return r
}

func TestResolve_LastN(t *testing.T) {
	result := sampleResult(100, 6)

	slice := Resolve(result, LastN(12))

	assert.Len(t, slice.Historical.Dates, 12)
	assert.Len(t, slice.Historical.Values, 12)
	assert.Equal(t, result.Historical.Values[88:], slice.Historical.Values)
	assert.Equal(t, result.Forecast, slice.Forecast)
	assert.Equal(t, result.Comparison, slice.Comparison)
}

func TestResolve_CountBeyondHistory(t *testing.T) {
	result := sampleResult(8, 3)

	slice := Resolve(result, LastN(12))

	assert.Equal(t, result.Historical.Dates, slice.Historical.Dates)
	assert.Equal(t, result.Historical.Values, slice.Historical.Values)
}

func TestResolve_AllObservations(t *testing.T) {
	result := sampleResult(30, 3)

	slice := Resolve(result, AllObservations())

	assert.Len(t, slice.Historical.Values, 30)
}

func TestResolve_Idempotent(t *testing.T) {
	result := sampleResult(50, 4)

	once := Resolve(result, LastN(20))
	twice := ResolveSlice(once, LastN(20))

	assert.Equal(t, once, twice)
}

func TestResolve_MismatchedHistoryPanics(t *testing.T) {
	result := sampleResult(10, 2)
	result.Historical.Values = result.Historical.Values[:9]

	assert.Panics(t, func() { Resolve(result, LastN(3)) })
}

func TestLastN_NonPositivePanics(t *testing.T) {
	assert.Panics(t, func() { LastN(0) })
	assert.Panics(t, func() { LastN(-4) })
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		input    string
		expected WindowSpec
	}{
		{"", AllObservations()},
		{"Max", AllObservations()},
		{"all", AllObservations()},
		{"12M", LastN(12)},
		{"2Y", LastN(24)},
		{"5y", LastN(60)},
		{"10Y", LastN(120)},
		{"36", LastN(36)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			spec, err := ParseWindow(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, spec)
		})
	}
}

func TestParseWindow_Invalid(t *testing.T) {
	for _, input := range []string{"0", "-3", "3W", "lots"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseWindow(input)
			require.Error(t, err)
			var vErr *utils.ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}
