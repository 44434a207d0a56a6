package chart

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose_Lengths(t *testing.T) {
	timeline := Compose(Resolve(sampleResult(20, 6), LastN(12)))

	total := 12 + 6
	assert.Len(t, timeline.Axis, total)
	for name, arr := range map[string][]*float64{
		"historical": timeline.Historical,
		"forecast":   timeline.Forecast,
		"sigma1Up":   timeline.Sigma1Up,
		"sigma1Down": timeline.Sigma1Down,
		"sigma2Up":   timeline.Sigma2Up,
		"sigma2Down": timeline.Sigma2Down,
	} {
		assert.Len(t, arr, total, name)
	}
}

func TestCompose_LastNOnShortHistory(t *testing.T) {
	result := sampleResult(8, 3)

	timeline := Compose(Resolve(result, LastN(12)))

	assert.Len(t, timeline.Axis, 11)
	assert.Equal(t, result.Historical.Dates, timeline.Axis[:8])
	assert.Equal(t, result.Forecast.Dates, timeline.Axis[8:])
}

func TestCompose_JoinPoint(t *testing.T) {
	result := sampleResult(5, 2)

	timeline := Compose(Resolve(result, AllObservations()))

	for i := 0; i < 4; i++ {
		assert.Nil(t, timeline.Forecast[i])
	}
	require.NotNil(t, timeline.Forecast[4])
	assert.Equal(t, result.Historical.Values[4], *timeline.Forecast[4])
	assert.Equal(t, 200.0, *timeline.Forecast[5])
	assert.Equal(t, 201.0, *timeline.Forecast[6])

	for i := 0; i < 5; i++ {
		require.NotNil(t, timeline.Historical[i])
		assert.Equal(t, result.Historical.Values[i], *timeline.Historical[i])
	}
	assert.Nil(t, timeline.Historical[5])
	assert.Nil(t, timeline.Historical[6])
}

func TestCompose_BandsPaddedOverHistory(t *testing.T) {
	timeline := Compose(Resolve(sampleResult(4, 3), AllObservations()))

	for i := 0; i < 4; i++ {
		assert.Nil(t, timeline.Sigma1Up[i])
		assert.Nil(t, timeline.Sigma1Down[i])
		assert.Nil(t, timeline.Sigma2Up[i])
		assert.Nil(t, timeline.Sigma2Down[i])
	}
	for i := 4; i < 7; i++ {
		require.NotNil(t, timeline.Sigma2Down[i])
		assert.LessOrEqual(t, *timeline.Sigma2Down[i], *timeline.Sigma1Down[i])
		assert.LessOrEqual(t, *timeline.Sigma1Down[i], *timeline.Forecast[i])
		assert.LessOrEqual(t, *timeline.Forecast[i], *timeline.Sigma1Up[i])
		assert.LessOrEqual(t, *timeline.Sigma1Up[i], *timeline.Sigma2Up[i])
	}
}

func TestCompose_EncodesAbsenceAsNull(t *testing.T) {
	timeline := Compose(Resolve(sampleResult(2, 1), AllObservations()))

	data, err := json.Marshal(timeline)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"historical":[100,101,null]`)
	assert.Contains(t, string(data), `"forecast":[null,101,200]`)
}

func TestCompose_EmptyHistory(t *testing.T) {
	result := sampleResult(0, 2)

	timeline := Compose(Resolve(result, AllObservations()))

	assert.Equal(t, []string{"2030-01-01", "2030-02-01"}, timeline.Axis)
	assert.Equal(t, 200.0, *timeline.Forecast[0])
}

func TestCompose_MismatchedBandsPanic(t *testing.T) {
	result := sampleResult(4, 3)
	result.Forecast.Sigma2Down = result.Forecast.Sigma2Down[:2]

	assert.Panics(t, func() { Compose(Resolve(result, AllObservations())) })
}
