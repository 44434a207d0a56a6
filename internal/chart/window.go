// Package chart slices forecast results into display windows and merges
// historical and forecast arrays onto one shared date axis. Everything here
// is pure and synchronous.
package chart

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kobimpw/Economic-terminal/internal/models"
	"github.com/kobimpw/Economic-terminal/internal/utils"
)

// WindowSpec selects how much history to show. A zero Count means all
// observations.
type WindowSpec struct {
	Count int
}

// AllObservations keeps the entire history.
func AllObservations() WindowSpec { return WindowSpec{} }

// LastN keeps the last count observations. count must be positive.
func LastN(count int) WindowSpec {
	if count <= 0 {
		panic(fmt.Sprintf("chart: LastN count must be positive, got %d", count))
	}
	return WindowSpec{Count: count}
}

// IsAll reports whether the spec keeps every observation.
func (w WindowSpec) IsAll() bool { return w.Count == 0 }

func (w WindowSpec) String() string {
	if w.IsAll() {
		return "all"
	}
	return "last " + strconv.Itoa(w.Count)
}

// Dashboard period buttons, counted in observations.
var periods = map[string]int{
	"12M": 12,
	"2Y":  24,
	"5Y":  60,
	"10Y": 120,
}

// ParseWindow maps "12M", "2Y", "5Y", "10Y", "Max"/"all" or a positive
// integer to a WindowSpec. An empty string means all observations.
func ParseWindow(s string) (WindowSpec, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "max", "all":
		return AllObservations(), nil
	}
	if n, ok := periods[strings.ToUpper(s)]; ok {
		return LastN(n), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return WindowSpec{}, utils.NewValidationErrorf("invalid window %q", s)
	}
	return LastN(n), nil
}

// WindowedSlice is a ForecastResult whose history has been trimmed. The
// forecast and comparison blocks are carried through untouched.
type WindowedSlice struct {
	Historical models.HistoricalData
	Forecast   models.ForecastData
	Comparison models.ComparisonData
}

// Resolve applies spec to result by observation count, never by calendar
// duration, so daily and monthly series behave the same. A count beyond
// the history returns the whole history. Mismatched historical arrays
// panic.
func Resolve(result *models.ForecastResult, spec WindowSpec) WindowedSlice {
	return ResolveSlice(WindowedSlice{
		Historical: result.Historical,
		Forecast:   result.Forecast,
		Comparison: result.Comparison,
	}, spec)
}

// ResolveSlice re-windows an already windowed slice. It is idempotent:
// applying the same or a larger count again returns the same history.
func ResolveSlice(slice WindowedSlice, spec WindowSpec) WindowedSlice {
	dates, values := slice.Historical.Dates, slice.Historical.Values
	if len(dates) != len(values) {
		panic(fmt.Sprintf("chart: historical has %d dates and %d values", len(dates), len(values)))
	}

	start := 0
	if !spec.IsAll() {
		start = len(dates) - spec.Count
		if start < 0 {
			start = 0
		}
	}

	slice.Historical = models.HistoricalData{
		Dates:  dates[start:],
		Values: values[start:],
	}
	return slice
}
