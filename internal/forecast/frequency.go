package forecast

import (
	"sort"
	"time"

	"github.com/kobimpw/Economic-terminal/internal/models"
)

// InferFrequency guesses the publication period from the median spacing
// between consecutive observations. Short series default to monthly.
func InferFrequency(observations []models.Observation) models.Frequency {
	if len(observations) < 2 {
		return models.FrequencyMonthStart
	}

	gaps := make([]float64, 0, len(observations)-1)
	weekend := false
	for i := 1; i < len(observations); i++ {
		gaps = append(gaps, observations[i].Date.Sub(observations[i-1].Date).Hours()/24)
	}
	for _, o := range observations {
		if isWeekend(o.Date) {
			weekend = true
			break
		}
	}
	sort.Float64s(gaps)
	median := gaps[len(gaps)/2]

	switch {
	case median <= 1.5:
		if weekend {
			return models.FrequencyDaily
		}
		return models.FrequencyBusinessDay
	case median <= 4:
		return models.FrequencyBusinessDay
	case median <= 10:
		return models.FrequencyWeekly
	case median <= 45:
		return models.FrequencyMonthStart
	case median <= 120:
		return models.FrequencyQuarterStart
	default:
		return models.FrequencyYearStart
	}
}

// FutureDates returns n dates stepping forward from last by freq.
func FutureDates(last time.Time, freq models.Frequency, n int) []string {
	dates := make([]string, n)
	current := last
	for i := 0; i < n; i++ {
		current = freq.Next(current)
		dates[i] = current.Format(models.DateLayout)
	}
	return dates
}

// Regularize places observations on the grid of their inferred frequency
// and forward-fills grid dates without a value. Daily, business-day and
// weekly grids start at the first observation and take the latest value at
// or before each grid date. Month, quarter and year series are averaged
// within each period and dated at the period start. Input must be sorted.
func Regularize(observations []models.Observation) ([]models.Observation, models.Frequency) {
	freq := InferFrequency(observations)
	if len(observations) < 2 {
		return observations, freq
	}

	switch freq {
	case models.FrequencyMonthStart, models.FrequencyQuarterStart, models.FrequencyYearStart:
		return resamplePeriods(observations, freq), freq
	default:
		return fillForward(observations, freq), freq
	}
}

func fillForward(observations []models.Observation, freq models.Frequency) []models.Observation {
	first := observations[0].Date
	if freq == models.FrequencyBusinessDay && isWeekend(first) {
		first = freq.Next(first)
	}
	last := observations[len(observations)-1].Date

	out := make([]models.Observation, 0, len(observations))
	next := 0
	var value float64
	seen := false
	for current := first; !current.After(last); current = freq.Next(current) {
		for next < len(observations) && !observations[next].Date.After(current) {
			value = observations[next].Value
			seen = true
			next++
		}
		if seen {
			out = append(out, models.Observation{Date: current, Value: value})
		}
	}
	return out
}

func resamplePeriods(observations []models.Observation, freq models.Frequency) []models.Observation {
	type bucket struct {
		start time.Time
		sum   float64
		count int
	}
	var buckets []bucket
	for _, o := range observations {
		start := periodStart(o.Date, freq)
		if n := len(buckets); n > 0 && buckets[n-1].start.Equal(start) {
			buckets[n-1].sum += o.Value
			buckets[n-1].count++
			continue
		}
		buckets = append(buckets, bucket{start: start, sum: o.Value, count: 1})
	}

	out := make([]models.Observation, 0, len(buckets))
	for i, b := range buckets {
		if i > 0 {
			previous := out[len(out)-1]
			for gap := freq.Next(previous.Date); gap.Before(b.start); gap = freq.Next(gap) {
				out = append(out, models.Observation{Date: gap, Value: previous.Value})
			}
		}
		out = append(out, models.Observation{Date: b.start, Value: b.sum / float64(b.count)})
	}
	return out
}

func periodStart(t time.Time, freq models.Frequency) time.Time {
	month := t.Month()
	switch freq {
	case models.FrequencyQuarterStart:
		month = time.Month((int(month)-1)/3*3 + 1)
	case models.FrequencyYearStart:
		month = time.January
	}
	return time.Date(t.Year(), month, 1, 0, 0, 0, 0, t.Location())
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
