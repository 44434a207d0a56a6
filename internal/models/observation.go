package models

import "time"

// DateLayout is the wire format for every date in forecast payloads.
const DateLayout = "2006-01-02"

// Observation is a single published value of an economic series.
type Observation struct {
	Date  time.Time `json:"date" db:"obs_date"`
	Value float64   `json:"value" db:"value"`
}

// Frequency is the publication period of a series.
type Frequency string

const (
	FrequencyDaily        Frequency = "D"
	FrequencyBusinessDay  Frequency = "B"
	FrequencyWeekly       Frequency = "W"
	FrequencyMonthStart   Frequency = "MS"
	FrequencyQuarterStart Frequency = "QS"
	FrequencyYearStart    Frequency = "AS"
)

// Next returns the date one period after t.
func (f Frequency) Next(t time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return t.AddDate(0, 0, 1)
	case FrequencyBusinessDay:
		next := t.AddDate(0, 0, 1)
		for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
			next = next.AddDate(0, 0, 1)
		}
		return next
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case FrequencyQuarterStart:
		return t.AddDate(0, 3, 0)
	case FrequencyYearStart:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}

// Indicator describes a known series in the catalog.
type Indicator struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Category    string `json:"category"`
}

// Dates returns the formatted dates of observations.
func Dates(observations []Observation) []string {
	dates := make([]string, len(observations))
	for i, o := range observations {
		dates[i] = o.Date.Format(DateLayout)
	}
	return dates
}

// Values returns the values of observations.
func Values(observations []Observation) []float64 {
	values := make([]float64, len(observations))
	for i, o := range observations {
		values[i] = o.Value
	}
	return values
}
