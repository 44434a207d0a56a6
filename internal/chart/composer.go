package chart

import (
	"fmt"
)

// CombinedTimeline aligns historical, forecast and band series on one
// axis. A nil element is the absence marker and encodes as JSON null.
type CombinedTimeline struct {
	Axis       []string   `json:"axis"`
	Historical []*float64 `json:"historical"`
	Forecast   []*float64 `json:"forecast"`
	Sigma1Up   []*float64 `json:"sigma1Up"`
	Sigma1Down []*float64 `json:"sigma1Down"`
	Sigma2Up   []*float64 `json:"sigma2Up"`
	Sigma2Down []*float64 `json:"sigma2Down"`
}

// Compose builds the combined timeline: the axis is the windowed history
// followed by the forecast dates. The forecast line starts at the last
// historical point so the two lines join without a gap; bands exist only
// over the forecast range.
func Compose(slice WindowedSlice) CombinedTimeline {
	h, f := slice.Historical, slice.Forecast
	if len(h.Dates) != len(h.Values) {
		panic(fmt.Sprintf("chart: historical has %d dates and %d values", len(h.Dates), len(h.Values)))
	}
	n := len(f.Values)
	if len(f.Dates) != n || len(f.Sigma1Up) != n || len(f.Sigma1Down) != n || len(f.Sigma2Up) != n || len(f.Sigma2Down) != n {
		panic(fmt.Sprintf("chart: forecast arrays disagree in length (dates %d, values %d, bands %d/%d/%d/%d)",
			len(f.Dates), n, len(f.Sigma1Up), len(f.Sigma1Down), len(f.Sigma2Up), len(f.Sigma2Down)))
	}

	histLen := len(h.Dates)
	total := histLen + n

	axis := make([]string, 0, total)
	axis = append(axis, h.Dates...)
	axis = append(axis, f.Dates...)

	timeline := CombinedTimeline{
		Axis:       axis,
		Historical: make([]*float64, total),
		Forecast:   make([]*float64, total),
		Sigma1Up:   padded(histLen, f.Sigma1Up),
		Sigma1Down: padded(histLen, f.Sigma1Down),
		Sigma2Up:   padded(histLen, f.Sigma2Up),
		Sigma2Down: padded(histLen, f.Sigma2Down),
	}

	for i := range h.Values {
		timeline.Historical[i] = point(h.Values[i])
	}
	if histLen > 0 {
		timeline.Forecast[histLen-1] = point(h.Values[histLen-1])
	}
	for i, v := range f.Values {
		timeline.Forecast[histLen+i] = point(v)
	}
	return timeline
}

// padded returns lead absence markers followed by values.
func padded(lead int, values []float64) []*float64 {
	out := make([]*float64, lead+len(values))
	for i, v := range values {
		out[lead+i] = point(v)
	}
	return out
}

func point(v float64) *float64 {
	return &v
}
