package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/kobimpw/Economic-terminal/internal/models"
	"github.com/kobimpw/Economic-terminal/internal/series"
)

// fixturePoint is one observation in a fixture file.
type fixturePoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// loadFixture reads {"SERIES": [{"date": "2024-01-01", "value": 1.5}]}.
// Series known to the default catalog keep their display metadata.
func loadFixture(path string) (*series.Catalog, series.Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return parseFixture(raw)
}

func parseFixture(raw []byte) (*series.Catalog, series.Store, error) {
	var points map[string][]fixturePoint
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil, nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	if len(points) == 0 {
		return nil, nil, fmt.Errorf("fixture has no series")
	}

	ids := make([]string, 0, len(points))
	data := make(map[string][]models.Observation, len(points))
	for id, pts := range points {
		id = strings.ToUpper(strings.TrimSpace(id))
		obs := make([]models.Observation, 0, len(pts))
		for _, p := range pts {
			date, err := time.Parse(models.DateLayout, p.Date)
			if err != nil {
				return nil, nil, fmt.Errorf("fixture %s: invalid date %q", id, p.Date)
			}
			obs = append(obs, models.Observation{Date: date, Value: p.Value})
		}
		ids = append(ids, id)
		data[id] = obs
	}
	sort.Strings(ids)

	known := series.DefaultCatalog()
	indicators := make([]models.Indicator, 0, len(ids))
	for _, id := range ids {
		if ind, ok := known.Lookup(id); ok {
			indicators = append(indicators, ind)
			continue
		}
		indicators = append(indicators, models.Indicator{ID: id, Category: "fixture"})
	}
	return series.NewCatalog(indicators), series.NewStaticStore(data), nil
}
