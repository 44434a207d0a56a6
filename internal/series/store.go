// Package series provides the observation sources: the FRED HTTP client,
// the Postgres observation repository, an in-process LRU layer that stacks
// them, and the indicator catalog.
package series

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kobimpw/Economic-terminal/internal/models"
)

var (
	// ErrUnknownSeries is returned for a series id no source knows about.
	ErrUnknownSeries = errors.New("unknown series")
	// ErrNoObservations is returned when a known series has no usable values.
	ErrNoObservations = errors.New("no observations")
)

// Store returns the chronological observations of a series. Returned slices
// are shared and must be treated as read-only.
type Store interface {
	Observations(ctx context.Context, seriesID string) ([]models.Observation, error)
}

// StaticStore serves fixed observations from memory.
type StaticStore struct {
	data map[string][]models.Observation
}

// NewStaticStore copies data, sorting every series by date.
func NewStaticStore(data map[string][]models.Observation) *StaticStore {
	copied := make(map[string][]models.Observation, len(data))
	for id, obs := range data {
		copied[id] = normalize(obs)
	}
	return &StaticStore{data: copied}
}

func (s *StaticStore) Observations(ctx context.Context, seriesID string) ([]models.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	obs, ok := s.data[seriesID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSeries, seriesID)
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoObservations, seriesID)
	}
	return obs, nil
}

// normalize returns a date-sorted copy of obs keeping the last value seen
// for any repeated date.
func normalize(obs []models.Observation) []models.Observation {
	out := make([]models.Observation, len(obs))
	copy(out, obs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	deduped := out[:0]
	for _, o := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(o.Date) {
			deduped[n-1] = o
			continue
		}
		deduped = append(deduped, o)
	}
	return deduped
}
