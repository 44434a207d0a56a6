package series

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/kobimpw/Economic-terminal/internal/models"
	"github.com/sirupsen/logrus"
)

// ObservationRepo is the persistent layer of a LayeredStore.
type ObservationRepo interface {
	Load(ctx context.Context, seriesID string) ([]models.Observation, time.Time, error)
	Upsert(ctx context.Context, seriesID string, obs []models.Observation) (int64, error)
}

// LayeredConfig sizes the in-process layer and bounds Postgres staleness.
type LayeredConfig struct {
	CacheSize    int
	CacheTTL     time.Duration
	MaxStaleness time.Duration
}

// LayeredStore reads through memory, then Postgres, then the remote source.
// Any layer may be nil. Remote results are written back to Postgres; a
// stale Postgres copy is served when the remote source fails.
type LayeredStore struct {
	memory       *expirable.LRU[string, []models.Observation]
	repo         ObservationRepo
	remote       Store
	maxStaleness time.Duration
	now          func() time.Time
	logger       *logrus.Logger

	// refetch holds series whose next read must reach the remote source.
	refetch sync.Map
}

func NewLayeredStore(cfg LayeredConfig, repo ObservationRepo, remote Store, logger *logrus.Logger) *LayeredStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &LayeredStore{
		repo:         repo,
		remote:       remote,
		maxStaleness: cfg.MaxStaleness,
		now:          time.Now,
		logger:       logger,
	}
	if cfg.CacheSize > 0 {
		s.memory = expirable.NewLRU[string, []models.Observation](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return s
}

func (s *LayeredStore) Observations(ctx context.Context, seriesID string) ([]models.Observation, error) {
	_, forced := s.refetch.LoadAndDelete(seriesID)
	if s.memory != nil && !forced {
		if obs, ok := s.memory.Get(seriesID); ok {
			return obs, nil
		}
	}

	var stale []models.Observation
	if s.repo != nil {
		obs, fetchedAt, err := s.repo.Load(ctx, seriesID)
		switch {
		case err != nil:
			s.logger.WithFields(logrus.Fields{
				"series_id": seriesID,
				"error":     err.Error(),
			}).Warn("Failed to load stored observations")
		case len(obs) > 0 && (s.remote == nil || (!forced && s.fresh(fetchedAt))):
			s.remember(seriesID, obs)
			return obs, nil
		case len(obs) > 0:
			stale = obs
		}
	}

	if s.remote == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoObservations, seriesID)
	}

	obs, err := s.remote.Observations(ctx, seriesID)
	if err != nil {
		if len(stale) > 0 && !errors.Is(err, ErrUnknownSeries) && ctx.Err() == nil {
			s.logger.WithFields(logrus.Fields{
				"series_id": seriesID,
				"error":     err.Error(),
			}).Warn("Serving stale observations after remote fetch failed")
			s.remember(seriesID, stale)
			return stale, nil
		}
		return nil, err
	}

	if s.repo != nil {
		if _, err := s.repo.Upsert(ctx, seriesID, obs); err != nil {
			s.logger.WithFields(logrus.Fields{
				"series_id": seriesID,
				"error":     err.Error(),
			}).Warn("Failed to persist observations")
		}
	}
	s.remember(seriesID, obs)
	return obs, nil
}

// Invalidate drops a series from the in-process layer and sends its next
// read to the remote source, skipping a fresh Postgres copy. The stored
// copy is still served if the remote fetch fails.
func (s *LayeredStore) Invalidate(seriesID string) {
	if s.memory != nil {
		s.memory.Remove(seriesID)
	}
	if s.remote != nil {
		s.refetch.Store(seriesID, struct{}{})
	}
}

func (s *LayeredStore) fresh(fetchedAt time.Time) bool {
	return s.maxStaleness <= 0 || s.now().Sub(fetchedAt) <= s.maxStaleness
}

func (s *LayeredStore) remember(seriesID string, obs []models.Observation) {
	if s.memory != nil {
		s.memory.Add(seriesID, obs)
	}
}
