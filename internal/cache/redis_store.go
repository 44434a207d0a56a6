package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/kobimpw/Economic-terminal/internal/models"
)

// mirroredEntry wraps a cache entry with storage metadata.
type mirroredEntry struct {
	Entry    models.CacheEntry `json:"entry"`
	CachedAt time.Time         `json:"cached_at"`
}

// StoreStats tracks mirror activity.
type StoreStats struct {
	Loads  int64 `json:"loads"`
	Misses int64 `json:"misses"`
	Saves  int64 `json:"saves"`
	mu     sync.RWMutex
}

// RedisForecastStore mirrors forecast entries to Redis as JSON. Entries
// carry no TTL; they are replaced on every refresh.
type RedisForecastStore struct {
	redis  *redis.Client
	stats  *StoreStats
	prefix string
}

// NewRedisForecastStore creates a Redis-backed mirror.
func NewRedisForecastStore(redisClient *redis.Client) *RedisForecastStore {
	return &RedisForecastStore{
		redis:  redisClient,
		stats:  &StoreStats{},
		prefix: "forecast:precomputed:",
	}
}

// Save stores an entry under its series key.
func (s *RedisForecastStore) Save(ctx context.Context, entry models.CacheEntry) error {
	if entry.SeriesID == "" {
		return errors.New("entry has no series id")
	}
	data, err := json.Marshal(mirroredEntry{Entry: entry, CachedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("error serializing forecast for %s: %w", entry.SeriesID, err)
	}
	if err := s.redis.Set(ctx, s.prefix+entry.SeriesID, data, 0).Err(); err != nil {
		return fmt.Errorf("redis error saving forecast for %s: %w", entry.SeriesID, err)
	}

	s.stats.mu.Lock()
	s.stats.Saves++
	s.stats.mu.Unlock()
	return nil
}

// Load returns the mirrored entry and when it was written.
func (s *RedisForecastStore) Load(ctx context.Context, seriesID string) (models.CacheEntry, time.Time, bool) {
	data, err := s.redis.Get(ctx, s.prefix+seriesID).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logrus.WithFields(logrus.Fields{"series_id": seriesID, "error": err.Error()}).Warn("Redis error loading forecast")
		}
		s.recordMiss()
		return models.CacheEntry{}, time.Time{}, false
	}

	var m mirroredEntry
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		logrus.WithFields(logrus.Fields{"series_id": seriesID, "error": err.Error()}).Warn("Error deserializing mirrored forecast")
		s.recordMiss()
		return models.CacheEntry{}, time.Time{}, false
	}

	s.stats.mu.Lock()
	s.stats.Loads++
	s.stats.mu.Unlock()
	return m.Entry, m.CachedAt, true
}

// LoadAll returns every mirrored entry, skipping unreadable ones.
func (s *RedisForecastStore) LoadAll(ctx context.Context) ([]models.CacheEntry, error) {
	ids, err := s.SeriesIDs(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]models.CacheEntry, 0, len(ids))
	for _, id := range ids {
		if entry, _, ok := s.Load(ctx, id); ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// SeriesIDs lists the series with a mirrored entry.
func (s *RedisForecastStore) SeriesIDs(ctx context.Context) ([]string, error) {
	keys, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if len(key) > len(s.prefix) {
			ids = append(ids, key[len(s.prefix):])
		}
	}
	return ids, nil
}

// Clear removes every mirrored entry.
func (s *RedisForecastStore) Clear(ctx context.Context) error {
	keys, err := s.scan(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("error clearing forecast mirror: %w", err)
	}
	return nil
}

// GetStats returns a copy of the mirror statistics.
func (s *RedisForecastStore) GetStats() StoreStats {
	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()
	return StoreStats{Loads: s.stats.Loads, Misses: s.stats.Misses, Saves: s.stats.Saves}
}

func (s *RedisForecastStore) recordMiss() {
	s.stats.mu.Lock()
	s.stats.Misses++
	s.stats.mu.Unlock()
}

func (s *RedisForecastStore) scan(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.redis.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("error scanning forecast keys: %w", err)
	}
	return keys, nil
}
