package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const overallCategory = "overall"

// CacheStats represents cache statistics
type CacheStats struct {
	Hits        int64     `json:"hits"`
	Misses      int64     `json:"misses"`
	HitRate     float64   `json:"hit_rate"`
	TotalOps    int64     `json:"total_ops"`
	LastUpdated time.Time `json:"last_updated"`
}

// CacheMetrics is the payload of the cache stats endpoint.
type CacheMetrics struct {
	Overall       CacheStats            `json:"overall"`
	ByCategory    map[string]CacheStats `json:"by_category"`
	MirrorEnabled bool                  `json:"mirror_enabled"`
	MirrorKeys    int64                 `json:"mirror_keys"`
}

// LookupObserver receives every recorded lookup, e.g. the Prometheus
// collector.
type LookupObserver interface {
	RecordCacheLookup(category string, hit bool)
}

// MirrorLister lists the series held by the forecast mirror.
type MirrorLister interface {
	SeriesIDs(ctx context.Context) ([]string, error)
}

// CacheAnalyticsService tracks forecast cache hits and misses per category.
// It satisfies cache.HitRecorder.
type CacheAnalyticsService struct {
	redisClient *redis.Client
	observer    LookupObserver
	mirror      MirrorLister
	stats       map[string]*CacheStats
	mu          sync.RWMutex
}

// NewCacheAnalyticsService creates the service. Both arguments may be nil.
func NewCacheAnalyticsService(redisClient *redis.Client, observer LookupObserver) *CacheAnalyticsService {
	return &CacheAnalyticsService{
		redisClient: redisClient,
		observer:    observer,
		stats:       make(map[string]*CacheStats),
	}
}

// SetMirror reports the size of m in GetMetrics.
func (c *CacheAnalyticsService) SetMirror(m MirrorLister) {
	c.mirror = m
}

// RecordHit records a cache hit for the given category
func (c *CacheAnalyticsService) RecordHit(category string) {
	c.record(category, true)
}

// RecordMiss records a cache miss for the given category
func (c *CacheAnalyticsService) RecordMiss(category string) {
	c.record(category, false)
}

func (c *CacheAnalyticsService) record(category string, hit bool) {
	now := time.Now()
	c.mu.Lock()
	for _, key := range []string{category, overallCategory} {
		s := c.stats[key]
		if s == nil {
			s = &CacheStats{}
			c.stats[key] = s
		}
		if hit {
			s.Hits++
		} else {
			s.Misses++
		}
		s.TotalOps++
		s.HitRate = float64(s.Hits) / float64(s.TotalOps)
		s.LastUpdated = now
	}
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.RecordCacheLookup(category, hit)
	}
}

// GetStats returns cache statistics for a specific category
func (c *CacheAnalyticsService) GetStats(category string) CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if stats, exists := c.stats[category]; exists {
		return *stats
	}
	return CacheStats{}
}

// GetAllStats returns all cache statistics
func (c *CacheAnalyticsService) GetAllStats() map[string]CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]CacheStats, len(c.stats))
	for category, stats := range c.stats {
		result[category] = *stats
	}
	return result
}

// GetMetrics returns lookup statistics plus the number of mirrored series
// when a mirror is set.
func (c *CacheAnalyticsService) GetMetrics(ctx context.Context) (*CacheMetrics, error) {
	allStats := c.GetAllStats()
	metrics := &CacheMetrics{
		Overall:    allStats[overallCategory],
		ByCategory: make(map[string]CacheStats, len(allStats)),
	}
	for category, stats := range allStats {
		if category != overallCategory {
			metrics.ByCategory[category] = stats
		}
	}

	if c.mirror == nil {
		return metrics, nil
	}
	ids, err := c.mirror.SeriesIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read mirror size: %w", err)
	}
	metrics.MirrorEnabled = true
	metrics.MirrorKeys = int64(len(ids))
	return metrics, nil
}

// ResetStats resets all cache statistics
func (c *CacheAnalyticsService) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = make(map[string]*CacheStats)
}

// StartPeriodicReporting persists a stats snapshot to Redis every interval
// until ctx is done. It is a no-op without Redis.
func (c *CacheAnalyticsService) StartPeriodicReporting(ctx context.Context, interval time.Duration) {
	if c.redisClient == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = c.reportStats(ctx)
			}
		}
	}()
}

func (c *CacheAnalyticsService) reportStats(ctx context.Context) error {
	statsJSON, err := json.Marshal(c.GetAllStats())
	if err != nil {
		return err
	}
	return c.redisClient.Set(ctx, "cache:analytics:stats", statsJSON, 24*time.Hour).Err()
}
