package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobimpw/Economic-terminal/internal/cache"
)

type lookupCounter struct {
	mu     sync.Mutex
	hits   int
	misses int
}

func (l *lookupCounter) RecordCacheLookup(category string, hit bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if hit {
		l.hits++
	} else {
		l.misses++
	}
}

func TestCacheAnalyticsService_RecordAndStats(t *testing.T) {
	observer := &lookupCounter{}
	service := NewCacheAnalyticsService(nil, observer)

	service.RecordHit("precomputed")
	service.RecordHit("precomputed")
	service.RecordMiss("precomputed")

	stats := service.GetStats("precomputed")
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(3), stats.TotalOps)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-12)

	assert.Equal(t, int64(3), service.GetStats(overallCategory).TotalOps)
	assert.Equal(t, CacheStats{}, service.GetStats("unknown"))
	assert.Equal(t, 2, observer.hits)
	assert.Equal(t, 1, observer.misses)
}

func TestCacheAnalyticsService_GetMetricsWithoutRedis(t *testing.T) {
	service := NewCacheAnalyticsService(nil, nil)
	service.RecordMiss("precomputed")

	metrics, err := service.GetMetrics(context.Background())
	require.NoError(t, err)
	assert.False(t, metrics.MirrorEnabled)
	assert.Equal(t, int64(1), metrics.Overall.Misses)
	assert.Contains(t, metrics.ByCategory, "precomputed")
	assert.NotContains(t, metrics.ByCategory, overallCategory)
}

func TestCacheAnalyticsService_GetMetricsWithRedis(t *testing.T) {
	redisServer := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: redisServer.Addr()})
	defer redisClient.Close()

	require.NoError(t, redisServer.Set("forecast:precomputed:UNRATE", "{}"))
	require.NoError(t, redisServer.Set("forecast:precomputed:T10Y2Y", "{}"))
	require.NoError(t, redisServer.Set("unrelated:key", "x"))

	service := NewCacheAnalyticsService(redisClient, nil)
	service.SetMirror(cache.NewRedisForecastStore(redisClient))
	service.RecordHit("precomputed")
	require.NoError(t, service.reportStats(context.Background()))

	metrics, err := service.GetMetrics(context.Background())
	require.NoError(t, err)
	assert.True(t, metrics.MirrorEnabled)
	assert.Equal(t, int64(2), metrics.MirrorKeys)
}

func TestCacheAnalyticsService_ReportStats(t *testing.T) {
	redisServer := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: redisServer.Addr()})
	defer redisClient.Close()

	service := NewCacheAnalyticsService(redisClient, nil)
	service.RecordHit("precomputed")
	require.NoError(t, service.reportStats(context.Background()))

	raw, err := redisServer.Get("cache:analytics:stats")
	require.NoError(t, err)
	var stored map[string]CacheStats
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, int64(1), stored["precomputed"].Hits)
	assert.True(t, redisServer.TTL("cache:analytics:stats") > 0)
}

func TestCacheAnalyticsService_ResetStats(t *testing.T) {
	service := NewCacheAnalyticsService(nil, nil)
	service.RecordHit("precomputed")
	service.ResetStats()
	assert.Empty(t, service.GetAllStats())
}

func TestCacheAnalyticsService_ConcurrentRecording(t *testing.T) {
	service := NewCacheAnalyticsService(nil, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				service.RecordHit("precomputed")
			} else {
				service.RecordMiss("precomputed")
			}
		}(i)
	}
	wg.Wait()

	stats := service.GetStats("precomputed")
	assert.Equal(t, int64(50), stats.TotalOps)
	assert.Equal(t, int64(25), stats.Hits)
}
