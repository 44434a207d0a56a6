package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/kobimpw/Economic-terminal/internal/models"
)

// Mirror persists cache entries outside the process. Failures are logged
// and never block the in-memory cache.
type Mirror interface {
	Save(ctx context.Context, entry models.CacheEntry) error
	LoadAll(ctx context.Context) ([]models.CacheEntry, error)
}

// HitRecorder receives hit and miss events, e.g. CacheAnalyticsService.
type HitRecorder interface {
	RecordHit(category string)
	RecordMiss(category string)
}

// ComputeFunc produces a fresh entry for one series.
type ComputeFunc func(ctx context.Context) (models.CacheEntry, error)

const precomputedCategory = "precomputed"

// ForecastCache holds the latest best-model entry per series. Readers load
// an immutable map through an atomic pointer; writers copy and swap, so a
// Get never observes a partially written entry.
type ForecastCache struct {
	entries   atomic.Pointer[map[string]models.CacheEntry]
	writeMu   sync.Mutex
	group     singleflight.Group
	readiness sync.Map // seriesID -> models.Readiness
	mirror    Mirror
	recorder  HitRecorder
	logger    *logrus.Logger
	now       func() time.Time
}

// Option configures a ForecastCache.
type Option func(*ForecastCache)

// WithMirror enables write-through persistence.
func WithMirror(m Mirror) Option {
	return func(c *ForecastCache) { c.mirror = m }
}

// WithHitRecorder reports lookups to a recorder.
func WithHitRecorder(r HitRecorder) Option {
	return func(c *ForecastCache) { c.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Logger) Option {
	return func(c *ForecastCache) { c.logger = l }
}

// NewForecastCache creates an empty cache.
func NewForecastCache(opts ...Option) *ForecastCache {
	c := &ForecastCache{
		logger: logrus.StandardLogger(),
		now:    time.Now,
	}
	empty := make(map[string]models.CacheEntry)
	c.entries.Store(&empty)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached entry. It never blocks on or triggers computation.
func (c *ForecastCache) Get(seriesID string) (models.CacheEntry, bool) {
	entry, ok := (*c.entries.Load())[seriesID]
	if c.recorder != nil {
		if ok {
			c.recorder.RecordHit(precomputedCategory)
		} else {
			c.recorder.RecordMiss(precomputedCategory)
		}
	}
	return entry, ok
}

// Put atomically replaces the entry for seriesID and marks it ready.
func (c *ForecastCache) Put(seriesID string, entry models.CacheEntry) {
	c.store(seriesID, entry)
	c.setReadiness(seriesID, models.ReadinessReady, "")

	if c.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.mirror.Save(ctx, entry); err != nil {
			c.logger.WithFields(logrus.Fields{
				"series_id": seriesID,
				"error":     err.Error(),
			}).Warn("Failed to mirror forecast entry")
		}
	}
}

func (c *ForecastCache) store(seriesID string, entry models.CacheEntry) {
	entry.SeriesID = seriesID
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	current := *c.entries.Load()
	next := make(map[string]models.CacheEntry, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[seriesID] = entry
	c.entries.Store(&next)
}

// GetOrCompute runs fn at most once concurrently per seriesID. Concurrent
// callers for the same key share the in-flight result; different keys
// proceed independently. Unlike Get it always recomputes. A failure keeps
// any previous entry, which stays ready but is flagged stale.
func (c *ForecastCache) GetOrCompute(ctx context.Context, seriesID string, fn ComputeFunc) (models.CacheEntry, error) {
	v, err, _ := c.group.Do(seriesID, func() (interface{}, error) {
		c.setReadiness(seriesID, models.ReadinessComputing, "")
		entry, err := fn(ctx)
		if err != nil {
			if _, ok := (*c.entries.Load())[seriesID]; ok {
				c.readiness.Store(seriesID, models.Readiness{
					State:     models.ReadinessReady,
					Error:     err.Error(),
					Stale:     true,
					UpdatedAt: c.now(),
				})
			} else {
				c.setReadiness(seriesID, models.ReadinessFailed, err.Error())
			}
			return nil, fmt.Errorf("compute %s: %w", seriesID, err)
		}
		if entry.ComputedAt.IsZero() {
			entry.ComputedAt = c.now()
		}
		entry.SeriesID = seriesID
		c.Put(seriesID, entry)
		return entry, nil
	})
	if err != nil {
		return models.CacheEntry{}, err
	}
	return v.(models.CacheEntry), nil
}

// Readiness reports the computation state of seriesID. Series never seen
// are pending.
func (c *ForecastCache) Readiness(seriesID string) models.Readiness {
	if v, ok := c.readiness.Load(seriesID); ok {
		return v.(models.Readiness)
	}
	return models.Readiness{State: models.ReadinessPending}
}

// MarkPending resets the state of series queued for a sweep. Series with
// an in-flight computation keep their state.
func (c *ForecastCache) MarkPending(seriesIDs ...string) {
	for _, id := range seriesIDs {
		if c.Readiness(id).State == models.ReadinessComputing {
			continue
		}
		if _, ok := (*c.entries.Load())[id]; ok {
			continue
		}
		c.setReadiness(id, models.ReadinessPending, "")
	}
}

func (c *ForecastCache) setReadiness(seriesID string, state models.ReadinessState, errMsg string) {
	c.readiness.Store(seriesID, models.Readiness{State: state, Error: errMsg, UpdatedAt: c.now()})
}

// Snapshot returns the current entries. The map must not be modified.
func (c *ForecastCache) Snapshot() map[string]models.CacheEntry {
	return *c.entries.Load()
}

// Keys returns the cached series ids in sorted order.
func (c *ForecastCache) Keys() []string {
	entries := *c.entries.Load()
	keys := make([]string, 0, len(entries))
	for id := range entries {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of cached entries.
func (c *ForecastCache) Len() int {
	return len(*c.entries.Load())
}

// Restore loads mirrored entries, so a restarted process can serve the
// previous results while a new sweep runs.
func (c *ForecastCache) Restore(ctx context.Context) (int, error) {
	if c.mirror == nil {
		return 0, nil
	}
	entries, err := c.mirror.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore forecast cache: %w", err)
	}
	restored := 0
	for _, entry := range entries {
		if entry.SeriesID == "" || entry.Result == nil {
			continue
		}
		c.store(entry.SeriesID, entry)
		c.setReadiness(entry.SeriesID, models.ReadinessReady, "")
		restored++
	}
	c.logger.WithField("entries", restored).Info("Restored forecast cache from mirror")
	return restored, nil
}
