package series

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kobimpw/Economic-terminal/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu        sync.Mutex
	data      map[string][]models.Observation
	fetchedAt time.Time
	loadErr   error
	loads     int
	upserts   int
}

func (f *fakeRepo) Load(ctx context.Context, seriesID string) ([]models.Observation, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return nil, time.Time{}, f.loadErr
	}
	obs := f.data[seriesID]
	if len(obs) == 0 {
		return nil, time.Time{}, nil
	}
	return obs, f.fetchedAt, nil
}

func (f *fakeRepo) Upsert(ctx context.Context, seriesID string, obs []models.Observation) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.data == nil {
		f.data = map[string][]models.Observation{}
	}
	f.data[seriesID] = obs
	return int64(len(obs)), nil
}

type fakeRemote struct {
	obs   []models.Observation
	err   error
	calls int
}

func (f *fakeRemote) Observations(ctx context.Context, seriesID string) ([]models.Observation, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.obs, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func sampleObservations(n int) []models.Observation {
	obs := make([]models.Observation, n)
	for i := range obs {
		obs[i] = models.Observation{Date: day("2020-01-01").AddDate(0, i, 0), Value: float64(i)}
	}
	return obs
}

func TestLayeredStore_RemoteThenMemory(t *testing.T) {
	repo := &fakeRepo{}
	remote := &fakeRemote{obs: sampleObservations(5)}
	store := NewLayeredStore(LayeredConfig{CacheSize: 8, CacheTTL: time.Hour, MaxStaleness: time.Hour}, repo, remote, quietLogger())
	ctx := context.Background()

	obs, err := store.Observations(ctx, "UNRATE")
	require.NoError(t, err)
	assert.Len(t, obs, 5)
	assert.Equal(t, 1, remote.calls)
	assert.Equal(t, 1, repo.upserts)

	_, err = store.Observations(ctx, "UNRATE")
	require.NoError(t, err)
	assert.Equal(t, 1, remote.calls)
	assert.Equal(t, 1, repo.loads)
}

func TestLayeredStore_FreshRepositorySkipsRemote(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{data: map[string][]models.Observation{"UNRATE": sampleObservations(3)}, fetchedAt: now.Add(-time.Hour)}
	remote := &fakeRemote{obs: sampleObservations(10)}
	store := NewLayeredStore(LayeredConfig{MaxStaleness: 24 * time.Hour}, repo, remote, quietLogger())
	store.now = func() time.Time { return now }

	obs, err := store.Observations(context.Background(), "UNRATE")
	require.NoError(t, err)
	assert.Len(t, obs, 3)
	assert.Zero(t, remote.calls)
}

func TestLayeredStore_StaleRepositoryRefetches(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{data: map[string][]models.Observation{"UNRATE": sampleObservations(3)}, fetchedAt: now.Add(-48 * time.Hour)}
	remote := &fakeRemote{obs: sampleObservations(10)}
	store := NewLayeredStore(LayeredConfig{MaxStaleness: 24 * time.Hour}, repo, remote, quietLogger())
	store.now = func() time.Time { return now }

	obs, err := store.Observations(context.Background(), "UNRATE")
	require.NoError(t, err)
	assert.Len(t, obs, 10)
	assert.Equal(t, 1, remote.calls)
	assert.Len(t, repo.data["UNRATE"], 10)
}

func TestLayeredStore_StaleFallbackOnRemoteFailure(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{data: map[string][]models.Observation{"UNRATE": sampleObservations(3)}, fetchedAt: now.Add(-48 * time.Hour)}
	remote := &fakeRemote{err: errors.New("fred unavailable")}
	store := NewLayeredStore(LayeredConfig{MaxStaleness: 24 * time.Hour}, repo, remote, quietLogger())
	store.now = func() time.Time { return now }

	obs, err := store.Observations(context.Background(), "UNRATE")
	require.NoError(t, err)
	assert.Len(t, obs, 3)
}

func TestLayeredStore_UnknownSeriesNotMasked(t *testing.T) {
	repo := &fakeRepo{data: map[string][]models.Observation{"UNRATE": sampleObservations(3)}}
	remote := &fakeRemote{err: fmt.Errorf("%w: UNRATE", ErrUnknownSeries)}
	store := NewLayeredStore(LayeredConfig{MaxStaleness: time.Nanosecond}, repo, remote, quietLogger())

	_, err := store.Observations(context.Background(), "UNRATE")
	assert.ErrorIs(t, err, ErrUnknownSeries)
}

func TestLayeredStore_RepositoryErrorFallsThrough(t *testing.T) {
	repo := &fakeRepo{loadErr: errors.New("db down")}
	remote := &fakeRemote{obs: sampleObservations(4)}
	store := NewLayeredStore(LayeredConfig{}, repo, remote, quietLogger())

	obs, err := store.Observations(context.Background(), "UNRATE")
	require.NoError(t, err)
	assert.Len(t, obs, 4)
}

func TestLayeredStore_NoLayers(t *testing.T) {
	store := NewLayeredStore(LayeredConfig{}, nil, nil, quietLogger())

	_, err := store.Observations(context.Background(), "UNRATE")
	assert.ErrorIs(t, err, ErrNoObservations)
}

func TestLayeredStore_Invalidate(t *testing.T) {
	remote := &fakeRemote{obs: sampleObservations(2)}
	store := NewLayeredStore(LayeredConfig{CacheSize: 4, CacheTTL: time.Hour}, nil, remote, quietLogger())
	ctx := context.Background()

	_, err := store.Observations(ctx, "UNRATE")
	require.NoError(t, err)
	store.Invalidate("UNRATE")
	_, err = store.Observations(ctx, "UNRATE")
	require.NoError(t, err)

	assert.Equal(t, 2, remote.calls)
}

func TestLayeredStore_InvalidateSkipsFreshRepository(t *testing.T) {
	repo := &fakeRepo{
		data:      map[string][]models.Observation{"UNRATE": sampleObservations(2)},
		fetchedAt: time.Now(),
	}
	remote := &fakeRemote{obs: sampleObservations(3)}
	store := NewLayeredStore(LayeredConfig{CacheSize: 4, CacheTTL: time.Hour, MaxStaleness: 24 * time.Hour}, repo, remote, quietLogger())
	ctx := context.Background()

	obs, err := store.Observations(ctx, "UNRATE")
	require.NoError(t, err)
	assert.Len(t, obs, 2)
	assert.Equal(t, 0, remote.calls)

	store.Invalidate("UNRATE")
	obs, err = store.Observations(ctx, "UNRATE")
	require.NoError(t, err)
	assert.Len(t, obs, 3)
	assert.Equal(t, 1, remote.calls)
	assert.Equal(t, 1, repo.upserts)

	// Only the read right after Invalidate is forced.
	_, err = store.Observations(ctx, "UNRATE")
	require.NoError(t, err)
	assert.Equal(t, 1, remote.calls)
}

func TestLayeredStore_InvalidateFallsBackToStoredCopy(t *testing.T) {
	repo := &fakeRepo{
		data:      map[string][]models.Observation{"UNRATE": sampleObservations(2)},
		fetchedAt: time.Now(),
	}
	remote := &fakeRemote{err: errors.New("fred down")}
	store := NewLayeredStore(LayeredConfig{CacheSize: 4, CacheTTL: time.Hour, MaxStaleness: 24 * time.Hour}, repo, remote, quietLogger())

	store.Invalidate("UNRATE")
	obs, err := store.Observations(context.Background(), "UNRATE")
	require.NoError(t, err)
	assert.Len(t, obs, 2)
	assert.Equal(t, 1, remote.calls)
}
