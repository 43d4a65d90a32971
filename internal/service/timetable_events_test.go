package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

type flakyCacheRepo struct {
	*memoryCacheRepo
	mu       sync.Mutex
	failures int
}

func (f *flakyCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return errors.New("redis unavailable")
	}
	f.mu.Unlock()
	return f.memoryCacheRepo.DeleteByPattern(ctx, pattern)
}

func TestTimetableEventDispatcherInvalidatesCache(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, SectionTimetableKey("s1"), map[string]string{"k": "v"}, 0))
	require.NoError(t, cache.Set(ctx, TeacherTimetableKey("t2"), map[string]string{"k": "v"}, 0))

	dispatcher := NewTimetableEventDispatcher(cache, NewMetricsService(), jobs.QueueConfig{Workers: 1, BufferSize: 4})
	dispatcher.Start(ctx)

	err := dispatcher.Publish(ctx, models.TimeTableEvent{
		ID:                 "ev-1",
		Type:               models.EventEntryUpdated,
		SectionID:          "s1",
		AffectedTeacherIDs: []string{"t1", "t2"},
	})
	require.NoError(t, err)
	dispatcher.Stop()

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.ElementsMatch(t, []string{"timetable:section:s1", "timetable:teacher:t1", "timetable:teacher:t2"}, repo.deleted)
	assert.Empty(t, repo.values)
}

func TestTimetableEventDispatcherHandlesInlineWhenStopped(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	dispatcher := NewTimetableEventDispatcher(cache, nil, jobs.QueueConfig{})

	err := dispatcher.Publish(context.Background(), models.TimeTableEvent{ID: "ev-1", Type: models.EventTimetableGenerated, SectionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"timetable:section:s1"}, repo.deleted)
}

func TestTimetableEventDispatcherReportsInlineFailure(t *testing.T) {
	repo := &flakyCacheRepo{memoryCacheRepo: newMemoryCacheRepo(), failures: 1}
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	dispatcher := NewTimetableEventDispatcher(cache, nil, jobs.QueueConfig{})

	err := dispatcher.Publish(context.Background(), models.TimeTableEvent{ID: "ev-1", Type: models.EventEntryCancelled, SectionID: "s1"})
	assert.Error(t, err)
}

func TestTimetableEventDispatcherRetriesFailedInvalidation(t *testing.T) {
	repo := &flakyCacheRepo{memoryCacheRepo: newMemoryCacheRepo(), failures: 1}
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	dispatcher := NewTimetableEventDispatcher(cache, nil, jobs.QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 10 * time.Millisecond})
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	require.NoError(t, dispatcher.Publish(context.Background(), models.TimeTableEvent{ID: "ev-1", Type: models.EventEntryCreated, SectionID: "s1"}))

	assert.Eventually(t, func() bool {
		repo.memoryCacheRepo.mu.Lock()
		defer repo.memoryCacheRepo.mu.Unlock()
		return len(repo.deleted) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, 0, nil, false)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", "v", 0))
	hit, err := cache.Get(ctx, "k", new(string))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, repo.values)

	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
	assert.NoError(t, nilCache.InvalidateTimetable(ctx, "s1", "t1"))
}

func TestCacheServiceGetMissAndHit(t *testing.T) {
	metrics := NewMetricsService()
	cache := NewCacheService(newMemoryCacheRepo(), metrics, 0, nil, true)
	ctx := context.Background()

	var value string
	hit, err := cache.Get(ctx, "k", &value)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, "k", "cached", 0))
	hit, err = cache.Get(ctx, "k", &value)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "cached", value)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
	assert.InDelta(t, 0.5, snapshot.CacheHitRatio, 0.0001)
}
