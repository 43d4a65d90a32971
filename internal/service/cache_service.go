package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const timetableCachePrefix = "timetable"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService orchestrates cache operations and related metrics.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// SectionTimetableKey is the cache key of a section's active week.
func SectionTimetableKey(sectionID string) string {
	return fmt.Sprintf("%s:section:%s", timetableCachePrefix, sectionID)
}

// TeacherTimetableKey is the cache key of a teacher's active week.
func TeacherTimetableKey(teacherID string) string {
	return fmt.Sprintf("%s:teacher:%s", timetableCachePrefix, teacherID)
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// InvalidateTimetable drops the cached weeks of a section and the given teachers.
func (s *CacheService) InvalidateTimetable(ctx context.Context, sectionID string, teacherIDs ...string) error {
	if !s.Enabled() {
		return nil
	}
	keys := make([]string, 0, len(teacherIDs)+1)
	if sectionID != "" {
		keys = append(keys, SectionTimetableKey(sectionID))
	}
	for _, teacherID := range teacherIDs {
		if teacherID != "" {
			keys = append(keys, TeacherTimetableKey(teacherID))
		}
	}
	var errs []error
	for _, key := range keys {
		if err := s.repo.DeleteByPattern(ctx, key); err != nil {
			s.logger.Warn("cache invalidate failed", zap.String("pattern", key), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
