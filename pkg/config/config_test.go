package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 30*time.Minute, cfg.Timetable.MinPeriodDuration)
	assert.Equal(t, 10, cfg.Timetable.MaxPeriodsPerDay)
	assert.Equal(t, 8, cfg.Timetable.DefaultPeriodsPerDay)
	assert.Equal(t, 40*time.Minute, cfg.Timetable.DefaultPeriodDuration)
	assert.Equal(t, "07:00", cfg.Timetable.SchoolStart)
	assert.Equal(t, "ONCE", cfg.Timetable.RequeuePolicy)
	assert.True(t, cfg.Timetable.DistinctSubjectsPerDay)
	assert.Equal(t, 2, cfg.Events.Workers)
	assert.Equal(t, 3, cfg.Events.Retries)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("TIMETABLE_MAX_PERIODS_PER_DAY", "12")
	t.Setenv("TIMETABLE_REQUEUE_POLICY", "never")
	t.Setenv("TIMETABLE_CACHE_TTL", "not-a-duration")
	t.Setenv("EVENTS_WORKERS", "0")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Timetable.MaxPeriodsPerDay)
	assert.Equal(t, "NEVER", cfg.Timetable.RequeuePolicy)
	assert.Equal(t, 5*time.Minute, cfg.Timetable.CacheTTL)
	assert.Equal(t, 2, cfg.Events.Workers)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}
