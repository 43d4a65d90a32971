package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env           string
	Port          int
	APIPrefix     string
	RunMigrations bool

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Timetable TimetableConfig
	Events    EventsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TimetableConfig holds generation limits and the defaults applied to omitted request fields.
type TimetableConfig struct {
	MinPeriodDuration      time.Duration
	MaxPeriodsPerDay       int
	DefaultPeriodsPerDay   int
	DefaultPeriodDuration  time.Duration
	DefaultBreakAfter      int
	DefaultBreakDuration   time.Duration
	SchoolStart            string
	RequeuePolicy          string
	DistinctSubjectsPerDay bool
	CacheEnabled           bool
	CacheTTL               time.Duration
}

// EventsConfig sizes the domain event worker queue.
type EventsConfig struct {
	Workers    int
	Buffer     int
	Retries    int
	RetryDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.RunMigrations = v.GetBool("RUN_MIGRATIONS")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Timetable = TimetableConfig{
		MinPeriodDuration:      parseDuration(v.GetString("TIMETABLE_MIN_PERIOD_DURATION"), 30*time.Minute),
		MaxPeriodsPerDay:       positiveInt(v.GetInt("TIMETABLE_MAX_PERIODS_PER_DAY"), 10),
		DefaultPeriodsPerDay:   v.GetInt("TIMETABLE_DEFAULT_PERIODS_PER_DAY"),
		DefaultPeriodDuration:  parseDuration(v.GetString("TIMETABLE_DEFAULT_PERIOD_DURATION"), 40*time.Minute),
		DefaultBreakAfter:      v.GetInt("TIMETABLE_DEFAULT_BREAK_AFTER"),
		DefaultBreakDuration:   parseDuration(v.GetString("TIMETABLE_DEFAULT_BREAK_DURATION"), 20*time.Minute),
		SchoolStart:            v.GetString("TIMETABLE_SCHOOL_START"),
		RequeuePolicy:          strings.ToUpper(v.GetString("TIMETABLE_REQUEUE_POLICY")),
		DistinctSubjectsPerDay: v.GetBool("TIMETABLE_DISTINCT_SUBJECTS_PER_DAY"),
		CacheEnabled:           v.GetBool("TIMETABLE_CACHE_ENABLED"),
		CacheTTL:               parseDuration(v.GetString("TIMETABLE_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Events = EventsConfig{
		Workers:    positiveInt(v.GetInt("EVENTS_WORKERS"), 2),
		Buffer:     positiveInt(v.GetInt("EVENTS_BUFFER"), 64),
		Retries:    v.GetInt("EVENTS_RETRIES"),
		RetryDelay: parseDuration(v.GetString("EVENTS_RETRY_DELAY"), time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("RUN_MIGRATIONS", false)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sma_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TIMETABLE_MIN_PERIOD_DURATION", "30m")
	v.SetDefault("TIMETABLE_MAX_PERIODS_PER_DAY", 10)
	v.SetDefault("TIMETABLE_DEFAULT_PERIODS_PER_DAY", 8)
	v.SetDefault("TIMETABLE_DEFAULT_PERIOD_DURATION", "40m")
	v.SetDefault("TIMETABLE_DEFAULT_BREAK_AFTER", 4)
	v.SetDefault("TIMETABLE_DEFAULT_BREAK_DURATION", "20m")
	v.SetDefault("TIMETABLE_SCHOOL_START", "07:00")
	v.SetDefault("TIMETABLE_REQUEUE_POLICY", "ONCE")
	v.SetDefault("TIMETABLE_DISTINCT_SUBJECTS_PER_DAY", true)
	v.SetDefault("TIMETABLE_CACHE_ENABLED", true)
	v.SetDefault("TIMETABLE_CACHE_TTL", "5m")

	v.SetDefault("EVENTS_WORKERS", 2)
	v.SetDefault("EVENTS_BUFFER", 64)
	v.SetDefault("EVENTS_RETRIES", 3)
	v.SetDefault("EVENTS_RETRY_DELAY", "1s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func positiveInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
