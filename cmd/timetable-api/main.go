package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

const shutdownTimeout = 15 * time.Second

// @title SMA Timetable API
// @version 1.0.0
// @description Weekly timetable generation and slot conflict detection for school sections.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.RunMigrations {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			return err
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, timetable cache disabled", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	schoolStart, err := models.ParseTimeOfDay(cfg.Timetable.SchoolStart)
	if err != nil {
		return fmt.Errorf("TIMETABLE_SCHOOL_START: %w", err)
	}
	requeue, err := models.ParseRequeuePolicy(cfg.Timetable.RequeuePolicy)
	if err != nil {
		return fmt.Errorf("TIMETABLE_REQUEUE_POLICY: %w", err)
	}

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Timetable.CacheTTL, logr, cfg.Timetable.CacheEnabled && redisClient != nil)

	dispatcher := service.NewTimetableEventDispatcher(cacheSvc, metrics, jobs.QueueConfig{
		Workers:    cfg.Events.Workers,
		BufferSize: cfg.Events.Buffer,
		MaxRetries: cfg.Events.Retries,
		RetryDelay: cfg.Events.RetryDelay,
		Logger:     logr.Named("events"),
	})
	// Stop runs after the HTTP server has drained, so in-flight requests can still publish.
	dispatcher.Start(context.WithoutCancel(ctx))
	defer dispatcher.Stop()

	rules := models.SlotRules{
		MaxPeriodsPerDay:      cfg.Timetable.MaxPeriodsPerDay,
		MinimumPeriodDuration: cfg.Timetable.MinPeriodDuration,
	}
	availability := service.NewSlotAvailabilityService(service.DefaultConflictDetectionStrategy{}, metrics)
	sections := repository.NewSectionRepository(db)
	timetableSvc := service.NewTimetableService(service.TimetableServiceDeps{
		Entries:      repository.NewTimetableEntryRepository(db),
		Sections:     sections,
		Tx:           db,
		Generator:    service.NewTimeTableGenerationService(availability, rules, logr.Named("generator")),
		Availability: availability,
		Publisher:    dispatcher,
		Cache:        cacheSvc,
		Metrics:      metrics,
		Rules:        rules,
		Defaults: service.TimetableDefaults{
			PeriodsPerDay:                cfg.Timetable.DefaultPeriodsPerDay,
			PeriodDuration:               cfg.Timetable.DefaultPeriodDuration,
			BreakAfterPeriod:             cfg.Timetable.DefaultBreakAfter,
			BreakDuration:                cfg.Timetable.DefaultBreakDuration,
			SchoolStartTime:              schoolStart,
			PreferDistinctSubjectsPerDay: cfg.Timetable.DistinctSubjectsPerDay,
			Requeue:                      requeue,
			CacheTTL:                     cfg.Timetable.CacheTTL,
		},
		Validator: validator.New(),
		Logger:    logr.Named("timetable"),
	})
	exportSvc := service.NewTimetableExportService(timetableSvc, sections, logr.Named("export"))
	authSvc := service.NewAuthService(service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	handler.RegisterOpsRoutes(r, handler.NewMetricsHandler(metrics, checks))
	handler.RegisterTimetableRoutes(r.Group(cfg.APIPrefix), handler.NewTimetableHandler(timetableSvc, exportSvc), authSvc)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
