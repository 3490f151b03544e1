package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/migrations"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Weekly class schedules with overlap detection and calendar grid layout.
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database unavailable", "error", err)
	}
	defer db.Close() //nolint:errcheck

	if cfg.RunMigrations {
		if err := migrations.Up(ctx, db, logr); err != nil {
			logr.Sugar().Fatalw("migrations failed", "error", err)
		}
	}

	metrics := service.NewMetricsService()

	var redisClient *redis.Client
	if cfg.Grid.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, serving grids without cache", zap.Error(err))
			redisClient = nil
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, "timetable:")
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Grid.CacheTTL, logr, redisClient != nil)

	scheduleRepo := repository.NewScheduleRepository(db)
	gridSvc := service.NewGridService(scheduleRepo, cacheSvc, metrics, gridSettings(cfg), logr)

	refreshWorker := service.NewGridRefreshWorker(gridSvc, logr)
	refreshQueue := jobs.NewQueue("grid-refresh", refreshWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Grid.RefreshWorkers,
		MaxRetries: 2,
		Logger:     logr,
	})
	refreshQueue.Start(ctx)
	defer refreshQueue.Stop()

	var dispatcher interface{ Enqueue(jobs.Job) error }
	if cacheSvc.Enabled() {
		dispatcher = refreshQueue
	}
	scheduleSvc := service.NewScheduleService(scheduleRepo, gridSvc, dispatcher, metrics, validator.New(), logr)
	exportSvc := service.NewExportService(gridSvc, logr, nil, nil)
	tokenSvc := service.NewTokenService(service.TokenConfig{Secret: cfg.Auth.Secret, Issuer: cfg.Auth.Issuer})

	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := newRouter(cfg, logr, routerDeps{
		metrics:   metrics,
		schedules: handler.NewScheduleHandler(scheduleSvc),
		grids:     handler.NewGridHandler(gridSvc, exportSvc),
		probes:    handler.NewMetricsHandler(metrics, checks),
		tokens:    tokenSvc,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func gridSettings(cfg *config.Config) service.GridSettings {
	days := make([]models.Weekday, 0, len(cfg.Grid.Days))
	for _, day := range cfg.Grid.Days {
		days = append(days, models.Weekday(day))
	}
	return service.GridSettings{
		Config: models.TimeGridConfig{
			FirstSlotStart: cfg.Grid.FirstSlotStart,
			LastSlotEnd:    cfg.Grid.LastSlotEnd,
			PixelsPerHour:  cfg.Grid.PixelsPerHour,
		},
		Days:               days,
		ContentMinHeightPx: cfg.Grid.ContentMinHeightPx,
		DefaultLocale:      cfg.DefaultLocale,
		CacheTTL:           cfg.Grid.CacheTTL,
	}
}
