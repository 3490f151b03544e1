package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
)

type routerDeps struct {
	metrics   *service.MetricsService
	schedules *handler.ScheduleHandler
	grids     *handler.GridHandler
	probes    *handler.MetricsHandler
	tokens    middleware.TokenValidator
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", deps.probes.Health)
	r.GET("/ready", deps.probes.Ready)
	r.GET("/metrics", deps.probes.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	if cfg.Auth.Enabled {
		api.Use(middleware.JWT(deps.tokens))
	}
	api.GET("/weekdays", deps.grids.Weekdays)
	api.POST("/schedules/layout", deps.grids.Layout)

	groups := api.Group("/groups/:groupId/schedules")
	groups.GET("", deps.schedules.List)
	groups.GET("/grid", deps.grids.Week)
	groups.GET("/export", deps.grids.Export)
	groups.POST("/validate", deps.schedules.Validate)

	writes := groups.Group("")
	if cfg.Auth.Enabled {
		writes.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleScheduler))
	}
	writes.Use(middleware.NewRateLimiter(cfg.RateLimit.WritesPerMinute, cfg.RateLimit.Burst, logr).Handler())
	writes.POST("", deps.schedules.Create)
	writes.PUT("/:id", deps.schedules.Update)
	writes.DELETE("/:id", deps.schedules.Delete)

	return r
}
