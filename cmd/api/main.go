package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/studygrouphq/enrollment-api/api/swagger"
	"github.com/studygrouphq/enrollment-api/internal/handler"
	"github.com/studygrouphq/enrollment-api/internal/middleware"
	"github.com/studygrouphq/enrollment-api/internal/models"
	"github.com/studygrouphq/enrollment-api/internal/repository"
	"github.com/studygrouphq/enrollment-api/internal/service"
	"github.com/studygrouphq/enrollment-api/pkg/cache"
	"github.com/studygrouphq/enrollment-api/pkg/config"
	"github.com/studygrouphq/enrollment-api/pkg/database"
	"github.com/studygrouphq/enrollment-api/pkg/jobs"
	"github.com/studygrouphq/enrollment-api/pkg/logger"
	corsmiddleware "github.com/studygrouphq/enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/studygrouphq/enrollment-api/pkg/middleware/requestid"
)

// @title Group Enrollment API
// @version 1.0.0
// @description Capacity-gated group enrollment with FIFO waiting lists
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metrics := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Cache.WaitlistTTL, logr, true)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	dispatcher := service.NewPromotionDispatcher(service.NewLogSink(logr), jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	}, logr)
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	groupRepo := repository.NewGroupRepository(db)

	locks := service.NewGroupLocks()
	gate := service.NewCapacityGate(groupRepo, enrollmentRepo)
	waitlistSvc := service.NewWaitlistService(enrollmentRepo, groupRepo, locks, cacheSvc, metrics, dispatcher, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, groupRepo, gate, waitlistSvc, locks, cacheSvc, metrics, validator.New(), logr)
	groupSvc := service.NewGroupService(groupRepo, enrollmentRepo, cacheSvc, metrics, cfg.Cache.OccupancyTTL)
	exportSvc := service.NewExportService(waitlistSvc)

	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, waitlistSvc)
	waitlistHandler := handler.NewWaitlistHandler(waitlistSvc, exportSvc)
	groupHandler := handler.NewGroupHandler(groupSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))

	api.POST("/enrollments", enrollmentHandler.Create)
	api.DELETE("/enrollments/:id", enrollmentHandler.Withdraw)
	api.PUT("/enrollments/:id/group", enrollmentHandler.ChangeGroup)
	api.GET("/enrollments/:id/queue-position", enrollmentHandler.QueuePosition)

	api.GET("/groups/:id", groupHandler.Get)
	api.GET("/groups/:id/occupancy", groupHandler.Occupancy)
	api.GET("/groups/:id/waitlist", waitlistHandler.ListByGroup)
	api.DELETE("/waitlist/:id", waitlistHandler.Leave)
	api.GET("/students/:id/waitlist", waitlistHandler.ListByStudent)

	admin := api.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleStaff))
	admin.POST("/groups/:id/waitlist/promote", waitlistHandler.PromoteNext)
	admin.POST("/groups/:id/waitlist/drain", waitlistHandler.Drain)
	admin.GET("/groups/:id/waitlist/export", waitlistHandler.Export)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
