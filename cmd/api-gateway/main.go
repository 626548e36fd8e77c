package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/coursedesk/coursedesk-api/api/swagger"
	"github.com/coursedesk/coursedesk-api/internal/handler"
	internalmiddleware "github.com/coursedesk/coursedesk-api/internal/middleware"
	"github.com/coursedesk/coursedesk-api/internal/models"
	"github.com/coursedesk/coursedesk-api/internal/repository"
	"github.com/coursedesk/coursedesk-api/internal/service"
	"github.com/coursedesk/coursedesk-api/pkg/cache"
	"github.com/coursedesk/coursedesk-api/pkg/config"
	"github.com/coursedesk/coursedesk-api/pkg/database"
	"github.com/coursedesk/coursedesk-api/pkg/logger"
	corsmiddleware "github.com/coursedesk/coursedesk-api/pkg/middleware/cors"
	reqidmiddleware "github.com/coursedesk/coursedesk-api/pkg/middleware/requestid"
)

// @title CourseDesk API
// @version 1.0.0
// @description Course management backend with attendance recording and history
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	// Redis is optional. Without it the dashboard recomputes on every call.
	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, dashboard caching disabled", zap.Error(err))
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Dashboard.CacheTTL, logr, false)
	} else {
		defer redisClient.Close()
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, true)
	}

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, attendanceRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, validate, logr)
	historySvc := service.NewAttendanceHistoryService(attendanceRepo, logr)
	dashboardSvc := service.NewDashboardService(courseRepo, userRepo, enrollmentRepo, attendanceRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc, historySvc, dashboardSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))

	secured.POST("/auth/logout", authHandler.Logout)
	secured.GET("/auth/me", authHandler.Me)

	admin := internalmiddleware.RequireRoles(models.RoleAdmin)
	staff := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)

	secured.GET("/users", admin, userHandler.List)
	secured.GET("/users/:id", internalmiddleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
	secured.POST("/users", admin, userHandler.Create)
	secured.PUT("/users/:id", internalmiddleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Update)
	secured.DELETE("/users/:id", admin, userHandler.Delete)

	secured.GET("/courses", courseHandler.List)
	secured.POST("/courses", staff, courseHandler.Create)
	secured.GET("/courses/:id", courseHandler.Get)
	secured.PUT("/courses/:id", staff, courseHandler.Update)
	secured.DELETE("/courses/:id", staff, courseHandler.Delete)

	secured.GET("/courses/:id/enrollments", staff, enrollmentHandler.Roster)
	secured.POST("/courses/:id/enrollments", staff, enrollmentHandler.Enroll)
	secured.DELETE("/courses/:id/enrollments/:studentId", staff, enrollmentHandler.Unenroll)

	secured.GET("/courses/:id/attendance/snapshot", staff, attendanceHandler.Snapshot)
	secured.POST("/courses/:id/attendance", staff, attendanceHandler.Save)
	secured.POST("/attendance/bulk-status", staff, attendanceHandler.BulkStatus)
	secured.GET("/courses/:id/attendance", attendanceHandler.List)
	secured.PATCH("/attendance/entries/:entryId", staff, attendanceHandler.UpdateEntry)
	secured.DELETE("/attendance/sessions/:sessionId", staff, attendanceHandler.DeleteSession)

	if cfg.Exports.Enabled {
		secured.GET("/courses/:id/attendance/export", attendanceHandler.Export)
	}

	if cfg.Dashboard.Enabled {
		secured.GET("/dashboard/summary", dashboardHandler.Summary)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
