package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/academy-checkin-api/api/swagger"
	"github.com/noah-isme/academy-checkin-api/internal/handler"
	"github.com/noah-isme/academy-checkin-api/internal/middleware"
	"github.com/noah-isme/academy-checkin-api/internal/models"
	"github.com/noah-isme/academy-checkin-api/internal/repository"
	"github.com/noah-isme/academy-checkin-api/internal/service"
	"github.com/noah-isme/academy-checkin-api/pkg/cache"
	"github.com/noah-isme/academy-checkin-api/pkg/config"
	"github.com/noah-isme/academy-checkin-api/pkg/database"
	"github.com/noah-isme/academy-checkin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/academy-checkin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/academy-checkin-api/pkg/middleware/requestid"
)

// @title Academy Check-in API
// @version 1.0.0
// @description Attendance check-in service for martial arts academies
// @BasePath /api
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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Redis backs the cache and the attempt throttle, both of
		// which degrade gracefully. Start without it.
		logr.Sugar().Warnw("redis unavailable, running without cache", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	biometricRepo := repository.NewBiometricRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	limiter := repository.NewAttemptLimiter(redisClient, cfg.Biometric.RateLimit, cfg.Biometric.RateWindow)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	resolverSvc := service.NewResolverService(studentRepo, subscriptionRepo, validate, logr)
	matcherSvc := service.NewMatcherService(biometricRepo, studentRepo, cacheRepo, limiter, metricsSvc, validate, logr, service.MatcherConfig{
		Threshold:    cfg.Biometric.MatchThreshold,
		MaxDistance:  cfg.Biometric.MaxDistance,
		EmbeddingDim: cfg.Biometric.EmbeddingDim,
		CacheTTL:     cfg.Biometric.CacheTTL,
	})
	eligibilitySvc := service.NewEligibilityService(studentRepo, sessionRepo, subscriptionRepo, attendanceRepo, logr, service.EligibilityConfig{
		AllowBasicMode: cfg.Checkin.AllowBasicMode,
		EnforceWindow:  cfg.Checkin.EnforceWindow,
		WindowBefore:   cfg.Checkin.WindowBefore,
		WindowAfter:    cfg.Checkin.WindowAfter,
	})
	checkinSvc := service.NewCheckinService(attendanceRepo, sessionRepo, studentRepo, eligibilitySvc, metricsSvc, validate, logr, service.AvailabilityConfig{
		WindowBefore: cfg.Checkin.WindowBefore,
		WindowAfter:  cfg.Checkin.WindowAfter,
	})
	exportSvc := service.NewExportService(attendanceRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(resolverSvc, checkinSvc)
	biometricHandler := handler.NewBiometricHandler(matcherSvc)
	checkinHandler := handler.NewCheckinHandler(checkinSvc)
	reportHandler := handler.NewReportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerAPIRoutes(r, cfg.APIPrefix, cfg.Reports.Enabled, authSvc, apiHandlers{
		auth:      authHandler,
		students:  studentHandler,
		biometric: biometricHandler,
		checkin:   checkinHandler,
		reports:   reportHandler,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

type apiHandlers struct {
	auth      *handler.AuthHandler
	students  *handler.StudentHandler
	biometric *handler.BiometricHandler
	checkin   *handler.CheckinHandler
	reports   *handler.ReportHandler
}

// registerAPIRoutes mounts the versioned API surface. Kiosk-facing
// routes stay public so the terminal works without a staff token; the
// admin and reporting surface sits behind JWT.
func registerAPIRoutes(r *gin.Engine, prefix string, reportsEnabled bool, authSvc *service.AuthService, h apiHandlers) {
	api := r.Group(prefix)
	{
		api.POST("/auth/login", h.auth.Login)

		students := api.Group("/students")
		{
			students.GET("/search", h.students.Search)
			students.GET("/:id", h.students.Get)
			students.GET("/:id/available-courses", h.students.AvailableCourses)
			students.GET("", middleware.JWT(authSvc), h.students.List)
			students.GET("/:id/subscriptions", middleware.JWT(authSvc), h.students.Subscriptions)
			students.POST("", middleware.JWT(authSvc),
				middleware.RequireRoles(models.RoleAdmin), h.students.Create)
			students.DELETE("/:id", middleware.JWT(authSvc),
				middleware.RequireRoles(models.RoleAdmin), h.students.Deactivate)
		}

		biometric := api.Group("/biometric")
		{
			biometric.GET("/students/embeddings", h.biometric.ListEmbeddings)
			biometric.POST("/match", h.biometric.Match)
			biometric.POST("/attempts", h.biometric.ReportAttempt)

			protected := biometric.Group("", middleware.JWT(authSvc))
			{
				protected.GET("/students/:id/face-embedding", h.biometric.GetEmbedding)
				protected.POST("/students/:id/face-embedding", h.biometric.SaveEmbedding)
				protected.DELETE("/students/:id/face-embedding",
					middleware.RequireRoles(models.RoleAdmin), h.biometric.RemoveEmbedding)
				protected.GET("/attempts", h.biometric.Attempts)
			}
		}

		api.POST("/kiosk/camera-error", h.biometric.CameraError)

		attendance := api.Group("/attendance")
		{
			attendance.POST("/checkin", h.checkin.CheckIn)
			attendance.POST("/validate", h.checkin.Validate)
			attendance.GET("/today", h.checkin.Today)

			protected := attendance.Group("", middleware.JWT(authSvc))
			{
				protected.GET("/history", h.checkin.History)
				protected.GET("/stats", h.checkin.Stats)
				if reportsEnabled {
					protected.GET("/report/export", h.reports.Export)
				}
			}
		}
	}
}
