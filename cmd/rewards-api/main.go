package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sma-rewards-api/api/swagger"
	"github.com/noah-isme/sma-rewards-api/internal/handler"
	"github.com/noah-isme/sma-rewards-api/internal/middleware"
	"github.com/noah-isme/sma-rewards-api/internal/models"
	"github.com/noah-isme/sma-rewards-api/internal/repository"
	"github.com/noah-isme/sma-rewards-api/internal/service"
	"github.com/noah-isme/sma-rewards-api/pkg/cache"
	"github.com/noah-isme/sma-rewards-api/pkg/config"
	"github.com/noah-isme/sma-rewards-api/pkg/database"
	"github.com/noah-isme/sma-rewards-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-rewards-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-rewards-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-rewards-api/pkg/storage"
)

// @title SMA Rewards API
// @version 0.1.0
// @description Leaderboard scoring and anti-gaming service
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	awardRepo := repository.NewPointAwardRepository(db)
	eventRepo := repository.NewPointEventRepository(db)
	flagRepo := repository.NewAnomalyFlagRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	var usageStore service.UsageStore
	if cfg.Scoring.UsageStore == "redis" && redisClient != nil {
		usageStore = repository.NewRedisUsageStore(redisClient, cfg.Scoring.UsageTTL)
	} else {
		usageStore = service.NewMemoryUsageStore()
	}

	scoring := service.NewScoringService(nil, nil, usageStore, service.ScoringConfig{
		FallbackBasePoints: cfg.Scoring.FallbackBase,
		RepeatFactor:       cfg.Scoring.RepeatFactor,
	}, logr)

	limiter := service.NewRateLimiterService(service.RateLimiterDefaults{
		Window:         cfg.RateLimit.Window,
		MaxPoints:      cfg.RateLimit.MaxPointsPerHour,
		Cooldown:       cfg.RateLimit.DefaultCooldown,
		MaxPerInstance: cfg.RateLimit.MaxPerInstance,
	}, nil, logr)

	anomalies := service.NewAnomalyService(service.AnomalyConfig{
		MaxPointsPerEvent:       cfg.Anomaly.MaxPointsPerEvent,
		MaxPointsPerWindow:      cfg.Anomaly.MaxPointsPerWindow,
		RateWindow:              cfg.Anomaly.RateWindow,
		OutlierThreshold:        cfg.Anomaly.OutlierThreshold,
		MinEventsForAnalysis:    cfg.Anomaly.MinEventsForAnalysis,
		MaxDailyIncreasePercent: cfg.Anomaly.MaxDailyIncreasePercent,
		SchoolHoursStart:        cfg.Anomaly.SchoolHoursStart,
		SchoolHoursEnd:          cfg.Anomaly.SchoolHoursEnd,
	}, eventRepo, logr)

	normalization := service.NewNormalizationService(cfg.Normalization.TermLookback, logr)

	awardService := service.NewAwardService(scoring, limiter, anomalies, awardRepo, eventRepo, flagRepo, metrics, validate, logr)
	authService := service.NewAuthService(cfg.Accounts.Entries, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.Issuer, validate, logr)
	cacheService := service.NewCacheService(cacheRepo, metrics, cfg.Leaderboard.CacheTTL, logr, redisClient != nil)

	exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	leaderboard := service.NewLeaderboardService(awardRepo, cacheService, normalization, anomalies, flagRepo, exportStorage, signer, service.LeaderboardOptions{
		CacheTTL:      cfg.Leaderboard.CacheTTL,
		ExportWorkers: cfg.Exports.WorkerConcurrency,
		ExportRetries: cfg.Exports.WorkerRetries,
	}, logr)
	if cfg.Exports.Enabled {
		leaderboard.StartExports(context.Background())
		defer leaderboard.StopExports()
	}

	authHandler := handler.NewAuthHandler(authService)
	awardHandler := handler.NewAwardHandler(awardService)
	leaderboardHandler := handler.NewLeaderboardHandler(leaderboard)
	normalizationHandler := handler.NewNormalizationHandler(normalization, validate)
	anomalyHandler := handler.NewAnomalyHandler(anomalies, flagRepo)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/token", authHandler.Token)

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))

	points := protected.Group("/points")
	points.POST("/awards", middleware.RequireRoles(models.RoleAdmin, models.RoleService), awardHandler.Award)
	points.POST("/preview", awardHandler.Preview)
	points.GET("/awards", awardHandler.List)
	points.GET("/limits/:studentId", awardHandler.Limits)

	if cfg.Leaderboard.Enabled {
		board := protected.Group("/leaderboard")
		board.GET("", leaderboardHandler.Get)
		board.POST("/scan", middleware.RequireRoles(models.RoleAdmin), leaderboardHandler.Scan)
		if cfg.Exports.Enabled {
			board.POST("/exports", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), leaderboardHandler.StartExport)
			board.GET("/exports/:id", leaderboardHandler.ExportStatus)
			board.GET("/exports/download", leaderboardHandler.Download)
		}
	}

	norm := protected.Group("/normalization")
	norm.POST("/contexts", middleware.RequireRoles(models.RoleAdmin, models.RoleService), normalizationHandler.RegisterContext)
	norm.POST("/students", middleware.RequireRoles(models.RoleAdmin, models.RoleService), normalizationHandler.RegisterStudent)
	norm.GET("/contexts/:id/scores", normalizationHandler.ContextScores)

	flags := protected.Group("/anomalies")
	flags.POST("/check", middleware.RequireRoles(models.RoleAdmin, models.RoleService), anomalyHandler.Check)
	flags.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), anomalyHandler.List)
	flags.PATCH("/:id/resolve", middleware.RequireRoles(models.RoleAdmin), anomalyHandler.Resolve)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
