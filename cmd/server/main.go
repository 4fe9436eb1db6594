// Package main runs the chapter platform HTTP server with WebSocket feed and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chapterhub/backend/config"
	"github.com/chapterhub/backend/internal/activity"
	"github.com/chapterhub/backend/internal/announcements"
	"github.com/chapterhub/backend/internal/auth"
	"github.com/chapterhub/backend/internal/authz"
	"github.com/chapterhub/backend/internal/chapters"
	"github.com/chapterhub/backend/internal/comments"
	"github.com/chapterhub/backend/internal/dashboard"
	"github.com/chapterhub/backend/internal/events"
	"github.com/chapterhub/backend/internal/middleware"
	"github.com/chapterhub/backend/internal/promotions"
	"github.com/chapterhub/backend/internal/realtime"
	"github.com/chapterhub/backend/internal/regions"
	"github.com/chapterhub/backend/internal/resources"
	"github.com/chapterhub/backend/internal/users"
	"github.com/chapterhub/backend/pkg/database"
	"github.com/chapterhub/backend/pkg/queue"
	"github.com/chapterhub/backend/pkg/redis"
	"github.com/chapterhub/backend/pkg/response"
	"github.com/chapterhub/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	gin.SetMode(cfg.Server.GinMode)

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{MaxConns: cfg.Database.MaxConns}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var objects resources.ObjectStore
	if cfg.AWS.S3Enabled() {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ResourcesBucket:      cfg.AWS.ResourcesBucket,
			Endpoint:             cfg.AWS.Endpoint,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			objects = s3Client
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	recorder := activity.NewRecorder(jobQueue, logger)
	activityRepo := activity.NewRepository(pool)

	// Authorization core
	chapterRepo := chapters.NewRepository(pool)
	evaluator := authz.NewEvaluator(chapterRepo)
	resolver := authz.NewResolver(chapterRepo)
	promoter := authz.NewPromoter(promotions.NewRepository(pool))
	guards := middleware.NewGuards(evaluator, logger)

	// Accounts
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, recorder, logger)
	userHandler := users.NewHandler(authRepo, chapterRepo, logger)

	// Organisation structure
	regionHandler := regions.NewHandler(regions.NewRepository(pool), chapterRepo, logger)
	chapterHandler := chapters.NewHandler(chapterRepo, evaluator, activityRepo, recorder, logger)
	promotionHandler := promotions.NewHandler(promoter, recorder, logger)

	// Scoped content
	eventRepo := events.NewRepository(pool, events.EventKind)
	trainingRepo := events.NewRepository(pool, events.TrainingKind)
	announcementRepo := announcements.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, evaluator, resolver, hub, recorder, logger)
	trainingHandler := events.NewHandler(trainingRepo, evaluator, resolver, hub, recorder, logger)
	announcementHandler := announcements.NewHandler(announcementRepo, evaluator, resolver, hub, recorder, logger)
	commentHandler := comments.NewHandler(comments.NewRepository(pool), evaluator, eventRepo.Content, announcementRepo.Content, resolver, logger)

	dashboardHandler := dashboard.NewHandler(eventRepo, trainingRepo, chapterRepo, resolver, dashboard.NewRepository(pool), authRepo, logger)
	resourceHandler := resources.NewHandler(resources.NewRepository(pool), objects, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok", "ws_global_clients": hub.ClientCount(realtime.ChannelGlobal)})
	})

	// Public
	router.GET("/public/chapters", chapterHandler.PublicList)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService, authRepo, logger))
	{
		api.GET("/auth/me", userHandler.Me)
		api.GET("/users/search", userHandler.Search)
		api.POST("/promote/:userId", promotionHandler.Promote)

		regionHandler.Routes(api.Group("/regions"))
		chapterHandler.Routes(api.Group("/chapters"), guards)
		eventHandler.Routes(api.Group("/events"), guards)
		trainingHandler.Routes(api.Group("/trainings"), guards)
		announcementHandler.Routes(api.Group("/announcements"), guards)
		api.GET("/comments", commentHandler.List)
		api.POST("/comments", commentHandler.Create)
		dashboardHandler.Routes(api)
		resourceHandler.Routes(api.Group("/resources"))
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, middleware.SubjectFromToken(jwtService, authRepo), resolver))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
