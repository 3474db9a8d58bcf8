// Package main runs the mock-interview platform HTTP server with WebSocket
// push and graceful shutdown.
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

	"github.com/prepview/backend/config"
	"github.com/prepview/backend/internal/auth"
	"github.com/prepview/backend/internal/interviews"
	"github.com/prepview/backend/internal/jobroles"
	"github.com/prepview/backend/internal/middleware"
	"github.com/prepview/backend/internal/realtime"
	"github.com/prepview/backend/internal/resumes"
	"github.com/prepview/backend/pkg/database"
	"github.com/prepview/backend/pkg/queue"
	"github.com/prepview/backend/pkg/redis"
	"github.com/prepview/backend/pkg/response"
	"github.com/prepview/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Cfg := storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		ResumesBucket:        cfg.AWS.ResumesBucket,
		ResponsesBucket:      cfg.AWS.ResponsesBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}
	s3Client, err := storage.NewS3(ctx, s3Cfg, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Job roles
	roleRepo := jobroles.NewRepository(pool)
	roleHandler := jobroles.NewHandler(roleRepo, logger)

	// Resumes
	resumeRepo := resumes.NewRepository(pool)
	resumeHandler := resumes.NewHandler(resumeRepo, s3Client, cfg.Interview.MaxResumeSizeBytes, logger)

	// Interviews
	interviewRepo := interviews.NewRepository(pool)
	interviewHandler := interviews.NewHandler(interviewRepo, resumeRepo, roleRepo, s3Client, jobQueue, logger)
	interviewHandler.SetNotifier(hub)

	jwtValidate := func(token string) (userID, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID.String(), claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	// Job roles (public list; candidates browse before logging in)
	router.GET("/api/job-roles", roleHandler.List)

	// Protected API (JWT required)
	api := router.Group("/api")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/job-roles", middleware.RequireRole("admin"), roleHandler.Create)

		api.POST("/resumes", resumeHandler.Upload)
		api.GET("/resumes", resumeHandler.List)

		api.POST("/interviews/start", interviewHandler.Start)
		api.GET("/interviews", interviewHandler.List)
		api.GET("/interviews/:id", interviewHandler.GetByID)
		api.GET("/interviews/:id/upload-url", interviewHandler.GenerateUploadURL)
		api.POST("/interviews/:id/confirm-upload", interviewHandler.ConfirmUpload)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate))

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
