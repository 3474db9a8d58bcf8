// Package main runs the background interview pipeline worker: question
// generation, answer transcription and feedback scoring.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/prepview/backend/config"
	"github.com/prepview/backend/internal/ai"
	"github.com/prepview/backend/internal/interviews"
	"github.com/prepview/backend/internal/jobroles"
	"github.com/prepview/backend/internal/realtime"
	"github.com/prepview/backend/internal/resumes"
	"github.com/prepview/backend/internal/worker"
	"github.com/prepview/backend/pkg/database"
	"github.com/prepview/backend/pkg/queue"
	"github.com/prepview/backend/pkg/redis"
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

	model, err := ai.NewGeminiModel(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
	if err != nil {
		logger.Fatal("gemini", zap.Error(err))
	}
	generator := ai.NewGenerator(model, logger)

	interviewRepo := interviews.NewRepository(pool)
	resumeRepo := resumes.NewRepository(pool)
	roleRepo := jobroles.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	processor := worker.NewProcessor(interviewRepo, resumeRepo, roleRepo, generator,
		s3Client, jobQueue, cfg.Interview.QuestionCount, logger)

	if cfg.Speech.Enabled {
		transcriber, err := ai.NewSpeechTranscriber(ctx, cfg.Speech.LanguageCode, logger)
		if err != nil {
			logger.Fatal("speech", zap.Error(err))
		}
		defer transcriber.Close()
		processor.SetTranscriber(transcriber)
	} else {
		logger.Warn("speech transcription disabled, answers will be scored without transcripts")
	}

	if cfg.Avatar.BaseURL != "" {
		processor.SetAvatarGenerator(ai.NewHTTPAvatarGenerator(cfg.Avatar.BaseURL, cfg.Avatar.APIKey, logger))
	}

	// Status pushes reach connected clients through each API instance's
	// Redis subscription.
	processor.SetNotifier(realtime.NewHub(logger, realtime.NewRedisPubSub(rdb.Client, logger), nil))

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
