// Package main is a small agent exercising the whole client path: login,
// permission check, answer recording and the presigned upload handshake.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prepview/backend/internal/auth"
	"github.com/prepview/backend/internal/models"
	"github.com/prepview/backend/pkg/capture"
	"github.com/prepview/backend/pkg/httpclient"
	"github.com/prepview/backend/pkg/upload"
)

func main() {
	var (
		apiURL      = flag.String("api", "http://localhost:8080", "API base URL")
		email       = flag.String("email", "", "account email")
		password    = flag.String("password", "", "account password")
		interviewID = flag.String("interview", "", "interview id (default: first in-progress interview)")
		mediaPath   = flag.String("media", "", "media file replayed as the fake camera")
		seconds     = flag.Int("seconds", 30, "max recording duration per answer")
	)
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if err := run(*apiURL, *email, *password, *interviewID, *mediaPath, *seconds, logger); err != nil {
		logger.Fatal("client failed", zap.Error(err))
	}
}

func run(apiURL, email, password, interviewID, mediaPath string, seconds int, logger *zap.Logger) error {
	ctx := context.Background()

	tokenPath := filepath.Join(os.TempDir(), "prepview-token")
	tokens := httpclient.NewFileTokenStore(tokenPath)
	api := httpclient.New(apiURL, tokens,
		httpclient.WithLogger(logger),
		httpclient.WithOnUnauthorized(func() {
			logger.Warn("session expired, log in again")
		}),
	)

	if email != "" {
		var tr auth.TokenResponse
		if err := api.Post(ctx, "/api/auth/login", auth.LoginRequest{Email: email, Password: password}, &tr); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		if err := api.SaveToken(tr.Token); err != nil {
			return err
		}
		logger.Info("logged in", zap.String("email", tr.User.Email))
	}

	iv, err := pickInterview(ctx, api, interviewID)
	if err != nil {
		return err
	}
	logger.Info("interview selected",
		zap.String("interview_id", iv.InterviewID.String()),
		zap.String("status", string(iv.Status)),
		zap.String("role", iv.JobRoleTitle))
	if iv.Status != models.InterviewStatusInProgress {
		return fmt.Errorf("interview is %s, answers can only be recorded in %s", iv.Status, models.InterviewStatusInProgress)
	}

	provider := &fileDeviceProvider{path: mediaPath}
	gateway := capture.NewPermissionGateway(provider)
	if result := gateway.State(); result.State != capture.PermissionGranted {
		return fmt.Errorf("%s", result.Message)
	}

	recorder := capture.NewRecorder(provider, allWebm{}, capture.NewTempFilePreviewStore(""))
	defer recorder.Close()
	coordinator := upload.NewCoordinator(api, upload.WithLogger(logger))

	for _, q := range iv.Questions {
		if q.Answered {
			continue
		}
		logger.Info("recording answer", zap.Int("seq", q.Seq), zap.String("question", q.Text))
		if err := recorder.Start(ctx, time.Duration(seconds)*time.Second); err != nil {
			return fmt.Errorf("start recording: %s", capture.FailureMessage(err))
		}
		artifact := <-recorder.Done()
		if artifact == nil {
			return fmt.Errorf("recording failed for question %d", q.Seq)
		}
		logger.Info("recorded",
			zap.Duration("duration", artifact.Duration),
			zap.String("mime", artifact.MimeType),
			zap.Int("bytes", len(artifact.Data)))

		ack, err := coordinator.UploadAnswer(ctx, iv.InterviewID, q.QuestionID, artifact)
		if err != nil {
			return fmt.Errorf("upload answer %d: %w", q.Seq, err)
		}
		logger.Info("answer confirmed", zap.Int("seq", q.Seq), zap.String("s3_key", ack.S3Key))
	}

	logger.Info("all questions answered, feedback will arrive when processing completes")
	return nil
}

// pickInterview loads the requested interview, or the caller's first
// in-progress one.
func pickInterview(ctx context.Context, api *httpclient.Client, id string) (*models.InterviewDTO, error) {
	if id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid interview id %q", id)
		}
		var dto models.InterviewDTO
		if err := api.Get(ctx, "/api/interviews/"+parsed.String(), &dto); err != nil {
			return nil, err
		}
		return &dto, nil
	}

	var list []models.Interview
	if err := api.Get(ctx, "/api/interviews", &list); err != nil {
		return nil, err
	}
	for _, iv := range list {
		if iv.Status == models.InterviewStatusInProgress {
			var dto models.InterviewDTO
			if err := api.Get(ctx, "/api/interviews/"+iv.ID.String(), &dto); err != nil {
				return nil, err
			}
			return &dto, nil
		}
	}
	return nil, fmt.Errorf("no in-progress interview found, start one first")
}

// allWebm reports webm support only, matching what the file provider replays.
type allWebm struct{}

func (allWebm) IsTypeSupported(mimeType string) bool {
	return mimeType == "video/webm" || mimeType == "video/webm;codecs=vp8,opus" || mimeType == "video/webm;codecs=vp9,opus"
}
