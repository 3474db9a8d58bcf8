package upload

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prepview/backend/internal/models"
	"github.com/prepview/backend/pkg/capture"
)

// API is the authenticated request surface the coordinator needs. Satisfied
// by *httpclient.Client.
type API interface {
	Get(ctx context.Context, path string, out interface{}) error
	Post(ctx context.Context, path string, body, out interface{}) error
}

// ticket is one single-use presigned upload grant with a local expiry clock.
type ticket struct {
	uploadURL  string
	s3Key      string
	expiresIn  time.Duration
	obtainedAt time.Time
}

func (t *ticket) expired(now time.Time) bool {
	return !now.Before(t.obtainedAt.Add(t.expiresIn))
}

// Coordinator drives the upload handshake: fetch a presigned ticket, PUT the
// artifact straight to storage, confirm with the API. An expired or rejected
// ticket is discarded and re-requested at most once; a stale URL is never
// retried.
type Coordinator struct {
	api     API
	storage *http.Client
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithStorageClient overrides the *http.Client used for the direct PUT.
func WithStorageClient(h *http.Client) Option {
	return func(c *Coordinator) { c.storage = h }
}

// WithClock overrides the expiry clock. Tests use a fake.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithLogger sets the coordinator logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator creates an upload coordinator over an authenticated API
// client.
func NewCoordinator(api API, opts ...Option) *Coordinator {
	c := &Coordinator{
		api:     api,
		storage: &http.Client{Timeout: 5 * time.Minute},
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) fetchTicket(ctx context.Context, interviewID, questionID uuid.UUID, contentType string) (*ticket, error) {
	var resp models.PresignedUrlResponse
	query := url.Values{"questionId": {questionID.String()}, "contentType": {contentType}}
	path := fmt.Sprintf("/api/interviews/%s/upload-url?%s", interviewID, query.Encode())
	if err := c.api.Get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("fetch upload ticket: %w", err)
	}
	return &ticket{
		uploadURL:  resp.UploadURL,
		s3Key:      resp.S3Key,
		expiresIn:  time.Duration(resp.ExpiresInSeconds) * time.Second,
		obtainedAt: c.now(),
	}, nil
}

// put sends the artifact bytes to the presigned URL. No Authorization header:
// the URL itself is the capability.
func (c *Coordinator) put(ctx context.Context, t *ticket, artifact *capture.Artifact) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.uploadURL, bytes.NewReader(artifact.Data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", artifact.MimeType)
	resp, err := c.storage.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// UploadAnswer uploads a finished recording for one question and confirms it
// with the API. Returns the server's acknowledgment.
func (c *Coordinator) UploadAnswer(ctx context.Context, interviewID, questionID uuid.UUID, artifact *capture.Artifact) (*models.ConfirmUploadResponse, error) {
	if artifact == nil || len(artifact.Data) == 0 {
		return nil, fmt.Errorf("nothing to upload")
	}

	t, err := c.fetchTicket(ctx, interviewID, questionID, artifact.MimeType)
	if err != nil {
		return nil, err
	}

	refreshed := false
	for {
		if t.expired(c.now()) {
			if refreshed {
				return nil, fmt.Errorf("upload ticket expired twice")
			}
			c.logger.Debug("ticket expired locally, requesting a fresh one", zap.String("s3_key", t.s3Key))
			refreshed = true
			t, err = c.fetchTicket(ctx, interviewID, questionID, artifact.MimeType)
			if err != nil {
				return nil, err
			}
			continue
		}

		status, err := c.put(ctx, t, artifact)
		if err != nil {
			return nil, fmt.Errorf("storage upload: %w", err)
		}
		if status == http.StatusForbidden {
			// storage rejected the signature; the ticket is stale
			if refreshed {
				return nil, fmt.Errorf("storage rejected a fresh ticket (status %d)", status)
			}
			c.logger.Debug("ticket rejected by storage, requesting a fresh one", zap.String("s3_key", t.s3Key))
			refreshed = true
			t, err = c.fetchTicket(ctx, interviewID, questionID, artifact.MimeType)
			if err != nil {
				return nil, err
			}
			continue
		}
		if status < 200 || status > 299 {
			return nil, fmt.Errorf("storage upload failed with status %d", status)
		}
		break
	}

	var ack models.ConfirmUploadResponse
	err = c.api.Post(ctx, fmt.Sprintf("/api/interviews/%s/confirm-upload", interviewID), models.ConfirmUploadRequest{
		QuestionID:    questionID,
		S3Key:         t.s3Key,
		ContentType:   artifact.MimeType,
		VideoDuration: int(artifact.Duration / time.Second),
	}, &ack)
	if err != nil {
		return nil, fmt.Errorf("confirm upload: %w", err)
	}
	return &ack, nil
}
