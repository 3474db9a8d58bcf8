package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// AvatarGenerator produces an AI-interviewer video speaking a question.
// Generation itself runs in an external TTS+video service; this interface
// only covers the request/poll handshake the worker needs.
type AvatarGenerator interface {
	GenerateAvatarVideo(ctx context.Context, questionText string) (videoURL string, err error)
}

// HTTPAvatarGenerator calls an external avatar-video service over HTTP.
type HTTPAvatarGenerator struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPAvatarGenerator creates an avatar generator client.
func NewHTTPAvatarGenerator(baseURL, apiKey string, logger *zap.Logger) *HTTPAvatarGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPAvatarGenerator{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 120 * time.Second},
		logger:  logger,
	}
}

type avatarRequest struct {
	Text string `json:"text"`
}

type avatarResponse struct {
	VideoURL string `json:"video_url"`
	Error    string `json:"error"`
}

// GenerateAvatarVideo submits the question text and returns the video URL.
func (g *HTTPAvatarGenerator) GenerateAvatarVideo(ctx context.Context, questionText string) (string, error) {
	body, err := json.Marshal(avatarRequest{Text: questionText})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/videos", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("avatar service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("avatar service status: %d", resp.StatusCode)
	}

	var out avatarResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode avatar response: %w", err)
	}
	if out.VideoURL == "" {
		return "", fmt.Errorf("avatar service returned no video url: %s", out.Error)
	}
	return out.VideoURL, nil
}
