package ai

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// TextModel generates text from a prompt. Satisfied by the Gemini client;
// tests substitute a fake.
type TextModel interface {
	GenerateText(ctx context.Context, prompt string, temperature float32) (string, error)
}

// GeminiModel implements TextModel using the Gemini API.
type GeminiModel struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiModel creates a Gemini-backed text model.
func NewGeminiModel(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiModel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiModel{client: client, model: model, logger: logger}, nil
}

// GenerateText sends one prompt and returns the response text.
func (g *GeminiModel) GenerateText(ctx context.Context, prompt string, temperature float32) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: 4096,
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("empty response")
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("no text content in response")
	}
	return text, nil
}

// GenerateTextWithRetry retries transient generation failures.
func GenerateTextWithRetry(ctx context.Context, m TextModel, prompt string, temperature float32, maxRetries int) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		result, err := m.GenerateText(ctx, prompt, temperature)
		if err == nil {
			return result, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}
	}
	return "", fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}
