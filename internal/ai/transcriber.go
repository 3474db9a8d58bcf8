package ai

import (
	"context"
	"fmt"
	"io"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
)

// Transcriber converts a recorded answer's audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, contentType string) (string, error)
}

// SpeechTranscriber implements Transcriber using Google Cloud Speech-to-Text.
// Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
type SpeechTranscriber struct {
	client       *speech.Client
	languageCode string
	logger       *zap.Logger
}

// NewSpeechTranscriber creates a Speech-to-Text backed transcriber.
func NewSpeechTranscriber(ctx context.Context, languageCode string, logger *zap.Logger) (*SpeechTranscriber, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	if languageCode == "" {
		languageCode = "en-US"
	}
	return &SpeechTranscriber{client: client, languageCode: languageCode, logger: logger}, nil
}

// Close releases the underlying gRPC connection.
func (t *SpeechTranscriber) Close() error {
	return t.client.Close()
}

// Transcribe runs batch recognition over the answer audio and joins the
// final alternatives into one transcript.
func (t *SpeechTranscriber) Transcribe(ctx context.Context, audio io.Reader, contentType string) (string, error) {
	content, err := io.ReadAll(audio)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}

	resp, err := t.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        encodingFor(contentType),
			SampleRateHertz: 48000,
			LanguageCode:    t.languageCode,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: content},
		},
	})
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}

	var parts []string
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		parts = append(parts, result.Alternatives[0].Transcript)
	}
	transcript := strings.TrimSpace(strings.Join(parts, " "))
	t.logger.Debug("transcription finished", zap.Int("bytes", len(content)), zap.Int("results", len(resp.Results)))
	return transcript, nil
}

func encodingFor(contentType string) speechpb.RecognitionConfig_AudioEncoding {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "webm"):
		return speechpb.RecognitionConfig_WEBM_OPUS
	case strings.Contains(ct, "ogg"):
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}
