package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const questionPromptTemplate = `You are an experienced interviewer preparing a mock interview.

Generate exactly %d interview questions for a candidate applying for the role below,
grounded in the candidate's resume. Mix behavioral and technical questions appropriate
for the role and seniority.

ROLE: %s (%s)
ROLE DESCRIPTION:
%s

RESUME:
%s

Return ONLY a JSON array, no markdown, with this structure:
[{"text": "<the question>", "category": "<behavioral|technical>"}]`

const feedbackPromptTemplate = `You are an experienced interviewer evaluating a candidate's spoken answer
in a mock interview. Judge content, structure and relevance; ignore filler words
and transcription noise.

QUESTION:
%s

TRANSCRIBED ANSWER:
%s

Return ONLY a JSON object, no markdown, with this structure:
{"score": <0-100>, "feedback": "<3-5 sentences of concrete, actionable feedback>"}`

// GeneratedQuestion is one question produced by the model.
type GeneratedQuestion struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// AnswerFeedback is the model's evaluation of one transcribed answer.
type AnswerFeedback struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// Generator produces interview questions and answer feedback via a text model.
type Generator struct {
	model      TextModel
	maxRetries int
	logger     *zap.Logger
}

// NewGenerator creates a question/feedback generator.
func NewGenerator(model TextModel, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{model: model, maxRetries: 3, logger: logger}
}

// GenerateQuestions produces count questions for the role from the résumé text.
func (g *Generator) GenerateQuestions(ctx context.Context, resumeText, roleTitle, roleDescription, seniority string, count int) ([]GeneratedQuestion, error) {
	if count <= 0 {
		count = 5
	}
	prompt := fmt.Sprintf(questionPromptTemplate, count, roleTitle, seniority, roleDescription, truncate(resumeText, 16000))
	raw, err := GenerateTextWithRetry(ctx, g.model, prompt, 0.7, g.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("question generation: %w", err)
	}
	questions, err := ParseGeneratedQuestions(raw)
	if err != nil {
		return nil, err
	}
	if len(questions) > count {
		questions = questions[:count]
	}
	g.logger.Debug("questions generated", zap.Int("count", len(questions)), zap.String("role", roleTitle))
	return questions, nil
}

// ScoreAnswer evaluates a transcribed answer against its question.
func (g *Generator) ScoreAnswer(ctx context.Context, questionText, transcript string) (*AnswerFeedback, error) {
	prompt := fmt.Sprintf(feedbackPromptTemplate, questionText, truncate(transcript, 16000))
	raw, err := GenerateTextWithRetry(ctx, g.model, prompt, 0.3, g.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("answer scoring: %w", err)
	}
	return ParseAnswerFeedback(raw)
}

// ParseGeneratedQuestions decodes the model's question array, tolerating
// markdown code fences around the JSON.
func ParseGeneratedQuestions(raw string) ([]GeneratedQuestion, error) {
	var questions []GeneratedQuestion
	if err := json.Unmarshal([]byte(stripFences(raw)), &questions); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	var out []GeneratedQuestion
	for _, q := range questions {
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			continue
		}
		if q.Category != "behavioral" && q.Category != "technical" {
			q.Category = "general"
		}
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("model returned no usable questions")
	}
	return out, nil
}

// ParseAnswerFeedback decodes the model's feedback object and clamps the
// score into [0,100].
func ParseAnswerFeedback(raw string) (*AnswerFeedback, error) {
	var fb AnswerFeedback
	if err := json.Unmarshal([]byte(stripFences(raw)), &fb); err != nil {
		return nil, fmt.Errorf("parse feedback: %w", err)
	}
	if fb.Score < 0 {
		fb.Score = 0
	}
	if fb.Score > 100 {
		fb.Score = 100
	}
	fb.Feedback = strings.TrimSpace(fb.Feedback)
	return &fb, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
