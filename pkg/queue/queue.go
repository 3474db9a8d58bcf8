package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueInterviews is the Redis list key for interview pipeline jobs.
	QueueInterviews = "worker:interviews"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeQuestionGeneration JobType = "question_generation"
	JobTypeTranscription      JobType = "transcription"
	JobTypeFeedback           JobType = "feedback"
)

// QuestionGenerationPayload is the payload for question generation jobs.
type QuestionGenerationPayload struct {
	InterviewID uuid.UUID `json:"interview_id"`
}

// TranscriptionPayload is the payload for answer transcription jobs.
type TranscriptionPayload struct {
	InterviewID uuid.UUID `json:"interview_id"`
	QuestionID  uuid.UUID `json:"question_id"`
	AnswerID    uuid.UUID `json:"answer_id"`
	S3Key       string    `json:"s3_key"`
	ContentType string    `json:"content_type"`
}

// FeedbackPayload is the payload for answer scoring jobs.
type FeedbackPayload struct {
	InterviewID uuid.UUID `json:"interview_id"`
	AnswerID    uuid.UUID `json:"answer_id"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

func (q *Queue) enqueue(ctx context.Context, jobType JobType, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueueInterviews, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("job enqueued", zap.String("job_id", job.ID), zap.String("type", string(jobType)))
	return nil
}

// EnqueueQuestionGeneration enqueues a question generation job for a new interview.
func (q *Queue) EnqueueQuestionGeneration(ctx context.Context, payload QuestionGenerationPayload) error {
	return q.enqueue(ctx, JobTypeQuestionGeneration, payload)
}

// EnqueueTranscription enqueues a transcription job for a confirmed upload.
func (q *Queue) EnqueueTranscription(ctx context.Context, payload TranscriptionPayload) error {
	return q.enqueue(ctx, JobTypeTranscription, payload)
}

// EnqueueFeedback enqueues an answer scoring job.
func (q *Queue) EnqueueFeedback(ctx context.Context, payload FeedbackPayload) error {
	return q.enqueue(ctx, JobTypeFeedback, payload)
}

// Dequeue blocks until a job is available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, 0, QueueInterviews).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, QueueInterviews, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
