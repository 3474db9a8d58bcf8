package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewQueue(client, nil), mr
}

func TestEnqueueDequeueRoundTrip(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	interviewID := uuid.New()
	if err := q.EnqueueQuestionGeneration(ctx, QuestionGenerationPayload{InterviewID: interviewID}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	job, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job == nil {
		t.Fatal("expected job, got nil")
	}
	if job.Type != JobTypeQuestionGeneration {
		t.Errorf("job type = %s, want %s", job.Type, JobTypeQuestionGeneration)
	}
	var payload QuestionGenerationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.InterviewID != interviewID {
		t.Errorf("interview id = %s, want %s", payload.InterviewID, interviewID)
	}
}

func TestDequeuePreservesOrder(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	first := uuid.New()
	second := uuid.New()
	if err := q.EnqueueFeedback(ctx, FeedbackPayload{AnswerID: first}); err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	if err := q.EnqueueFeedback(ctx, FeedbackPayload{AnswerID: second}); err != nil {
		t.Fatalf("enqueue second: %v", err)
	}

	for i, want := range []uuid.UUID{first, second} {
		job, err := q.Dequeue(ctx)
		if err != nil || job == nil {
			t.Fatalf("dequeue %d: job=%v err=%v", i, job, err)
		}
		var payload FeedbackPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if payload.AnswerID != want {
			t.Errorf("dequeue %d answer = %s, want %s", i, payload.AnswerID, want)
		}
	}
}

func TestRetryMovesToDLQAfterMaxAttempts(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	if err := q.EnqueueTranscription(ctx, TranscriptionPayload{AnswerID: uuid.New(), S3Key: "responses/a/b.webm"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	for attempt := 0; attempt < MaxRetries; attempt++ {
		job, err := q.Dequeue(ctx)
		if err != nil || job == nil {
			t.Fatalf("dequeue attempt %d: job=%v err=%v", attempt, job, err)
		}
		if err := q.Retry(ctx, job); err != nil {
			t.Fatalf("retry attempt %d: %v", attempt, err)
		}
	}

	if n, _ := mr.List(QueueInterviews); len(n) != 0 {
		t.Errorf("interviews queue should be drained, has %d entries", len(n))
	}
	dlq, err := mr.List(QueueDLQ)
	if err != nil {
		t.Fatalf("dlq list: %v", err)
	}
	if len(dlq) != 1 {
		t.Fatalf("dlq should hold 1 job, has %d", len(dlq))
	}
	var job Job
	if err := json.Unmarshal([]byte(dlq[0]), &job); err != nil {
		t.Fatalf("unmarshal dlq job: %v", err)
	}
	if job.Attempt != MaxRetries {
		t.Errorf("dlq job attempt = %d, want %d", job.Attempt, MaxRetries)
	}
}
