package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prepview/backend/internal/ai"
	"github.com/prepview/backend/internal/interviews"
	"github.com/prepview/backend/internal/models"
	"github.com/prepview/backend/pkg/queue"
)

// InterviewStore is the persistence surface the processor needs. Satisfied by
// *interviews.Repository.
type InterviewStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Interview, error)
	Transition(ctx context.Context, id uuid.UUID, from, to models.InterviewStatus) error
	SetOverallScore(ctx context.Context, id uuid.UUID, score float64) error
	CreateQuestions(ctx context.Context, interviewID uuid.UUID, questions []models.Question) error
	ListQuestions(ctx context.Context, interviewID uuid.UUID) ([]models.Question, error)
	GetQuestion(ctx context.Context, interviewID, questionID uuid.UUID) (*models.Question, error)
	UpdateQuestionAvatar(ctx context.Context, questionID uuid.UUID, videoURL, status string) error
	GetAnswer(ctx context.Context, answerID uuid.UUID) (*models.Answer, error)
	UpdateAnswerTranscript(ctx context.Context, answerID uuid.UUID, transcript string) error
	UpdateAnswerScore(ctx context.Context, answerID uuid.UUID, score float64, feedback string) error
	GetProgress(ctx context.Context, interviewID uuid.UUID) (interviews.Progress, error)
	AverageScore(ctx context.Context, interviewID uuid.UUID) (float64, error)
}

// ResumeStore loads résumés for question generation. Satisfied by *resumes.Repository.
type ResumeStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Resume, error)
}

// RoleStore loads job roles for question generation. Satisfied by *jobroles.Repository.
type RoleStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.JobRole, error)
}

// QuestionGenerator produces questions and answer feedback. Implemented by
// *ai.Generator; tests use a fake.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, resumeText, roleTitle, roleDescription, seniority string, count int) ([]ai.GeneratedQuestion, error)
	ScoreAnswer(ctx context.Context, questionText, transcript string) (*ai.AnswerFeedback, error)
}

// ObjectStore fetches uploaded answer objects. Implemented by *storage.S3.
type ObjectStore interface {
	GetObjectStream(ctx context.Context, bucket, key string) (io.ReadCloser, string, error)
	ResponsesBucket() string
}

// StatusNotifier pushes interview status changes to connected clients.
type StatusNotifier interface {
	NotifyInterviewStatus(userID, interviewID uuid.UUID, status models.InterviewStatus)
}

// Processor executes interview pipeline jobs: question generation,
// transcription and feedback scoring.
type Processor struct {
	ivRepo        InterviewStore
	resumeRepo    ResumeStore
	roleRepo      RoleStore
	generator     QuestionGenerator
	transcriber   ai.Transcriber     // optional; nil stores empty transcripts
	avatar        ai.AvatarGenerator // optional; nil skips the avatar step
	store         ObjectStore
	queue         *queue.Queue
	notifier      StatusNotifier
	questionCount int
	logger        *zap.Logger
}

// NewProcessor creates an interview pipeline processor.
func NewProcessor(ivRepo InterviewStore, resumeRepo ResumeStore, roleRepo RoleStore,
	generator QuestionGenerator, store ObjectStore, q *queue.Queue, questionCount int, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if questionCount <= 0 {
		questionCount = 5
	}
	return &Processor{
		ivRepo:        ivRepo,
		resumeRepo:    resumeRepo,
		roleRepo:      roleRepo,
		generator:     generator,
		store:         store,
		queue:         q,
		questionCount: questionCount,
		logger:        logger,
	}
}

// SetTranscriber sets the optional speech-to-text backend.
func (p *Processor) SetTranscriber(t ai.Transcriber) { p.transcriber = t }

// SetAvatarGenerator sets the optional avatar-video service client.
func (p *Processor) SetAvatarGenerator(g ai.AvatarGenerator) { p.avatar = g }

// SetNotifier sets the optional realtime status notifier.
func (p *Processor) SetNotifier(n StatusNotifier) { p.notifier = n }

func (p *Processor) notify(userID, interviewID uuid.UUID, status models.InterviewStatus) {
	if p.notifier != nil {
		p.notifier.NotifyInterviewStatus(userID, interviewID, status)
	}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeQuestionGeneration:
		var payload queue.QuestionGenerationPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.processQuestionGeneration(ctx, payload)
	case queue.JobTypeTranscription:
		var payload queue.TranscriptionPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.processTranscription(ctx, payload)
	case queue.JobTypeFeedback:
		var payload queue.FeedbackPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.processFeedback(ctx, payload)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// processQuestionGeneration prepares a new interview. The job is retried on
// transient failure, so every step tolerates partial prior progress: questions
// already persisted are kept, a GENERATING_VIDEOS interview resumes at the
// avatar step instead of being skipped.
func (p *Processor) processQuestionGeneration(ctx context.Context, payload queue.QuestionGenerationPayload) error {
	iv, err := p.ivRepo.GetByID(ctx, payload.InterviewID)
	if err != nil {
		return fmt.Errorf("interview not found: %s", payload.InterviewID)
	}
	switch iv.Status {
	case models.InterviewStatusCreated, models.InterviewStatusGeneratingVideos:
	default:
		p.logger.Info("question generation skipped, interview already advanced",
			zap.String("interview_id", iv.ID.String()), zap.String("status", string(iv.Status)))
		return nil
	}

	if iv.Status == models.InterviewStatusCreated {
		existing, err := p.ivRepo.ListQuestions(ctx, iv.ID)
		if err != nil {
			return fmt.Errorf("list questions: %w", err)
		}
		if len(existing) == 0 {
			if err := p.generateQuestions(ctx, iv); err != nil {
				return err
			}
		}
		if err := p.ivRepo.Transition(ctx, iv.ID, models.InterviewStatusCreated, models.InterviewStatusGeneratingVideos); err != nil {
			return err
		}
		p.notify(iv.UserID, iv.ID, models.InterviewStatusGeneratingVideos)
	}

	if p.avatar != nil {
		p.generateAvatars(ctx, iv.ID)
	}

	if err := p.ivRepo.Transition(ctx, iv.ID, models.InterviewStatusGeneratingVideos, models.InterviewStatusInProgress); err != nil {
		return err
	}
	p.notify(iv.UserID, iv.ID, models.InterviewStatusInProgress)
	p.logger.Info("interview prepared", zap.String("interview_id", iv.ID.String()))
	return nil
}

// generateQuestions produces and persists the question set. Unrecoverable
// failures (missing résumé or role, model returns nothing usable) mark the
// interview FAILED.
func (p *Processor) generateQuestions(ctx context.Context, iv *models.Interview) error {
	resume, err := p.resumeRepo.GetByID(ctx, iv.ResumeID)
	if err != nil {
		return p.fail(ctx, iv, fmt.Errorf("load resume: %w", err))
	}
	role, err := p.roleRepo.GetByID(ctx, iv.JobRoleID)
	if err != nil {
		return p.fail(ctx, iv, fmt.Errorf("load job role: %w", err))
	}

	generated, err := p.generator.GenerateQuestions(ctx, resume.Text, role.Title, role.Description, role.Seniority, p.questionCount)
	if err != nil {
		return p.fail(ctx, iv, fmt.Errorf("generate questions: %w", err))
	}

	avatarStatus := models.AvatarStatusSkipped
	if p.avatar != nil {
		avatarStatus = models.AvatarStatusPending
	}
	questions := make([]models.Question, len(generated))
	for i, g := range generated {
		questions[i] = models.Question{
			Seq:          i + 1,
			Text:         g.Text,
			Category:     g.Category,
			AvatarStatus: avatarStatus,
		}
	}
	if err := p.ivRepo.CreateQuestions(ctx, iv.ID, questions); err != nil {
		return p.fail(ctx, iv, fmt.Errorf("persist questions: %w", err))
	}
	return nil
}

const (
	// avatarConcurrency bounds parallel requests to the avatar service.
	avatarConcurrency = 3
	// avatarStepTimeout caps the whole avatar step for one interview so a
	// slow external service cannot hold the worker loop indefinitely.
	avatarStepTimeout = 5 * time.Minute
)

// generateAvatars requests an avatar video per question, fanning out across
// questions. Avatar failures are recorded but never block the interview;
// questions with a result from a prior attempt are left alone.
func (p *Processor) generateAvatars(ctx context.Context, interviewID uuid.UUID) {
	questions, err := p.ivRepo.ListQuestions(ctx, interviewID)
	if err != nil {
		p.logger.Warn("list questions for avatars failed", zap.Error(err))
		return
	}

	genCtx, cancel := context.WithTimeout(ctx, avatarStepTimeout)
	defer cancel()

	sem := make(chan struct{}, avatarConcurrency)
	var wg sync.WaitGroup
	for _, q := range questions {
		if q.AvatarStatus == models.AvatarStatusReady || q.AvatarStatus == models.AvatarStatusSkipped {
			continue
		}
		wg.Add(1)
		go func(q models.Question) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			url, err := p.avatar.GenerateAvatarVideo(genCtx, q.Text)
			if err != nil {
				p.logger.Warn("avatar generation failed", zap.Error(err), zap.String("question_id", q.ID.String()))
				// Status writes use the parent context so a step timeout
				// still records the failure.
				_ = p.ivRepo.UpdateQuestionAvatar(ctx, q.ID, "", models.AvatarStatusFailed)
				return
			}
			_ = p.ivRepo.UpdateQuestionAvatar(ctx, q.ID, url, models.AvatarStatusReady)
		}(q)
	}
	wg.Wait()
}

func (p *Processor) processTranscription(ctx context.Context, payload queue.TranscriptionPayload) error {
	answer, err := p.ivRepo.GetAnswer(ctx, payload.AnswerID)
	if err != nil {
		return fmt.Errorf("answer not found: %s", payload.AnswerID)
	}
	if answer.Status != models.AnswerStatusUploaded {
		p.logger.Info("transcription skipped, answer already advanced",
			zap.String("answer_id", answer.ID.String()), zap.String("status", answer.Status))
		return nil
	}

	transcript := ""
	if p.transcriber != nil {
		body, _, err := p.store.GetObjectStream(ctx, p.store.ResponsesBucket(), answer.S3Key)
		if err != nil {
			return fmt.Errorf("fetch answer object: %w", err)
		}
		transcript, err = p.transcriber.Transcribe(ctx, body, answer.ContentType)
		body.Close()
		if err != nil {
			return fmt.Errorf("transcribe: %w", err)
		}
	}

	if err := p.ivRepo.UpdateAnswerTranscript(ctx, answer.ID, transcript); err != nil {
		return fmt.Errorf("store transcript: %w", err)
	}
	return p.queue.EnqueueFeedback(ctx, queue.FeedbackPayload{
		InterviewID: payload.InterviewID,
		AnswerID:    answer.ID,
	})
}

func (p *Processor) processFeedback(ctx context.Context, payload queue.FeedbackPayload) error {
	answer, err := p.ivRepo.GetAnswer(ctx, payload.AnswerID)
	if err != nil {
		return fmt.Errorf("answer not found: %s", payload.AnswerID)
	}
	if answer.Status == models.AnswerStatusScored {
		return nil
	}
	question, err := p.ivRepo.GetQuestion(ctx, answer.InterviewID, answer.QuestionID)
	if err != nil {
		return fmt.Errorf("question not found: %w", err)
	}

	transcript := answer.Transcript
	if transcript == "" {
		transcript = "(no transcript available)"
	}
	fb, err := p.generator.ScoreAnswer(ctx, question.Text, transcript)
	if err != nil {
		return fmt.Errorf("score answer: %w", err)
	}
	if err := p.ivRepo.UpdateAnswerScore(ctx, answer.ID, fb.Score, fb.Feedback); err != nil {
		return fmt.Errorf("store score: %w", err)
	}

	progress, err := p.ivRepo.GetProgress(ctx, answer.InterviewID)
	if err != nil {
		return err
	}
	if progress.Questions == 0 || progress.Scored < progress.Questions {
		return nil
	}

	avg, err := p.ivRepo.AverageScore(ctx, answer.InterviewID)
	if err != nil {
		return err
	}
	if err := p.ivRepo.SetOverallScore(ctx, answer.InterviewID, avg); err != nil {
		return err
	}
	if err := p.ivRepo.Transition(ctx, answer.InterviewID, models.InterviewStatusProcessing, models.InterviewStatusCompleted); err != nil {
		return err
	}
	iv, err := p.ivRepo.GetByID(ctx, answer.InterviewID)
	if err == nil {
		p.notify(iv.UserID, iv.ID, models.InterviewStatusCompleted)
	}
	p.logger.Info("interview completed", zap.String("interview_id", answer.InterviewID.String()), zap.Float64("overall_score", avg))
	return nil
}

// fail marks the interview FAILED and returns the original error.
func (p *Processor) fail(ctx context.Context, iv *models.Interview, cause error) error {
	if err := p.ivRepo.Transition(ctx, iv.ID, iv.Status, models.InterviewStatusFailed); err == nil {
		p.notify(iv.UserID, iv.ID, models.InterviewStatusFailed)
	}
	p.logger.Error("interview pipeline failed", zap.Error(cause), zap.String("interview_id", iv.ID.String()))
	return cause
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("interview worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}
