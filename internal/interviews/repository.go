package interviews

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prepview/backend/internal/models"
)

// ErrNotFound is returned when an interview, question or answer does not exist.
var ErrNotFound = errors.New("not found")

// Repository handles interview persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an interviews repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new interview in CREATED status.
func (r *Repository) Create(ctx context.Context, iv *models.Interview) error {
	const q = `INSERT INTO interviews (user_id, resume_id, job_role_id, type, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	iv.Status = models.InterviewStatusCreated
	return r.pool.QueryRow(ctx, q, iv.UserID, iv.ResumeID, iv.JobRoleID, iv.Type, string(iv.Status)).
		Scan(&iv.ID, &iv.CreatedAt, &iv.UpdatedAt)
}

const interviewColumns = `id, user_id, resume_id, job_role_id, type, status, overall_score, started_at, completed_at, created_at, updated_at`

func scanInterview(row pgx.Row) (*models.Interview, error) {
	var iv models.Interview
	err := row.Scan(&iv.ID, &iv.UserID, &iv.ResumeID, &iv.JobRoleID, &iv.Type, &iv.Status,
		&iv.OverallScore, &iv.StartedAt, &iv.CompletedAt, &iv.CreatedAt, &iv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &iv, nil
}

// GetByID returns an interview by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Interview, error) {
	return scanInterview(r.pool.QueryRow(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE id = $1`, id))
}

// ListByUser returns a user's interviews, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Interview, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+interviewColumns+` FROM interviews WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Interview
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *iv)
	}
	return list, rows.Err()
}

// Transition moves an interview from one status to another. The guard is
// enforced both in code and in SQL (WHERE status = from), so a concurrent
// identical trigger is a no-op and a conflicting one errors.
func (r *Repository) Transition(ctx context.Context, id uuid.UUID, from, to models.InterviewStatus) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	q := `UPDATE interviews SET status = $1, updated_at = NOW()`
	switch to {
	case models.InterviewStatusInProgress:
		q += `, started_at = COALESCE(started_at, NOW())`
	case models.InterviewStatusCompleted, models.InterviewStatusFailed:
		q += `, completed_at = NOW()`
	}
	q += ` WHERE id = $2 AND status = $3`
	tag, err := r.pool.Exec(ctx, q, string(to), id, string(from))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Lost the race or the row is elsewhere in the lifecycle; report
		// success if the row already holds the target status.
		current, gerr := r.GetByID(ctx, id)
		if gerr == nil && current.Status == to {
			return nil
		}
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// SetOverallScore stores the aggregate score for a finished interview.
func (r *Repository) SetOverallScore(ctx context.Context, id uuid.UUID, score float64) error {
	_, err := r.pool.Exec(ctx, `UPDATE interviews SET overall_score = $1, updated_at = NOW() WHERE id = $2`, score, id)
	return err
}

// CreateQuestions inserts generated questions for an interview in one batch.
func (r *Repository) CreateQuestions(ctx context.Context, interviewID uuid.UUID, questions []models.Question) error {
	batch := &pgx.Batch{}
	for i := range questions {
		questions[i].InterviewID = interviewID
		batch.Queue(`INSERT INTO questions (interview_id, seq, text, category, avatar_status) VALUES ($1, $2, $3, $4, $5)`,
			interviewID, questions[i].Seq, questions[i].Text, questions[i].Category, questions[i].AvatarStatus)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range questions {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListQuestions returns an interview's questions in sequence order.
func (r *Repository) ListQuestions(ctx context.Context, interviewID uuid.UUID) ([]models.Question, error) {
	const q = `SELECT id, interview_id, seq, text, category, COALESCE(avatar_video_url,''), avatar_status, created_at
		FROM questions WHERE interview_id = $1 ORDER BY seq`
	rows, err := r.pool.Query(ctx, q, interviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Question
	for rows.Next() {
		var qu models.Question
		if err := rows.Scan(&qu.ID, &qu.InterviewID, &qu.Seq, &qu.Text, &qu.Category, &qu.AvatarVideoURL, &qu.AvatarStatus, &qu.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, qu)
	}
	return list, rows.Err()
}

// GetQuestion returns a question belonging to the given interview.
func (r *Repository) GetQuestion(ctx context.Context, interviewID, questionID uuid.UUID) (*models.Question, error) {
	const q = `SELECT id, interview_id, seq, text, category, COALESCE(avatar_video_url,''), avatar_status, created_at
		FROM questions WHERE id = $1 AND interview_id = $2`
	var qu models.Question
	err := r.pool.QueryRow(ctx, q, questionID, interviewID).
		Scan(&qu.ID, &qu.InterviewID, &qu.Seq, &qu.Text, &qu.Category, &qu.AvatarVideoURL, &qu.AvatarStatus, &qu.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &qu, nil
}

// UpdateQuestionAvatar sets the avatar video URL and status for a question.
func (r *Repository) UpdateQuestionAvatar(ctx context.Context, questionID uuid.UUID, videoURL, status string) error {
	_, err := r.pool.Exec(ctx, `UPDATE questions SET avatar_video_url = NULLIF($1,''), avatar_status = $2 WHERE id = $3`,
		videoURL, status, questionID)
	return err
}

// UpsertAnswer records a confirmed upload for a question. Re-confirming the
// same question replaces the previous object reference and resets the
// pipeline state to uploaded.
func (r *Repository) UpsertAnswer(ctx context.Context, a *models.Answer) error {
	const q = `INSERT INTO answers (interview_id, question_id, s3_key, content_type, duration_seconds, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (interview_id, question_id) DO UPDATE SET
			s3_key = EXCLUDED.s3_key,
			content_type = EXCLUDED.content_type,
			duration_seconds = EXCLUDED.duration_seconds,
			status = EXCLUDED.status,
			transcript = NULL,
			score = NULL,
			feedback = NULL,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`
	a.Status = models.AnswerStatusUploaded
	return r.pool.QueryRow(ctx, q, a.InterviewID, a.QuestionID, a.S3Key, a.ContentType, a.DurationSeconds, a.Status).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// GetAnswer returns an answer by ID.
func (r *Repository) GetAnswer(ctx context.Context, id uuid.UUID) (*models.Answer, error) {
	const q = `SELECT id, interview_id, question_id, s3_key, content_type, duration_seconds,
		COALESCE(transcript,''), score, COALESCE(feedback,''), status, created_at, updated_at
		FROM answers WHERE id = $1`
	var a models.Answer
	err := r.pool.QueryRow(ctx, q, id).Scan(&a.ID, &a.InterviewID, &a.QuestionID, &a.S3Key, &a.ContentType,
		&a.DurationSeconds, &a.Transcript, &a.Score, &a.Feedback, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ListAnswers returns all answers for an interview.
func (r *Repository) ListAnswers(ctx context.Context, interviewID uuid.UUID) ([]models.Answer, error) {
	const q = `SELECT id, interview_id, question_id, s3_key, content_type, duration_seconds,
		COALESCE(transcript,''), score, COALESCE(feedback,''), status, created_at, updated_at
		FROM answers WHERE interview_id = $1`
	rows, err := r.pool.Query(ctx, q, interviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Answer
	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(&a.ID, &a.InterviewID, &a.QuestionID, &a.S3Key, &a.ContentType,
			&a.DurationSeconds, &a.Transcript, &a.Score, &a.Feedback, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// UpdateAnswerTranscript stores the transcription result.
func (r *Repository) UpdateAnswerTranscript(ctx context.Context, id uuid.UUID, transcript string) error {
	_, err := r.pool.Exec(ctx, `UPDATE answers SET transcript = $1, status = $2, updated_at = NOW() WHERE id = $3`,
		transcript, models.AnswerStatusTranscribed, id)
	return err
}

// UpdateAnswerScore stores the feedback result.
func (r *Repository) UpdateAnswerScore(ctx context.Context, id uuid.UUID, score float64, feedback string) error {
	_, err := r.pool.Exec(ctx, `UPDATE answers SET score = $1, feedback = $2, status = $3, updated_at = NOW() WHERE id = $4`,
		score, feedback, models.AnswerStatusScored, id)
	return err
}

// MarkAnswerFailed records a pipeline failure for an answer.
func (r *Repository) MarkAnswerFailed(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE answers SET status = $1, updated_at = NOW() WHERE id = $2`,
		models.AnswerStatusFailed, id)
	return err
}

// Progress reports how many questions an interview has and how many have
// uploaded or scored answers; drives the IN_PROGRESS -> PROCESSING and
// PROCESSING -> COMPLETED transitions.
type Progress struct {
	Questions int
	Uploaded  int
	Scored    int
}

// GetProgress returns answer counts for an interview.
func (r *Repository) GetProgress(ctx context.Context, interviewID uuid.UUID) (Progress, error) {
	const q = `SELECT
		(SELECT COUNT(*) FROM questions WHERE interview_id = $1),
		(SELECT COUNT(*) FROM answers WHERE interview_id = $1),
		(SELECT COUNT(*) FROM answers WHERE interview_id = $1 AND status = 'scored')`
	var p Progress
	err := r.pool.QueryRow(ctx, q, interviewID).Scan(&p.Questions, &p.Uploaded, &p.Scored)
	return p, err
}

// AverageScore returns the mean answer score for an interview.
func (r *Repository) AverageScore(ctx context.Context, interviewID uuid.UUID) (float64, error) {
	var avg *float64
	err := r.pool.QueryRow(ctx, `SELECT AVG(score) FROM answers WHERE interview_id = $1 AND score IS NOT NULL`, interviewID).Scan(&avg)
	if err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}
