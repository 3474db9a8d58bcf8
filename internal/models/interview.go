package models

import (
	"time"

	"github.com/google/uuid"
)

// InterviewStatus represents interview lifecycle.
// Transitions are guarded; see internal/interviews.CanTransition.
type InterviewStatus string

const (
	InterviewStatusCreated          InterviewStatus = "CREATED"
	InterviewStatusGeneratingVideos InterviewStatus = "GENERATING_VIDEOS"
	InterviewStatusInProgress       InterviewStatus = "IN_PROGRESS"
	InterviewStatusProcessing       InterviewStatus = "PROCESSING"
	InterviewStatusCompleted        InterviewStatus = "COMPLETED"
	InterviewStatusFailed           InterviewStatus = "FAILED"
)

// InterviewType distinguishes interview formats.
const (
	InterviewTypeVideo = "VIDEO"
	InterviewTypeText  = "TEXT"
)

// Interview is a mock-interview session for one user, résumé and job role.
type Interview struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	ResumeID     uuid.UUID       `json:"resume_id"`
	JobRoleID    uuid.UUID       `json:"job_role_id"`
	Type         string          `json:"type"`
	Status       InterviewStatus `json:"status"`
	OverallScore *float64        `json:"overall_score,omitempty"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// AvatarStatus for a question's generated interviewer video.
const (
	AvatarStatusPending = "pending"
	AvatarStatusReady   = "ready"
	AvatarStatusSkipped = "skipped"
	AvatarStatusFailed  = "failed"
)

// Question is one generated interview question.
type Question struct {
	ID             uuid.UUID `json:"id"`
	InterviewID    uuid.UUID `json:"interview_id"`
	Seq            int       `json:"seq"`
	Text           string    `json:"text"`
	Category       string    `json:"category"`
	AvatarVideoURL string    `json:"avatar_video_url,omitempty"`
	AvatarStatus   string    `json:"avatar_status"`
	CreatedAt      time.Time `json:"created_at"`
}

// AnswerStatus represents the recorded-answer pipeline state.
const (
	AnswerStatusUploaded    = "uploaded"
	AnswerStatusTranscribed = "transcribed"
	AnswerStatusScored      = "scored"
	AnswerStatusFailed      = "failed"
)

// Answer is a candidate's recorded response to one question.
type Answer struct {
	ID              uuid.UUID `json:"id"`
	InterviewID     uuid.UUID `json:"interview_id"`
	QuestionID      uuid.UUID `json:"question_id"`
	S3Key           string    `json:"s3_key"`
	ContentType     string    `json:"content_type"`
	DurationSeconds int       `json:"duration_seconds"`
	Transcript      string    `json:"transcript,omitempty"`
	Score           *float64  `json:"score,omitempty"`
	Feedback        string    `json:"feedback,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// QuestionDTO is the wire shape of a question inside InterviewDTO.
type QuestionDTO struct {
	QuestionID     uuid.UUID `json:"questionId"`
	Seq            int       `json:"seq"`
	Text           string    `json:"text"`
	Category       string    `json:"category"`
	AvatarVideoURL string    `json:"avatarVideoUrl,omitempty"`
	Answered       bool      `json:"answered"`
	Score          *float64  `json:"score,omitempty"`
	Feedback       string    `json:"feedback,omitempty"`
}

// InterviewDTO is the wire shape for GET /api/interviews/{id}.
type InterviewDTO struct {
	InterviewID  uuid.UUID       `json:"interviewId"`
	Status       InterviewStatus `json:"status"`
	Type         string          `json:"type"`
	JobRoleTitle string          `json:"jobRoleTitle"`
	OverallScore *float64        `json:"overallScore,omitempty"`
	StartedAt    *time.Time      `json:"startedAt,omitempty"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
	Questions    []QuestionDTO   `json:"questions"`
}

// PresignedUrlResponse is the wire shape for GET /api/interviews/{id}/upload-url.
type PresignedUrlResponse struct {
	UploadURL        string `json:"uploadUrl"`
	S3Key            string `json:"s3Key"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
}

// ConfirmUploadRequest is the body for POST /api/interviews/{id}/confirm-upload.
type ConfirmUploadRequest struct {
	QuestionID    uuid.UUID `json:"questionId" binding:"required"`
	S3Key         string    `json:"s3Key" binding:"required"`
	ContentType   string    `json:"contentType"`
	VideoDuration int       `json:"videoDuration"`
}

// ConfirmUploadResponse acknowledges a confirmed upload.
type ConfirmUploadResponse struct {
	Message     string    `json:"message"`
	InterviewID uuid.UUID `json:"interviewId"`
	QuestionID  uuid.UUID `json:"questionId"`
	S3Key       string    `json:"s3Key"`
}

// StartInterviewRequest is the body for POST /api/interviews/start.
type StartInterviewRequest struct {
	ResumeID  uuid.UUID `json:"resumeId" binding:"required"`
	JobRoleID uuid.UUID `json:"jobRoleId" binding:"required"`
	Type      string    `json:"type"`
}
