package interviews

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prepview/backend/internal/jobroles"
	"github.com/prepview/backend/internal/middleware"
	"github.com/prepview/backend/internal/models"
	"github.com/prepview/backend/internal/resumes"
	"github.com/prepview/backend/pkg/queue"
	"github.com/prepview/backend/pkg/response"
	"github.com/prepview/backend/pkg/storage"
)

// StatusNotifier pushes interview status changes to connected clients.
type StatusNotifier interface {
	NotifyInterviewStatus(userID, interviewID uuid.UUID, status models.InterviewStatus)
}

// Handler handles interview HTTP endpoints.
type Handler struct {
	repo       *Repository
	resumeRepo *resumes.Repository
	roleRepo   *jobroles.Repository
	s3         *storage.S3
	queue      *queue.Queue
	notifier   StatusNotifier
	logger     *zap.Logger
}

// NewHandler creates an interviews handler.
func NewHandler(repo *Repository, resumeRepo *resumes.Repository, roleRepo *jobroles.Repository,
	s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, resumeRepo: resumeRepo, roleRepo: roleRepo, s3: s3, queue: q, logger: logger}
}

// SetNotifier sets the optional realtime status notifier.
func (h *Handler) SetNotifier(n StatusNotifier) { h.notifier = n }

func (h *Handler) authorize(c *gin.Context, iv *models.Interview) bool {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	role, _ := c.Get(middleware.ContextUserRole)
	if iv.UserID != userID && role != string(models.RoleAdmin) {
		response.Forbidden(c, "not authorized for this interview")
		return false
	}
	return true
}

// Start handles POST /api/interviews/start. Creates the interview and
// enqueues question generation; the worker advances the status from there.
func (h *Handler) Start(c *gin.Context) {
	var req models.StartInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	resume, err := h.resumeRepo.GetByID(c.Request.Context(), req.ResumeID)
	if err != nil || resume.UserID != userID {
		response.BadRequest(c, "resume not found")
		return
	}
	role, err := h.roleRepo.GetByID(c.Request.Context(), req.JobRoleID)
	if err != nil {
		response.BadRequest(c, "job role not found")
		return
	}

	ivType := req.Type
	if ivType == "" {
		ivType = models.InterviewTypeVideo
	}
	if ivType != models.InterviewTypeVideo && ivType != models.InterviewTypeText {
		response.BadRequest(c, "invalid interview type")
		return
	}

	iv := &models.Interview{
		UserID:    userID,
		ResumeID:  resume.ID,
		JobRoleID: role.ID,
		Type:      ivType,
	}
	if err := h.repo.Create(c.Request.Context(), iv); err != nil {
		h.logger.Error("create interview failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to create interview")
		return
	}

	if err := h.queue.EnqueueQuestionGeneration(c.Request.Context(), queue.QuestionGenerationPayload{InterviewID: iv.ID}); err != nil {
		h.logger.Error("enqueue question generation failed", zap.Error(err), zap.String("interview_id", iv.ID.String()))
		_ = h.repo.Transition(c.Request.Context(), iv.ID, models.InterviewStatusCreated, models.InterviewStatusFailed)
		response.Internal(c, "failed to schedule interview preparation")
		return
	}

	response.Created(c, models.InterviewDTO{
		InterviewID:  iv.ID,
		Status:       iv.Status,
		Type:         iv.Type,
		JobRoleTitle: role.Title,
		Questions:    []models.QuestionDTO{},
	})
}

// GetByID handles GET /api/interviews/:id.
func (h *Handler) GetByID(c *gin.Context) {
	interviewID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid interview id")
		return
	}
	iv, err := h.repo.GetByID(c.Request.Context(), interviewID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "interview not found")
			return
		}
		h.logger.Error("get interview failed", zap.Error(err), zap.String("interview_id", interviewID.String()))
		response.Internal(c, "failed to load interview")
		return
	}
	if !h.authorize(c, iv) {
		return
	}

	dto, err := h.buildDTO(c, iv)
	if err != nil {
		h.logger.Error("build interview dto failed", zap.Error(err), zap.String("interview_id", interviewID.String()))
		response.Internal(c, "failed to load interview")
		return
	}
	response.OK(c, dto)
}

// List handles GET /api/interviews. Returns the caller's interviews.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list interviews failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to list interviews")
		return
	}
	response.OK(c, list)
}

func (h *Handler) buildDTO(c *gin.Context, iv *models.Interview) (*models.InterviewDTO, error) {
	role, err := h.roleRepo.GetByID(c.Request.Context(), iv.JobRoleID)
	if err != nil {
		return nil, err
	}
	questions, err := h.repo.ListQuestions(c.Request.Context(), iv.ID)
	if err != nil {
		return nil, err
	}
	answers, err := h.repo.ListAnswers(c.Request.Context(), iv.ID)
	if err != nil {
		return nil, err
	}
	byQuestion := make(map[uuid.UUID]models.Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	dto := &models.InterviewDTO{
		InterviewID:  iv.ID,
		Status:       iv.Status,
		Type:         iv.Type,
		JobRoleTitle: role.Title,
		OverallScore: iv.OverallScore,
		StartedAt:    iv.StartedAt,
		CompletedAt:  iv.CompletedAt,
		Questions:    make([]models.QuestionDTO, 0, len(questions)),
	}
	for _, q := range questions {
		qd := models.QuestionDTO{
			QuestionID:     q.ID,
			Seq:            q.Seq,
			Text:           q.Text,
			Category:       q.Category,
			AvatarVideoURL: q.AvatarVideoURL,
		}
		if a, ok := byQuestion[q.ID]; ok {
			qd.Answered = true
			qd.Score = a.Score
			qd.Feedback = a.Feedback
		}
		dto.Questions = append(dto.Questions, qd)
	}
	return dto, nil
}

// GenerateUploadURL handles GET /api/interviews/:id/upload-url?questionId=.
// Issues a single-use, time-bounded presigned PUT URL for the answer object.
func (h *Handler) GenerateUploadURL(c *gin.Context) {
	interviewID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid interview id")
		return
	}
	questionID, err := uuid.Parse(c.Query("questionId"))
	if err != nil {
		response.BadRequest(c, "questionId required")
		return
	}
	contentType := c.DefaultQuery("contentType", "video/webm")
	if !storage.ValidateResponseType(contentType) {
		response.BadRequest(c, "unsupported content type")
		return
	}

	iv, err := h.repo.GetByID(c.Request.Context(), interviewID)
	if err != nil {
		response.NotFound(c, "interview not found")
		return
	}
	if !h.authorize(c, iv) {
		return
	}
	if iv.Status != models.InterviewStatusInProgress {
		response.Conflict(c, "interview is not accepting answers")
		return
	}
	if _, err := h.repo.GetQuestion(c.Request.Context(), interviewID, questionID); err != nil {
		response.NotFound(c, "question not found")
		return
	}

	if h.s3 == nil {
		response.Internal(c, "S3 not configured")
		return
	}
	key := storage.AnswerKey(interviewID.String(), questionID.String(), contentType)
	expire := h.s3.PresignExpire()
	url, err := h.s3.GeneratePresignedUploadURL(c.Request.Context(), h.s3.ResponsesBucket(), key, contentType, expire)
	if err != nil {
		h.logger.Error("presign answer upload failed", zap.Error(err), zap.String("interview_id", interviewID.String()))
		response.Internal(c, "failed to generate upload URL")
		return
	}
	response.OK(c, models.PresignedUrlResponse{
		UploadURL:        url,
		S3Key:            key,
		ExpiresInSeconds: int(expire.Seconds()),
	})
}

// ConfirmUpload handles POST /api/interviews/:id/confirm-upload. Verifies the
// object landed in S3, records the answer and enqueues transcription.
func (h *Handler) ConfirmUpload(c *gin.Context) {
	interviewID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid interview id")
		return
	}
	var req models.ConfirmUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "video/webm"
	}
	if !storage.ValidateResponseType(contentType) {
		response.BadRequest(c, "unsupported content type")
		return
	}

	iv, err := h.repo.GetByID(c.Request.Context(), interviewID)
	if err != nil {
		response.NotFound(c, "interview not found")
		return
	}
	if !h.authorize(c, iv) {
		return
	}
	if iv.Status != models.InterviewStatusInProgress {
		response.Conflict(c, "interview is not accepting answers")
		return
	}
	if _, err := h.repo.GetQuestion(c.Request.Context(), interviewID, req.QuestionID); err != nil {
		response.NotFound(c, "question not found")
		return
	}
	expectedKey := storage.AnswerKey(interviewID.String(), req.QuestionID.String(), contentType)
	if req.S3Key != expectedKey {
		response.BadRequest(c, "s3Key does not match the issued upload ticket")
		return
	}

	if h.s3 == nil {
		response.Internal(c, "S3 not configured")
		return
	}
	if _, err := h.s3.ObjectExists(c.Request.Context(), h.s3.ResponsesBucket(), req.S3Key); err != nil {
		response.BadRequest(c, "uploaded object not found; upload before confirming")
		return
	}

	answer := &models.Answer{
		InterviewID:     interviewID,
		QuestionID:      req.QuestionID,
		S3Key:           req.S3Key,
		ContentType:     contentType,
		DurationSeconds: req.VideoDuration,
	}
	if err := h.repo.UpsertAnswer(c.Request.Context(), answer); err != nil {
		h.logger.Error("record answer failed", zap.Error(err), zap.String("interview_id", interviewID.String()))
		response.Internal(c, "failed to record answer")
		return
	}

	if err := h.queue.EnqueueTranscription(c.Request.Context(), queue.TranscriptionPayload{
		InterviewID: interviewID,
		QuestionID:  req.QuestionID,
		AnswerID:    answer.ID,
		S3Key:       req.S3Key,
		ContentType: contentType,
	}); err != nil {
		h.logger.Error("enqueue transcription failed", zap.Error(err), zap.String("answer_id", answer.ID.String()))
		response.Internal(c, "failed to schedule transcription")
		return
	}

	// Last answer in: the interview moves to processing.
	progress, err := h.repo.GetProgress(c.Request.Context(), interviewID)
	if err == nil && progress.Questions > 0 && progress.Uploaded >= progress.Questions {
		if err := h.repo.Transition(c.Request.Context(), interviewID, models.InterviewStatusInProgress, models.InterviewStatusProcessing); err == nil {
			if h.notifier != nil {
				h.notifier.NotifyInterviewStatus(iv.UserID, interviewID, models.InterviewStatusProcessing)
			}
		}
	}

	response.OK(c, models.ConfirmUploadResponse{
		Message:     "upload confirmed",
		InterviewID: interviewID,
		QuestionID:  req.QuestionID,
		S3Key:       req.S3Key,
	})
}
