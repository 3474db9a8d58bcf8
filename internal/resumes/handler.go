package resumes

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prepview/backend/internal/middleware"
	"github.com/prepview/backend/internal/models"
	"github.com/prepview/backend/pkg/response"
	"github.com/prepview/backend/pkg/storage"
)

// Handler handles résumé HTTP endpoints.
type Handler struct {
	repo    *Repository
	s3      *storage.S3
	maxSize int64
	logger  *zap.Logger
}

// NewHandler creates a resumes handler.
func NewHandler(repo *Repository, s3 *storage.S3, maxSize int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSize <= 0 {
		maxSize = 5 * 1024 * 1024
	}
	return &Handler{repo: repo, s3: s3, maxSize: maxSize, logger: logger}
}

// Upload handles POST /api/resumes (multipart form, field "file", PDF only).
func (h *Handler) Upload(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file required")
		return
	}
	if fileHeader.Size > h.maxSize {
		response.BadRequest(c, "file too large")
		return
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		response.BadRequest(c, "only PDF resumes are accepted")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.Internal(c, "failed to read upload")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxSize+1))
	if err != nil {
		response.Internal(c, "failed to read upload")
		return
	}
	if int64(len(data)) > h.maxSize {
		response.BadRequest(c, "file too large")
		return
	}

	parsed, err := ParsePDF(data)
	if err != nil {
		response.BadRequest(c, "could not extract text from PDF: "+err.Error())
		return
	}

	resumeID := uuid.New()
	key := storage.ResumeKey(userID.String(), resumeID.String())
	if h.s3 != nil {
		if _, err := h.s3.Upload(c.Request.Context(), h.s3.ResumesBucket(), key, "application/pdf",
			bytes.NewReader(data), int64(len(data))); err != nil {
			h.logger.Error("upload resume to S3 failed", zap.Error(err), zap.String("resume_id", resumeID.String()))
			response.Internal(c, "failed to store resume")
			return
		}
	}

	resume := &models.Resume{
		ID:        resumeID,
		UserID:    userID,
		Filename:  filepath.Base(fileHeader.Filename),
		S3Key:     key,
		Text:      parsed.Text,
		PageCount: parsed.PageCount,
		FileSize:  int64(len(data)),
	}
	if err := h.repo.Create(c.Request.Context(), resume); err != nil {
		h.logger.Error("create resume row failed", zap.Error(err), zap.String("resume_id", resumeID.String()))
		response.Internal(c, "failed to store resume")
		return
	}
	response.Created(c, resume)
}

// List handles GET /api/resumes.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list resumes failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to list resumes")
		return
	}
	response.OK(c, list)
}
