package jobroles

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prepview/backend/internal/models"
	"github.com/prepview/backend/pkg/response"
)

// CreateRequest is the body for POST /api/job-roles (admin only).
type CreateRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Seniority   string `json:"seniority"`
}

// Handler handles job role HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a job roles handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /api/job-roles.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list job roles failed", zap.Error(err))
		response.Internal(c, "failed to list job roles")
		return
	}
	response.OK(c, list)
}

// Create handles POST /api/job-roles.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	seniority := req.Seniority
	if seniority == "" {
		seniority = "mid"
	}
	jr := &models.JobRole{Title: req.Title, Description: req.Description, Seniority: seniority}
	if err := h.repo.Create(c.Request.Context(), jr); err != nil {
		h.logger.Error("create job role failed", zap.Error(err))
		response.Internal(c, "failed to create job role")
		return
	}
	response.Created(c, jr)
}
