package handler

import (
	"net/http"

	"github.com/eventpool/backend/internal/domain"
	"github.com/eventpool/backend/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SourceHandler handles source registry endpoints.
type SourceHandler struct {
	sourceRepo *repository.SourceRepository
}

// NewSourceHandler creates a new source handler.
func NewSourceHandler(sourceRepo *repository.SourceRepository) *SourceHandler {
	return &SourceHandler{
		sourceRepo: sourceRepo,
	}
}

// createSourceRequest is the body of POST /api/v1/sources.
type createSourceRequest struct {
	Name     string            `json:"name" binding:"required"`
	Type     domain.SourceType `json:"type" binding:"required"`
	Priority int               `json:"priority"`
}

// CreateSource handles POST /api/v1/sources.
func (h *SourceHandler) CreateSource(c *gin.Context) {
	var req createSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	switch req.Type {
	case domain.SourceTypeFeed, domain.SourceTypeScraper, domain.SourceTypePartner, domain.SourceTypeManual:
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid source type: " + string(req.Type),
		})
		return
	}

	src := &domain.Source{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Type:         req.Type,
		Priority:     req.Priority,
		IsEnabled:    true,
		HealthStatus: domain.SourceHealthUnknown,
	}
	if err := h.sourceRepo.Create(c.Request.Context(), src); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, src)
}

// ListSources handles GET /api/v1/sources.
func (h *SourceHandler) ListSources(c *gin.Context) {
	sources, err := h.sourceRepo.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"total":   len(sources),
	})
}

// GetSource handles GET /api/v1/sources/:id.
func (h *SourceHandler) GetSource(c *gin.Context) {
	src, err := h.sourceRepo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, src)
}
