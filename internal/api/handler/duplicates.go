package handler

import (
	"net/http"

	"github.com/eventpool/backend/internal/domain"
	"github.com/eventpool/backend/internal/repository"
	"github.com/eventpool/backend/internal/service"
	"github.com/gin-gonic/gin"
)

// DuplicateHandler handles duplicate review endpoints.
type DuplicateHandler struct {
	dedupeService *service.DedupeService
	duplicateRepo *repository.DuplicateRepository
}

// NewDuplicateHandler creates a new duplicate handler.
func NewDuplicateHandler(dedupeService *service.DedupeService, duplicateRepo *repository.DuplicateRepository) *DuplicateHandler {
	return &DuplicateHandler{
		dedupeService: dedupeService,
		duplicateRepo: duplicateRepo,
	}
}

// ListDuplicates handles GET /api/v1/duplicates, returning open pairs
// ordered by score descending.
func (h *DuplicateHandler) ListDuplicates(c *gin.Context) {
	limit, offset := parsePagination(c, 50, 200)

	pairs, err := h.duplicateRepo.ListOpen(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"duplicates": pairs,
		"total":      len(pairs),
	})
}

// resolveRequest is the body of the resolution endpoint. PrimaryID is only
// consulted for merged resolutions and defaults to the pair's first event.
type resolveRequest struct {
	Resolution domain.DuplicateResolution `json:"resolution" binding:"required"`
	PrimaryID  string                     `json:"primary_id"`
}

// ResolveDuplicate handles POST /api/v1/duplicates/:id/resolve.
func (h *DuplicateHandler) ResolveDuplicate(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	switch req.Resolution {
	case domain.DuplicateResolutionMerged, domain.DuplicateResolutionDifferent, domain.DuplicateResolutionIgnored:
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid resolution: " + string(req.Resolution),
		})
		return
	}

	pair, err := h.dedupeService.Resolve(c.Request.Context(), c.Param("id"), req.Resolution, req.PrimaryID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}
