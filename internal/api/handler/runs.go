package handler

import (
	"net/http"

	"github.com/eventpool/backend/internal/repository"
	"github.com/gin-gonic/gin"
)

// RunHandler handles ingest run inspection endpoints.
type RunHandler struct {
	runRepo *repository.RunRepository
}

// NewRunHandler creates a new run handler.
func NewRunHandler(runRepo *repository.RunRepository) *RunHandler {
	return &RunHandler{
		runRepo: runRepo,
	}
}

// ListRuns handles GET /api/v1/runs. An optional source query parameter
// narrows to one source's runs.
func (h *RunHandler) ListRuns(c *gin.Context) {
	limit, offset := parsePagination(c, 50, 200)

	runs, err := h.runRepo.List(c.Request.Context(), c.Query("source"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}

// GetRun handles GET /api/v1/runs/:id.
func (h *RunHandler) GetRun(c *gin.Context) {
	run, err := h.runRepo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, run)
}
