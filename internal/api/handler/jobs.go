package handler

import (
	"net/http"

	"github.com/eventpool/backend/internal/service"
	"github.com/gin-gonic/gin"
)

// JobHandler handles AI enrichment job endpoints.
type JobHandler struct {
	jobService *service.AIJobService
}

// NewJobHandler creates a new job handler.
func NewJobHandler(jobService *service.AIJobService) *JobHandler {
	return &JobHandler{
		jobService: jobService,
	}
}

// StartJob handles POST /api/v1/jobs. The response returns immediately with
// the admitted job and the initial item snapshot; processing continues in the
// background. A second start while a live job runs returns 409 naming it.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *JobHandler) StartJob(c *gin.Context) {
	job, items, err := h.jobService.Start(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job":   job,
		"items": items,
	})
}

// ListJobs handles GET /api/v1/jobs.
func (h *JobHandler) ListJobs(c *gin.Context) {
	limit, offset := parsePagination(c, 20, 100)

	jobs, err := h.jobService.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// GetJob handles GET /api/v1/jobs/:id, the progress poll.
func (h *JobHandler) GetJob(c *gin.Context) {
	view, err := h.jobService.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// CancelJob handles POST /api/v1/jobs/:id/cancel.
func (h *JobHandler) CancelJob(c *gin.Context) {
	if err := h.jobService.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "cancelled",
	})
}
