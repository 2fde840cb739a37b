package handler

import (
	"net/http"

	"github.com/eventpool/backend/internal/domain"
	"github.com/eventpool/backend/internal/service"
	"github.com/gin-gonic/gin"
)

// IngestHandler handles batch ingestion endpoints.
type IngestHandler struct {
	ingestService *service.IngestService
}

// NewIngestHandler creates a new ingest handler.
// Parameters:
//   - ingestService: ingest service instance.
//
// Returns:
//   - *IngestHandler: initialized handler.
func NewIngestHandler(ingestService *service.IngestService) *IngestHandler {
	return &IngestHandler{
		ingestService: ingestService,
	}
}

// IngestRequest is the body of POST /api/v1/ingest.
type IngestRequest struct {
	SourceID   string                `json:"source_id" binding:"required"`
	RunID      string                `json:"run_id"`
	Candidates []domain.RawCandidate `json:"candidates" binding:"required"`
}

// Ingest handles POST /api/v1/ingest. A client may pass run_id to resume an
// interrupted delivery; redelivered items resolve idempotently.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	result, err := h.ingestService.ProcessBatch(c.Request.Context(), req.SourceID, req.RunID, req.Candidates)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
