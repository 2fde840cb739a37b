package handler

import (
	"net/http"

	"github.com/eventpool/backend/internal/domain"
	"github.com/eventpool/backend/internal/service"
	"github.com/gin-gonic/gin"
)

// EventHandler handles canonical event endpoints.
type EventHandler struct {
	eventService *service.EventService
}

// NewEventHandler creates a new event handler.
func NewEventHandler(eventService *service.EventService) *EventHandler {
	return &EventHandler{
		eventService: eventService,
	}
}

// ListEvents handles GET /api/v1/events.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *EventHandler) ListEvents(c *gin.Context) {
	status := domain.EventStatus(c.DefaultQuery("status", string(domain.EventStatusPublished)))
	limit, offset := parsePagination(c, 50, 200)

	events, err := h.eventService.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"total":  len(events),
		"limit":  limit,
		"offset": offset,
	})
}

// GetEvent handles GET /api/v1/events/:id, returning the event with its
// source deliveries and per-field provenance.
func (h *EventHandler) GetEvent(c *gin.Context) {
	event, err := h.eventService.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// reviewRequest carries the reviewer identity for curation actions.
type reviewRequest struct {
	Reviewer string `json:"reviewer"`
}

// ApproveEvent handles POST /api/v1/events/:id/approve.
func (h *EventHandler) ApproveEvent(c *gin.Context) {
	var req reviewRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reviewer == "" {
		req.Reviewer = "unknown"
	}

	event, err := h.eventService.Approve(c.Request.Context(), c.Param("id"), req.Reviewer)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// RejectEvent handles POST /api/v1/events/:id/reject.
func (h *EventHandler) RejectEvent(c *gin.Context) {
	var req reviewRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reviewer == "" {
		req.Reviewer = "unknown"
	}

	event, err := h.eventService.Reject(c.Request.Context(), c.Param("id"), req.Reviewer)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// lockRequest names the field to pin.
type lockRequest struct {
	Field string `json:"field" binding:"required"`
}

// LockField handles POST /api/v1/events/:id/lock.
func (h *EventHandler) LockField(c *gin.Context) {
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	event, err := h.eventService.LockField(c.Request.Context(), c.Param("id"), req.Field)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

// GetStats handles GET /api/v1/stats.
func (h *EventHandler) GetStats(c *gin.Context) {
	stats, err := h.eventService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": stats})
}
