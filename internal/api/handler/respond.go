package handler

import (
	"strconv"

	"github.com/eventpool/backend/internal/apperr"
	"github.com/gin-gonic/gin"
)

// respondError writes a JSON error body with the status mapped from the
// error's kind. Unknown errors surface as 500 without leaking internals.
func respondError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{
		"error": err.Error(),
	})
}

// parsePagination reads limit/offset query parameters with bounds applied.
func parsePagination(c *gin.Context, defaultLimit, maxLimit int) (limit, offset int) {
	limit = defaultLimit
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		limit = n
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if n, err := strconv.Atoi(c.Query("offset")); err == nil && n >= 0 {
		offset = n
	}
	return limit, offset
}
