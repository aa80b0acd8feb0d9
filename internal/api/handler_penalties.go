package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ListPenalties handles the GET /api/penalties request. Supports
// ?reader_id= and ?unpaid=true filters.
func (h *Handler) ListPenalties(c *gin.Context) {
	var readerID int64
	if raw := c.Query("reader_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid reader ID"})
			return
		}
		readerID = parsed
	}
	unpaidOnly := c.Query("unpaid") == "true"

	penalties, err := h.engine.ListPenalties(c.Request.Context(), readerID, unpaidOnly)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve penalties"})
		return
	}
	c.JSON(http.StatusOK, penalties)
}

// PayPenalty handles the POST /api/penalties/{penalty_id}/pay request.
// This is the settlement callback surface for the payment collaborator.
func (h *Handler) PayPenalty(c *gin.Context) {
	penaltyID, err := strconv.ParseInt(c.Param("penalty_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid penalty ID"})
		return
	}

	if err := h.engine.MarkPenaltyPaid(c.Request.Context(), penaltyID); err != nil {
		abortWithEngineError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
