package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type sweepRequest struct {
	Now string `json:"now"`
}

// RunSweep handles the POST /api/maintenance/sweep request. An external
// scheduler (or an operator) can trigger the same pass the built-in loop
// runs; an optional RFC3339 "now" pins the reference time.
func (h *Handler) RunSweep(c *gin.Context) {
	now := time.Now().UTC()

	var req sweepRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.Now != "" {
		parsed, err := time.Parse(time.RFC3339, req.Now)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'now' timestamp format. Use RFC3339."})
			return
		}
		now = parsed
	}

	report, err := h.engine.RunMaintenanceSweep(c.Request.Context(), now)
	if err != nil {
		abortWithEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
