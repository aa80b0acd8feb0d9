package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type createReaderRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

// CreateReader handles the POST /api/readers request.
func (h *Handler) CreateReader(c *gin.Context) {
	var req createReaderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reader, err := h.engine.CreateReader(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		abortWithEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reader)
}
