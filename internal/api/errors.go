package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"library-backend/internal/engine"
)

// abortWithEngineError maps the engine's error taxonomy onto HTTP statuses:
// validation 400, not-found 404, conflict 409, frozen title or invariant
// breach 503, anything else 500 without leaking internals.
func abortWithEngineError(c *gin.Context, err error) {
	switch {
	case engine.IsValidation(err):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case engine.IsNotFound(err):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case engine.IsConflict(err):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrBookFrozen), engine.IsInvariantBreach(err):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "title is unavailable pending operator intervention"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
