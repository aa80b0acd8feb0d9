package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type reserveBookRequest struct {
	ReaderID int64 `json:"reader_id" binding:"required"`
	BookID   int64 `json:"book_id" binding:"required"`
}

// ReserveBook handles the POST /api/reservations request.
func (h *Handler) ReserveBook(c *gin.Context) {
	var req reserveBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reservation, err := h.engine.ReserveBook(c.Request.Context(), req.ReaderID, req.BookID, time.Now().UTC())
	if err != nil {
		abortWithEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reservation)
}

// CancelReservation handles the DELETE /api/reservations/{reservation_id}
// request.
func (h *Handler) CancelReservation(c *gin.Context) {
	reservationID, err := strconv.ParseInt(c.Param("reservation_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid reservation ID"})
		return
	}

	if err := h.engine.CancelReservation(c.Request.Context(), reservationID, time.Now().UTC()); err != nil {
		abortWithEngineError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CompletePickup handles the POST /api/reservations/{reservation_id}/pickup
// request, turning a ready reservation into a loan.
func (h *Handler) CompletePickup(c *gin.Context) {
	reservationID, err := strconv.ParseInt(c.Param("reservation_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid reservation ID"})
		return
	}

	loan, err := h.engine.CompletePickup(c.Request.Context(), reservationID, time.Now().UTC())
	if err != nil {
		abortWithEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, loan)
}
