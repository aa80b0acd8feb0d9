package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"library-backend/internal/engine"
	"library-backend/internal/model"
)

type requestLoanRequest struct {
	ReaderID int64 `json:"reader_id" binding:"required"`
	BookID   int64 `json:"book_id" binding:"required"`
}

// RequestLoan handles the POST /api/loans request. A free copy yields a
// loan (201); otherwise the reader is enqueued and gets their position
// back (202).
func (h *Handler) RequestLoan(c *gin.Context) {
	var req requestLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.engine.RequestLoan(c.Request.Context(), req.ReaderID, req.BookID, time.Now().UTC())
	if err != nil {
		abortWithEngineError(c, err)
		return
	}

	if outcome.Loan != nil {
		c.JSON(http.StatusCreated, gin.H{"loan": outcome.Loan})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"reservation": outcome.Reservation,
		"position":    outcome.Reservation.QueuePosition,
	})
}

type returnLoanRequest struct {
	Condition model.ReturnCondition `json:"condition" binding:"required"`
}

// ReturnLoan handles the POST /api/loans/{loan_id}/return request.
func (h *Handler) ReturnLoan(c *gin.Context) {
	loanID, err := strconv.ParseInt(c.Param("loan_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid loan ID"})
		return
	}

	var req returnLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome, err := h.engine.ReturnBook(c.Request.Context(), loanID, req.Condition, time.Now().UTC())
	if err != nil {
		abortWithEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// RenewLoan handles the POST /api/loans/{loan_id}/renew request. Refusals
// carry the current due date so the caller can show days remaining rather
// than a bare error.
func (h *Handler) RenewLoan(c *gin.Context) {
	loanID, err := strconv.ParseInt(c.Param("loan_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid loan ID"})
		return
	}

	loan, err := h.engine.RenewLoan(c.Request.Context(), loanID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, engine.ErrRenewalLimitExceeded) || errors.Is(err, engine.ErrLoanNotRenewable) {
			var current model.Loan
			if dbErr := h.engine.DB().First(&current, loanID).Error; dbErr == nil {
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{
					"error":    err.Error(),
					"due_date": current.DueDate.UTC().Format(time.RFC3339),
				})
				return
			}
		}
		abortWithEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

// ListLoans handles the GET /api/loans request, optionally filtered by
// reader.
func (h *Handler) ListLoans(c *gin.Context) {
	var readerID int64
	if raw := c.Query("reader_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid reader ID"})
			return
		}
		readerID = parsed
	}

	loans, err := h.engine.ListLoans(c.Request.Context(), readerID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve loans"})
		return
	}
	c.JSON(http.StatusOK, loans)
}
