package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"library-backend/internal/model"
)

type createBookRequest struct {
	Title  string `json:"title" binding:"required"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
	Copies *int   `json:"copies" binding:"required,gte=0"`
}

// CreateBook handles the POST /api/books request.
func (h *Handler) CreateBook(c *gin.Context) {
	var req createBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	book, err := h.engine.CreateBook(c.Request.Context(), req.Title, req.Author, req.ISBN, *req.Copies)
	if err != nil {
		abortWithEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

// ListBooks handles the GET /api/books request.
func (h *Handler) ListBooks(c *gin.Context) {
	var books []model.Book
	if err := h.engine.DB().Order("id ASC").Find(&books).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve books"})
		return
	}
	c.JSON(http.StatusOK, books)
}

// GetBook handles the GET /api/books/{book_id} request.
func (h *Handler) GetBook(c *gin.Context) {
	bookID, err := strconv.ParseInt(c.Param("book_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid book ID"})
		return
	}

	book, err := h.engine.GetBook(c.Request.Context(), bookID)
	if err != nil {
		abortWithEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

// queueEntryResponse is one row of a title's waiting list.
type queueEntryResponse struct {
	ReservationID int64  `json:"reservationId"`
	ReaderID      int64  `json:"readerId"`
	QueuePosition int    `json:"queuePosition"`
	RequestedAt   string `json:"requestedAt"`
}

// GetQueue handles the GET /api/books/{book_id}/queue request.
func (h *Handler) GetQueue(c *gin.Context) {
	bookID, err := strconv.ParseInt(c.Param("book_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid book ID"})
		return
	}

	if _, err := h.engine.GetBook(c.Request.Context(), bookID); err != nil {
		abortWithEngineError(c, err)
		return
	}

	waiting, err := h.engine.ListQueue(c.Request.Context(), bookID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve queue"})
		return
	}

	entries := make([]queueEntryResponse, 0, len(waiting))
	for _, r := range waiting {
		entries = append(entries, queueEntryResponse{
			ReservationID: r.ID,
			ReaderID:      r.ReaderID,
			QueuePosition: r.QueuePosition,
			RequestedAt:   r.RequestedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, entries)
}
