package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"library-backend/config"
	"library-backend/internal/engine"
	"library-backend/internal/model"
)

func setupRouter(t *testing.T) (*gin.Engine, *engine.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, testDB.AutoMigrate(
		&model.Book{},
		&model.Reader{},
		&model.Loan{},
		&model.Reservation{},
		&model.Penalty{},
		&model.PushSubscription{},
	))

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	eng := engine.New(testDB, cfg.Policy)

	// Routes are registered directly so the tests exercise handlers
	// without the rate-limit and cache middleware in the way.
	r := gin.New()
	handler := NewHandler(eng, nil)
	r.POST("/api/books", handler.CreateBook)
	r.GET("/api/books/:book_id/queue", handler.GetQueue)
	r.POST("/api/readers", handler.CreateReader)
	r.POST("/api/loans", handler.RequestLoan)
	r.POST("/api/loans/:loan_id/return", handler.ReturnLoan)
	r.POST("/api/loans/:loan_id/renew", handler.RenewLoan)
	r.DELETE("/api/reservations/:reservation_id", handler.CancelReservation)
	r.POST("/api/penalties/:penalty_id/pay", handler.PayPenalty)
	r.POST("/api/maintenance/sweep", handler.RunSweep)
	r.PUT("/api/subscriptions", handler.PutSubscription)
	return r, eng
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLoanFlowOverHTTP(t *testing.T) {
	router, _ := setupRouter(t)

	copies := 1
	w := doJSON(t, router, "POST", "/api/books", gin.H{"title": "Clean Architecture", "author": "Robert C. Martin", "copies": copies})
	require.Equal(t, http.StatusCreated, w.Code)
	var book model.Book
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &book))

	w = doJSON(t, router, "POST", "/api/readers", gin.H{"name": "alice", "email": "alice@example.com"})
	require.Equal(t, http.StatusCreated, w.Code)
	var alice model.Reader
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &alice))

	w = doJSON(t, router, "POST", "/api/readers", gin.H{"name": "bob", "email": "bob@example.com"})
	require.Equal(t, http.StatusCreated, w.Code)
	var bob model.Reader
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bob))

	// First borrower gets the copy.
	w = doJSON(t, router, "POST", "/api/loans", gin.H{"reader_id": alice.ID, "book_id": book.ID})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Loan model.Loan `json:"loan"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, model.LoanActive, created.Loan.Status)

	// Second borrower lands in the queue.
	w = doJSON(t, router, "POST", "/api/loans", gin.H{"reader_id": bob.ID, "book_id": book.ID})
	require.Equal(t, http.StatusAccepted, w.Code)
	var enqueued struct {
		Position int `json:"position"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &enqueued))
	assert.Equal(t, 1, enqueued.Position)

	// Borrowing the same title twice is a conflict.
	w = doJSON(t, router, "POST", "/api/loans", gin.H{"reader_id": alice.ID, "book_id": book.ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	// The queue endpoint shows bob at position 1.
	w = doJSON(t, router, "GET", fmt.Sprintf("/api/books/%d/queue", book.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var queue []queueEntryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queue))
	require.Len(t, queue, 1)
	assert.Equal(t, 1, queue[0].QueuePosition)

	// Returning the copy promotes bob.
	w = doJSON(t, router, "POST", fmt.Sprintf("/api/loans/%d/return", created.Loan.ID), gin.H{"condition": "good"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, "GET", fmt.Sprintf("/api/books/%d/queue", book.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queue))
	assert.Empty(t, queue, "promoted reservation leaves the waiting queue")
}

func TestRenewConflictCarriesDueDate(t *testing.T) {
	router, eng := setupRouter(t)

	w := doJSON(t, router, "POST", "/api/books", gin.H{"title": "SICP", "copies": 1})
	require.Equal(t, http.StatusCreated, w.Code)
	var book model.Book
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &book))

	w = doJSON(t, router, "POST", "/api/readers", gin.H{"name": "alice", "email": "alice@example.com"})
	require.Equal(t, http.StatusCreated, w.Code)
	var alice model.Reader
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &alice))

	w = doJSON(t, router, "POST", "/api/loans", gin.H{"reader_id": alice.ID, "book_id": book.ID})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Loan model.Loan `json:"loan"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	// Exhaust the renewal limit.
	for i := 0; i < eng.Policy().MaxRenewals; i++ {
		w = doJSON(t, router, "POST", fmt.Sprintf("/api/loans/%d/renew", created.Loan.ID), nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = doJSON(t, router, "POST", fmt.Sprintf("/api/loans/%d/renew", created.Loan.ID), nil)
	require.Equal(t, http.StatusConflict, w.Code)
	var conflict struct {
		Error   string `json:"error"`
		DueDate string `json:"due_date"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conflict))
	assert.NotEmpty(t, conflict.DueDate, "refusal must carry the due date")
}

func TestErrorStatusMapping(t *testing.T) {
	router, _ := setupRouter(t)

	// NotFound.
	w := doJSON(t, router, "POST", "/api/loans/999/renew", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, "DELETE", "/api/reservations/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, "POST", "/api/penalties/999/pay", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Validation.
	w = doJSON(t, router, "POST", "/api/loans", gin.H{"reader_id": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, "POST", "/api/books", gin.H{"title": "No Copies"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSweepEndpoint(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, "POST", "/api/maintenance/sweep", gin.H{"now": "2026-04-01T00:00:00Z"})
	require.Equal(t, http.StatusOK, w.Code)
	var report engine.SweepReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Zero(t, report.OverdueTransitions)

	w = doJSON(t, router, "POST", "/api/maintenance/sweep", gin.H{"now": "yesterday"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutSubscriptionValidation(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, "PUT", "/api/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())
}
