package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"library-backend/internal/engine"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	engine  *engine.Engine
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(eng *engine.Engine, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		engine:  eng,
		webpush: webpushOptions,
	}
}
