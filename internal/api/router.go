package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"library-backend/config"
	"library-backend/internal/engine"
	"library-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router around the engine.
func NewRouter(eng *engine.Engine, cfg *config.ServerConfig, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(eng, webpushOptions)

	limit := rate.Limit(10)
	ipHeader := ""
	if cfg != nil {
		if cfg.RateLimitPerSec > 0 {
			limit = rate.Limit(cfg.RateLimitPerSec)
		}
		ipHeader = cfg.RequestIPHeader
	}
	rateLimiter := mw.RateLimiter(limit, 5, ipHeader)

	cacheTTL := 30 * time.Second
	if cfg != nil && cfg.CacheTTLSeconds > 0 {
		cacheTTL = time.Duration(cfg.CacheTTLSeconds) * time.Second
	}
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Catalog. Only the full listing is cached: availability on a
		// single title must reflect the engine immediately.
		api.POST("/books", handler.CreateBook)
		api.GET("/books", caching, handler.ListBooks)
		api.GET("/books/:book_id", handler.GetBook)
		api.GET("/books/:book_id/queue", handler.GetQueue)
		api.POST("/readers", handler.CreateReader)

		// Lending lifecycle.
		api.POST("/loans", handler.RequestLoan)
		api.GET("/loans", handler.ListLoans)
		api.POST("/loans/:loan_id/return", handler.ReturnLoan)
		api.POST("/loans/:loan_id/renew", handler.RenewLoan)

		// Reservations and pickups.
		api.POST("/reservations", handler.ReserveBook)
		api.DELETE("/reservations/:reservation_id", handler.CancelReservation)
		api.POST("/reservations/:reservation_id/pickup", handler.CompletePickup)

		// Penalties and the payment-settlement callback.
		api.GET("/penalties", handler.ListPenalties)
		api.POST("/penalties/:penalty_id/pay", handler.PayPenalty)

		// Externally triggered maintenance sweep.
		api.POST("/maintenance/sweep", handler.RunSweep)

		// Push subscriptions.
		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
