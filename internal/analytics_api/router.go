package analytics_api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hospitality-spend-ledger/internal/analytics_api/handler"
	"github.com/hospitality-spend-ledger/internal/analytics_api/middleware"
)

type handlers struct {
	verification *handler.VerificationHandler
	retro        *handler.RetroHandler
	spend        *handler.SpendHandler
	snapshot     *handler.SnapshotHandler
}

// setupRouter configures API routes and middleware for the application.
// CorrelationID must run before Logger so every access log carries the id.
func setupRouter(logger *slog.Logger, r *gin.Engine, h handlers) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))

	// API v1 endpoints, all tenant scoped
	v1 := r.Group("/api/v1", middleware.Scope())
	{
		v1.POST("/verification/evaluate", h.verification.Evaluate)
		v1.POST("/documents/:id/verify", h.verification.Verify)

		invoices := v1.Group("/invoices")
		{
			invoices.DELETE("/:id", h.verification.DeleteInvoice)
			invoices.POST("/:id/restore", h.verification.RestoreInvoice)
		}

		retro := v1.Group("/retro")
		{
			retro.GET("/preview", h.retro.Preview)
			retro.POST("/batches", h.retro.Run)
			retro.GET("/batches", h.retro.History)
		}

		spend := v1.Group("/spend")
		{
			spend.GET("/summary", h.spend.Summary)
			spend.GET("/breakdown", h.spend.Breakdown)
			spend.GET("/price-changes", h.spend.PriceChanges)
		}
		v1.GET("/products/:id", h.spend.ProductDetail)

		snapshots := v1.Group("/snapshots")
		{
			snapshots.GET("/products", h.snapshot.Products)
			snapshots.POST("/refresh", h.snapshot.Refresh)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
