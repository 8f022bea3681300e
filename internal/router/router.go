// internal/router/router.go
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/mpnode/internal/config"
	"github.com/javajoker/mpnode/internal/handlers"
	"github.com/javajoker/mpnode/internal/middleware"
	"github.com/javajoker/mpnode/internal/services"
)

const Version = "0.1.0"

// Dependencies are the already running pieces the HTTP surface talks to.
type Dependencies struct {
	Config   *config.Config
	Services *services.Container
	Gate     handlers.Gate
	// Network is optional; health reports daemon details when set.
	Network handlers.NetworkInspector
}

func Initialize(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	svc := deps.Services

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(deps.Gate, deps.Network, Version)
	templateHandler := handlers.NewTemplateHandler(svc.Templates, svc.ListingActions)
	listingHandler := handlers.NewListingHandler(svc.ListingItems, svc.ActionMessages)
	bidHandler := handlers.NewBidHandler(svc.BidActions, svc.Bids)
	orderHandler := handlers.NewOrderHandler(svc.Orders)
	escrowHandler := handlers.NewEscrowHandler(svc.Escrow)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	if cfg.Server.RateLimit > 0 {
		r.Use(middleware.PerMinute(cfg.Server.RateLimit).Middleware())
	}

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/v1")
	v1.Use(middleware.BasicAuth(cfg.Server.APIUser, cfg.Server.APIPasswordHash))
	{
		templates := v1.Group("/templates")
		{
			templates.POST("", templateHandler.CreateTemplate)
			templates.GET("/:id", templateHandler.GetTemplate)
			templates.POST("/:id/post", templateHandler.PostTemplate)
		}

		listings := v1.Group("/listings")
		{
			listings.GET("", listingHandler.GetListings)
			listings.GET("/:hash", listingHandler.GetListing)
			listings.GET("/:hash/messages", listingHandler.GetListingMessages)
		}

		// Bids are placed against a listing ID, not a hash.
		v1.POST("/listing-items/:id/bids", bidHandler.SendBid)

		bids := v1.Group("/bids")
		{
			bids.GET("", bidHandler.GetBids)
			bids.POST("/:id/accept", bidHandler.AcceptBid)
			bids.POST("/:id/reject", bidHandler.RejectBid)
			bids.POST("/:id/cancel", bidHandler.CancelBid)
		}

		orders := v1.Group("/orders")
		{
			orders.GET("", orderHandler.GetOrders)
			orders.GET("/:id", orderHandler.GetOrder)
		}

		escrow := v1.Group("/escrow")
		{
			escrow.GET("/unspent", escrowHandler.GetUnspent)
			escrow.POST("/multisig", escrowHandler.CreateMultisig)
			escrow.POST("/transactions", escrowHandler.BuildTransaction)
			escrow.POST("/transactions/broadcast", escrowHandler.BroadcastTransaction)
			escrow.POST("/transactions/decode", escrowHandler.DecodeTransaction)
		}
	}

	return r
}
