package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"ridebroker/internal/handler"
	"ridebroker/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	SessionHandler   *handler.SessionHandler
	DiscoveryHandler *handler.DiscoveryHandler
	OfferHandler     *handler.OfferHandler
	TokenHandler     *handler.TokenHandler
	DriverHandler    *handler.DriverHandler
	StreamHandler    *handler.StreamHandler
	RedisClient      *redis.Client
	NewRelicApp      *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check and metrics sit outside identity.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes.
	v1 := router.Group("/v1")
	v1.Use(middleware.IdentityMiddleware())
	v1.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
	{
		// Session routes.
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", deps.SessionHandler.CreateSession)
			sessions.GET("/:id", deps.SessionHandler.GetSession)
			sessions.GET("/:id/events", deps.SessionHandler.GetEvents)
			sessions.POST("/:id/cancel", deps.SessionHandler.CancelSession)
			sessions.POST("/:id/confirm", deps.SessionHandler.ConfirmSession)
			sessions.POST("/:id/start", deps.SessionHandler.StartTrip)
			sessions.POST("/:id/complete", deps.SessionHandler.CompleteTrip)

			sessions.POST("/:id/discovery", deps.DiscoveryHandler.StartDiscovery)
			sessions.POST("/:id/discovery/expand", deps.DiscoveryHandler.ExpandWave)

			sessions.POST("/:id/offers", deps.OfferHandler.SubmitOffer)
			sessions.GET("/:id/offers", deps.OfferHandler.ListOffers)
			sessions.POST("/:id/select", deps.OfferHandler.SelectOffer)

			sessions.GET("/:id/stream", deps.StreamHandler.Stream)
		}

		// QR credential resolution.
		v1.POST("/tokens/resolve", deps.TokenHandler.ResolveToken)

		// Driver presence and inbox.
		drivers := v1.Group("/drivers")
		{
			drivers.PUT("/me/location", deps.DriverHandler.UpdateLocation)
			drivers.DELETE("/me/location", deps.DriverHandler.RemoveLocation)
			drivers.GET("/me/notifications", deps.DriverHandler.ListNotifications)
		}
	}

	return router
}
