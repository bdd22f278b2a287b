package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/parking-reservation/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/parking-reservation/internal/middleware" // import middleware for JWT authentication and rate limiting
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check,
// used by load balancers and the gateway to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterReservations registers the reservation API under /reservations.
// Every route requires a valid access token: the same token is forwarded
// on calls to the spot and vehicle registries, so an unauthenticated
// request would only be rejected downstream anyway.  Additional
// middleware (e.g. the Redis token bucket) can be passed in extra.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, extra ...echo.MiddlewareFunc) {
	mw := append([]echo.MiddlewareFunc{middleware.JWTAuth(jwtSecret)}, extra...)
	g := e.Group("/reservations", mw...)

	g.GET("", h.List)
	g.POST("", h.Create)
	// Filter routes come before /:id so "parking-spot", "vehicle" and
	// "status" segments are not parsed as reservation IDs.
	g.GET("/parking-spot/:parkingSpotId", h.ListBySpot)
	g.GET("/vehicle/:vehicleId", h.ListByVehicle)
	g.GET("/status/:status", h.ListByStatus)
	g.GET("/:id", h.Get)
	g.GET("/:id/details", h.Details)
	g.PUT("/:id", h.Update)
	g.PATCH("/:id/complete", h.Complete)
	g.PATCH("/:id/cancel", h.Cancel)
	g.DELETE("/:id", h.Delete)
}
