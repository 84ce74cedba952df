package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ride-hailing/internal/handler"
	"github.com/iliyamo/ride-hailing/internal/middleware"
	"github.com/iliyamo/ride-hailing/internal/model"
)

// RegisterRides mounts /rides. Every route requires a token; the
// history pages go through the response cache. Role rules that carry
// their own message ("Only drivers can accept rides") live in the service.
func RegisterRides(e *echo.Echo, h *handler.RideHandler, auth, limiter, cache echo.MiddlewareFunc) {
	g := e.Group("/rides", auth, limiter)
	driver := middleware.RequireRole(model.RoleDriver)

	g.POST("", h.Request)
	g.GET("/active", h.Active)
	g.GET("/history", h.History, cache)

	g.GET("/driver/active", h.DriverActive, driver)
	g.GET("/driver/history", h.DriverHistory, driver, cache)
	g.GET("/driver/requests", h.Requests)

	g.GET("/:id", h.Get)
	g.GET("/:id/events", h.Events)
	g.POST("/:id/accept", h.Accept)
	g.PUT("/:id/status", h.UpdateStatus)
	g.POST("/:id/cancel", h.Cancel)
	g.POST("/:id/complete", h.Complete)
}

// RegisterVehicles mounts /vehicles. Only registration is open to riders,
// so the service can explain why it refuses them.
func RegisterVehicles(e *echo.Echo, h *handler.VehicleHandler, auth, limiter echo.MiddlewareFunc) {
	g := e.Group("/vehicles", auth, limiter)
	driver := middleware.RequireRole(model.RoleDriver)

	g.POST("", h.Create)
	g.GET("", h.List, driver)
	g.GET("/:id", h.Get, driver)
	g.PUT("/:id", h.Update, driver)
	g.DELETE("/:id", h.Delete, driver)
}

// RegisterRealtime mounts the websocket endpoint. The token may arrive as
// ?token= since browsers cannot set headers on an upgrade.
func RegisterRealtime(e *echo.Echo, h *handler.WSHandler, auth echo.MiddlewareFunc) {
	e.GET("/ws/rides", h.Rides, auth)
}
