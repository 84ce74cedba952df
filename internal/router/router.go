// Package router wires HTTP routes to handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ride-hailing/internal/handler"
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/health", h.Health)
}

// RegisterAuth mounts /auth. Register and login are throttled by limiter;
// the profile endpoints require a token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, auth, limiter echo.MiddlewareFunc) {
	g := e.Group("/auth")
	g.POST("/register", a.Register, limiter)
	g.POST("/login", a.Login, limiter)
	g.GET("/profile", a.Profile, auth)
	g.PUT("/profile", a.UpdateProfile, auth)
}
