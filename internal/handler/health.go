package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Pinger is anything that can prove it is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// CacheProbe reports the state of the optional cache.
type CacheProbe interface {
	Enabled() bool
	Ping(ctx context.Context) error
}

// HealthHandler is used by load balancers and monitoring. The store is
// required; the cache is reported but never fails the check.
type HealthHandler struct {
	DB    Pinger
	Cache CacheProbe
}

func NewHealthHandler(db Pinger, cache CacheProbe) *HealthHandler {
	return &HealthHandler{DB: db, Cache: cache}
}

func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	cacheState := "disabled"
	if h.Cache != nil && h.Cache.Enabled() {
		cacheState = "connected"
		if err := h.Cache.Ping(ctx); err != nil {
			cacheState = "error"
		}
	}
	if err := h.DB.PingContext(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"success":  false,
			"message":  "Database unreachable",
			"database": "disconnected",
			"cache":    cacheState,
		})
	}
	return ok(c, http.StatusOK, "", echo.Map{"database": "connected", "cache": cacheState})
}
