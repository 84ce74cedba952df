package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ride-hailing/internal/service"
)

// requestTimeout bounds the store and cache work done for one request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// ok writes {success:true, message?, ...payload}.
func ok(c echo.Context, status int, msg string, payload echo.Map) error {
	body := echo.Map{"success": true}
	if msg != "" {
		body["message"] = msg
	}
	for k, v := range payload {
		body[k] = v
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": msg})
}

// statusOf maps a service error kind to its HTTP status.
func statusOf(err error) int {
	switch kind := service.KindOf(err); {
	case errors.Is(kind, service.ErrInvalid),
		errors.Is(kind, service.ErrConflict),
		errors.Is(kind, service.ErrFailedPrecondition):
		return http.StatusBadRequest
	case errors.Is(kind, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(kind, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(kind, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, service.ErrLocked):
		return http.StatusLocked
	}
	return http.StatusInternalServerError
}

// fail renders err as {success:false, message}. Internal errors carry a
// generic message only.
func fail(c echo.Context, err error) error {
	return c.JSON(statusOf(err), echo.Map{"success": false, "message": service.MessageOf(err)})
}

// queryLimit parses ?limit=. Zero means "use the default".
func queryLimit(c echo.Context) (int, bool) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 100 {
		return 0, false
	}
	return n, true
}
