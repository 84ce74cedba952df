package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ride-hailing/internal/middleware"
	"github.com/iliyamo/ride-hailing/internal/ws"
)

// WSHandler upgrades authenticated requests to a ride event stream.
type WSHandler struct {
	Hub      *ws.Hub
	Upgrader websocket.Upgrader
	Log      *slog.Logger
}

// NewWSHandler accepts connections from origins; an empty list or "*"
// accepts any origin.
func NewWSHandler(hub *ws.Hub, origins []string, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := map[string]bool{}
	for _, o := range origins {
		allowed[o] = true
	}
	return &WSHandler{
		Hub: hub,
		Log: logger,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed["*"] || allowed[origin]
			},
		},
	}
}

// Rides streams ride events addressed to the caller until the socket closes.
func (h *WSHandler) Rides(c echo.Context) error {
	acc, found := middleware.Account(c)
	if !found {
		return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "Access denied. No token provided."})
	}
	conn, err := h.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.Log.Warn("websocket upgrade failed", "account_id", acc.ID, "err", err)
		return nil
	}
	ws.NewClient(conn, acc.ID, acc.Role).Serve(h.Hub)
	return nil
}
