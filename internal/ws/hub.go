// Package ws pushes ride events to connected clients over websocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/iliyamo/ride-hailing/internal/model"
	"github.com/iliyamo/ride-hailing/internal/queue"
)

// Message is the envelope written to clients.
type Message struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub tracks connected clients by account id. An account may hold several
// connections at once.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	log     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{clients: make(map[string]map[*Client]struct{}), log: logger.With("component", "ws-hub")}
}

// Register adds c to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.AccountID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.AccountID] = set
	}
	set[c] = struct{}{}
	h.log.Debug("client registered", "account_id", c.AccountID, "role", c.Role)
}

// Unregister removes c and closes its send queue. It is safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *Client) {
	set, ok := h.clients[c.AccountID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.AccountID)
	}
	close(c.send)
}

// Connected reports how many connections the account holds.
func (h *Hub) Connected(accountID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[accountID])
}

// SendTo delivers msg to every connection of the given accounts. A client
// whose queue is full is dropped rather than blocking the sender.
func (h *Hub) SendTo(accountIDs []string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Warn("marshal message failed", "type", msg.Type, "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range accountIDs {
		for c := range h.clients[id] {
			h.deliverLocked(c, data)
		}
	}
}

// Broadcast delivers msg to every connection whose account has role,
// skipping the accounts in except.
func (h *Hub) Broadcast(role model.Role, msg Message, except ...string) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Warn("marshal message failed", "type", msg.Type, "err", err)
		return
	}
	skip := make(map[string]bool, len(except))
	for _, id := range except {
		skip[id] = true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.clients {
		if skip[id] {
			continue
		}
		for c := range set {
			if c.Role == role {
				h.deliverLocked(c, data)
			}
		}
	}
}

func (h *Hub) deliverLocked(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.log.Warn("client queue full, dropping connection", "account_id", c.AccountID)
		h.dropLocked(c)
	}
}

// Publish pushes a ride event to the ride's participants. New requests are
// also offered to every connected driver.
func (h *Hub) Publish(_ context.Context, ev queue.RideEvent) error {
	msg := Message{Type: ev.Type, Payload: ev, Timestamp: ev.OccurredAt}
	recipients := ev.Recipients()
	h.SendTo(recipients, msg)
	if ev.Type == model.EventRideRequested {
		h.Broadcast(model.RoleDriver, msg, recipients...)
	}
	return nil
}
