package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iliyamo/ride-hailing/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 512
	sendBuffer = 32
)

// Client is one websocket connection of an authenticated account.
type Client struct {
	AccountID string
	Role      model.Role
	conn      *websocket.Conn
	send      chan []byte
}

// NewClient wraps conn for the given account.
func NewClient(conn *websocket.Conn, accountID string, role model.Role) *Client {
	return &Client{AccountID: accountID, Role: role, conn: conn, send: make(chan []byte, sendBuffer)}
}

// Serve registers the client, runs its pumps and unregisters it when the
// connection ends. It blocks until the read side fails.
func (c *Client) Serve(h *Hub) {
	h.Register(c)
	go c.writePump()
	c.readPump(h)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.Unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read failed", "account_id", c.AccountID, "err", err)
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			c.reply(h, Message{Type: "pong", Timestamp: time.Now().UTC()})
		}
	}
}

func (c *Client) reply(h *Hub, msg Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.AccountID][c]; ok {
		h.deliverLocked(c, b)
	}
}
