// Package live streams view-model changes and toasts to connected consoles
// over websocket, so open pages converge without reloading.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"cardadmin/service/delivery"
	"cardadmin/service/notification"
	"cardadmin/service/util"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 20 * time.Second
	sendBuffer   = 32
)

type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			Subprotocols:    []string{util.LiveProtocol},
		},
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Broadcast queues m for every client and returns how many received it.
// Clients whose buffer is full are dropped rather than blocking the caller.
func (h *Hub) Broadcast(m Message) int {
	b, err := json.Marshal(m)
	if err != nil {
		h.logger.Error("Failed to marshal live message", "type", m.Type, "error", err)
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for c := range h.clients {
		select {
		case c.send <- b:
			n++
		default:
			h.logger.Warn("Live client too slow, disconnecting")
			h.removeLocked(c)
		}
	}
	h.logger.Debug("Broadcast live message", "type", m.Type, "clients", n)
	return n
}

// Send implements delivery.Sender.
func (h *Hub) Send(ctx context.Context, toast delivery.Toast) error {
	h.Broadcast(Message{Type: "toast", Data: toast})
	return nil
}

// OnEntry is registered as a board listener.
func (h *Hub) OnEntry(e notification.Entry) {
	h.Broadcast(Message{Type: "entry", Data: e})
}

func (h *Hub) ClientsCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("Live client connected", "clients", total)

	go h.writeLoop(c)
	h.readLoop(c)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	h.removeLocked(c)
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("Live client disconnected", "clients", total)
}

// readLoop only services pongs and close frames; consoles never send data.
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case b, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
