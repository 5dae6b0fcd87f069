package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/robowave/internal/app"
	"github.com/ayusman/robowave/internal/logging"
)

const (
	writeWait  = 5 * time.Second
	clientSend = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

type eventClient struct {
	conn *websocket.Conn
	send chan []byte
}

// EventsHandler streams pipeline events to WebSocket clients as JSON.
// Publish never blocks: a client that falls behind loses events.
type EventsHandler struct {
	clients map[*eventClient]bool
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewEventsHandler creates an empty hub.
func NewEventsHandler(logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		clients: make(map[*eventClient]bool),
		logger:  logging.OrNop(logger),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &eventClient{conn: conn, send: make(chan []byte, clientSend)}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go h.writer(c)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(c)
}

func (h *EventsHandler) remove(c *eventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *EventsHandler) writer(c *eventClient) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.conn.Close()
			return
		}
	}
}

// Publish sends ev to every connected client.
func (h *EventsHandler) Publish(ev app.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("failed to encode event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *EventsHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client.
func (h *EventsHandler) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.conn.Close()
	}
}
