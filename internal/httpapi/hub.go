package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ezagent/internal/core"
)

const (
	sendBuffer = 32
	writeWait  = 5 * time.Second
)

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub is an agent that fans every broadcast out to connected websocket
// clients. Slow clients whose buffer is full are disconnected.
type Hub struct {
	id       string
	upgrader websocket.Upgrader
	logger   *zerolog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// NewHub returns a hub accepting upgrades from origins. An empty list keeps
// the same-origin check; "*" accepts any origin.
func NewHub(id string, origins []string, logger *zerolog.Logger) *Hub {
	if logger == nil {
		logger = &log.Logger
	}
	h := &Hub{id: id, logger: logger, clients: make(map[*wsClient]struct{})}
	if len(origins) > 0 {
		allowed := make(map[string]bool, len(origins))
		for _, o := range origins {
			allowed[o] = true
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			return allowed["*"] || allowed[r.Header.Get("Origin")]
		}
	}
	return h
}

func (h *Hub) ID() string { return h.id }

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleEvent implements core.Agent.
func (h *Hub) HandleEvent(ctx context.Context, eventType string, data core.Payload) error {
	msg, err := json.Marshal(core.NewEvent(eventType, h.id, data))
	if err != nil {
		return fmt.Errorf("encode %s for websocket: %w", eventType, err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn().Str("remote", c.conn.RemoteAddr().String()).Msg("websocket client too slow, dropping")
			h.drop(c)
		}
	}
	return nil
}

// drop must be called with h.mu held.
func (h *Hub) drop(c *wsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// ServeHTTP upgrades the connection and streams events until the client
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if ce, ok := err.(*websocket.CloseError); ok {
				h.logger.Debug().Int("code", ce.Code).Msg("websocket closed")
			}
			break
		}
	}
	h.mu.Lock()
	h.drop(c)
	h.mu.Unlock()
}

func (h *Hub) writePump(c *wsClient) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug().Err(err).Msg("websocket write failed")
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// Stop disconnects every client.
func (h *Hub) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.drop(c)
	}
	return nil
}

// Start implements core.Lifecycle; connections are accepted via ServeHTTP.
func (h *Hub) Start(ctx context.Context) error { return nil }

var (
	_ core.Agent     = (*Hub)(nil)
	_ core.Lifecycle = (*Hub)(nil)
)
