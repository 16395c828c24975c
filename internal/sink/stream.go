package sink

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/exesolution-com/tracepipe/internal/wire"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dev receiver, any origin may tail
	},
}

// streamReplay is how many recent spans a new subscriber gets on connect.
const streamReplay = 25

// client serializes writes to one WebSocket connection. Broadcasts arrive
// from ingest handler goroutines while pongs come from the read loop.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// broadcast fans one event out to every subscriber. A failed write drops
// the subscriber; its read loop notices the closed connection and exits.
func (h *hub) broadcast(v any) {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.send(v); err != nil {
			h.unregister(c)
			c.conn.Close()
		}
	}
}

// handleStream upgrades to WebSocket and tails ingested spans.
func (s *Server) handleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	cl := &client{conn: conn}
	s.hub.register(cl)
	s.metrics.streamClients.Inc()
	defer func() {
		s.hub.unregister(cl)
		s.metrics.streamClients.Dec()
		conn.Close()
	}()

	cl.send(map[string]any{
		"type":    "system",
		"message": "connected to tracesink",
	})
	for _, rec := range s.store.recent(streamReplay) {
		cl.send(spanEvent(rec))
	}

	for {
		var msg struct {
			Type string `json:"type"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "ping":
			cl.send(map[string]any{"type": "pong"})
		default:
		}
	}
}

func spanEvent(rec wire.SpanRecord) map[string]any {
	return map[string]any{
		"type":      "span",
		"span":      rec,
		"timestamp": time.Now().Unix(),
	}
}
