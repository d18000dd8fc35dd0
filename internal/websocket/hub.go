package websocket

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/adi-253/duochat/internal/logging"
	"github.com/adi-253/duochat/internal/metrics"
	"github.com/adi-253/duochat/internal/session"
)

// Envelope is the frame format in both directions: {"event": ..., "data": ...}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub maintains the set of live clients and delivers outbound events to them.
// Room membership is owned by the session registry; the hub only resolves
// connection ids to clients. It implements services.Emitter.
type Hub struct {
	log      *zap.Logger
	registry session.Registry
	metrics  *metrics.Metrics

	// clients maps connection id to client
	clients map[string]*Client
	mu      sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub(log *zap.Logger, registry session.Registry, m *metrics.Metrics) *Hub {
	return &Hub{
		log:      logging.OrNop(log),
		registry: registry,
		metrics:  m,
		clients:  make(map[string]*Client),
	}
}

// Register makes client reachable by its connection id.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	total := len(h.clients)
	h.mu.Unlock()

	h.metrics.ConnectionOpened()
	h.log.Debug("client connected", zap.String("conn_id", client.ID), zap.Int("total", total))
}

// Unregister removes client and closes its send queue. Unregistering the
// same client twice is a no-op.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.ID]
	if !ok || current != client {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.ID)
	close(client.send)
	total := len(h.clients)
	h.mu.Unlock()

	h.metrics.ConnectionClosed()
	h.log.Debug("client disconnected", zap.String("conn_id", client.ID), zap.Int("remaining", total))
}

// Close drops every client. Used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		close(c.send)
		h.metrics.ConnectionClosed()
	}
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// EmitToRoom sends event to every connection in room.
func (h *Hub) EmitToRoom(room, event string, data any) {
	payload, ok := h.encode(event, data)
	if !ok {
		return
	}
	h.deliver(h.registry.Members(room), payload)
}

// EmitToConn sends event to a single connection.
func (h *Hub) EmitToConn(connID, event string, data any) {
	payload, ok := h.encode(event, data)
	if !ok {
		return
	}
	h.deliver([]string{connID}, payload)
}

// EmitToAll sends event to every live connection.
func (h *Hub) EmitToAll(event string, data any) {
	payload, ok := h.encode(event, data)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		h.queue(c, payload)
	}
}

func (h *Hub) encode(event string, data any) ([]byte, bool) {
	payload, err := json.Marshal(outbound{Event: event, Data: data})
	if err != nil {
		h.log.Error("encode outbound event", zap.String("event", event), zap.Error(err))
		return nil, false
	}
	return payload, true
}

func (h *Hub) deliver(connIDs []string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range connIDs {
		if c, ok := h.clients[id]; ok {
			h.queue(c, payload)
		}
	}
}

// queue hands payload to the client's writer. Callers hold h.mu for reading,
// which keeps Unregister from closing the channel underneath us.
func (h *Hub) queue(c *Client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		// Client's buffer is full; its read pump unregisters it once the
		// connection is closed
		h.log.Warn("send queue full, dropping client", zap.String("conn_id", c.ID))
		c.kick()
	}
}
