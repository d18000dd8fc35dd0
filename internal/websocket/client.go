package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	sendQueueSize = 256
)

// Client represents a single WebSocket connection
type Client struct {
	// ID is the connection id used by the session registry
	ID string

	hub  *Hub
	conn *websocket.Conn
	log  *zap.Logger

	// Buffered channel of outbound messages
	send chan []byte

	// limiter bounds inbound events
	limiter *rate.Limiter

	closeOnce sync.Once
}

// NewClient creates a new Client instance
func NewClient(id string, hub *Hub, conn *websocket.Conn, limiter *rate.Limiter) *Client {
	return &Client{
		ID:      id,
		hub:     hub,
		conn:    conn,
		log:     hub.log.With(zap.String("conn_id", id)),
		send:    make(chan []byte, sendQueueSize),
		limiter: limiter,
	}
}

// kick closes the underlying connection, which ends both pumps.
func (c *Client) kick() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// ReadPump reads frames from the connection and hands each one to handle.
// It returns once the peer goes away; the client is unregistered by then.
// This runs in its own goroutine per client.
func (c *Client) ReadPump(handle func(c *Client, frame []byte)) {
	defer func() {
		c.hub.Unregister(c)
		c.kick()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Info("read error", zap.Error(err))
			}
			return
		}
		handle(c, frame)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
// This runs in its own goroutine per client
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.kick()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One event per frame; clients parse each frame as a single JSON document
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			n := len(c.send)
			for i := 0; i < n; i++ {
				next, ok := <-c.send
				if !ok {
					return
				}
				if err := c.conn.WriteMessage(websocket.TextMessage, next); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
