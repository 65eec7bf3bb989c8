package websocket

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bookwormhq/bookworm-service/internal/types"
)

const (
	writeTimeout   = 10 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = 54 * time.Second // must fire before pongTimeout lapses
	maxInboundSize = 512
)

// ErrSendBufferFull reports that a client's outbound queue is full. The hub
// treats it as a dead connection.
var ErrSendBufferFull = errors.New("client send buffer full")

// Client is one authenticated feed subscriber.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	userID string
	hub    *Hub
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, userID string, hub *Hub) *Client {
	return &Client{
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: userID,
		hub:    hub,
	}
}

// SendEvent queues an event for delivery. It never blocks; a slow consumer
// loses the event instead of stalling the hub.
func (c *Client) SendEvent(event *types.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Start runs the connection's read and write loops.
func (c *Client) Start() {
	go c.writeLoop()
	go c.readLoop()
}

// UserID returns the user this connection authenticated as.
func (c *Client) UserID() string {
	return c.userID
}

// readLoop discards inbound messages; the event stream is one-way. It exists
// to process control frames and to notice when the peer goes away.
func (c *Client) readLoop() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundSize)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket read failed",
					slog.String("user_id", c.userID),
					slog.String("error", err.Error()))
			}
			return
		}
	}
}

// writeLoop delivers queued events one frame each and keeps the connection
// alive with periodic pings.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// The hub dropped this client.
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
