package registry

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

// Conn is the subset of *websocket.Conn the client needs; tests substitute
// a fake.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client wraps one live transport endpoint. Outbound frames go through a
// buffered channel drained by WritePump; a slow consumer drops frames rather
// than blocking the emitter.
type Client struct {
	conn      Conn
	UserID    string
	Name      string
	Connected time.Time

	send   chan []byte
	mu     sync.Mutex
	closed bool
}

func NewClient(conn Conn, userID, name string) *Client {
	return &Client{
		conn:      conn,
		UserID:    userID,
		Name:      name,
		Connected: time.Now().UTC(),
		send:      make(chan []byte, 256),
	}
}

func (c *Client) enqueue(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- b:
	default:
		// client moving slow — drop
	}
}

// Close is idempotent and safe to call from both the read loop and the
// registry (on replacement).
func (c *Client) Close() {
	c.mu.Lock()
	if !c.closed {
		close(c.send)
		_ = c.conn.Close()
		c.closed = true
	}
	c.mu.Unlock()
}

// WritePump drains the send channel onto the connection and keeps the
// connection alive with periodic pings. Runs until Close or a write error.
func (c *Client) WritePump(pingInterval, writeDeadline time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case b, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}
