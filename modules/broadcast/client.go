package broadcast

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// DefaultSendBuffer is the outbound queue length used when none is configured.
const DefaultSendBuffer = 64

// Transport is the write side of a live socket. *websocket.Conn satisfies it.
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one live connection. It is owned by the Hub between Register and Unregister.
type Client struct {
	ID          string
	UserID      string
	ConnectedAt time.Time

	conn Transport
	send chan []byte
	done chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped int

	// guarded by Hub.mu
	activeRoom string
}

// NewClient wraps conn with a bounded outbound queue.
func NewClient(conn Transport, userID string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Client{
		ID:          uuid.New().String(),
		UserID:      userID,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan []byte, buffer),
		done:        make(chan struct{}),
	}
}

// Enqueue schedules data for delivery without blocking.
// It returns false when the client is closed or its queue is full.
func (c *Client) Enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.dropped++
		return false
	}
}

// Send marshals env and queues it for this connection only.
func (c *Client) Send(env Envelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		return false
	}
	return c.Enqueue(data)
}

// Dropped returns how many frames were discarded because the queue was full.
func (c *Client) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// WritePump drains the outbound queue into the transport until the queue is closed.
// After the first write error the remaining frames are discarded.
func (c *Client) WritePump() {
	defer close(c.done)

	var failed bool
	for data := range c.send {
		if failed {
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			failed = true
		}
	}
}

// Done is closed once WritePump has returned.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) closeQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
