package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/avdeenkov/pairchat/internal/app"
	"github.com/avdeenkov/pairchat/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// Conn wraps a websocket connection behind a buffered send channel.
// It implements app.Conn.
type Conn struct {
	id     domain.ConnID
	source string
	conn   *websocket.Conn
	send   chan app.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *Conn) ID() domain.ConnID { return c.id }

// SourceKey is the client address used for join-rate limiting.
func (c *Conn) SourceKey() string { return c.source }

func (c *Conn) TrySend(f app.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}
