package controller

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sharetube/theatre/internal/repository/connection"
)

// client is the outbound side of one websocket session. Messages are queued on send and
// written by the connection's write pump.
type client struct {
	id     string
	send   chan []byte
	mu     sync.RWMutex
	closed bool
}

func newClient(sendBuffer int) *client {
	return &client{
		id:   uuid.NewString(),
		send: make(chan []byte, sendBuffer),
	}
}

func (c *client) ID() string {
	return c.id
}

func (c *client) Send(msg []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return connection.ErrClosed
	}

	select {
	case c.send <- msg:
		return nil
	default:
		return connection.ErrBufferFull
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
