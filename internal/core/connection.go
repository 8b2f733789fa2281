package core

import (
	"sync"
	"time"
)

// DefaultSendBuffer is the per-connection outbound queue length.
const DefaultSendBuffer = 64

// Connection is one live transport session as seen by the core layer.
type Connection struct {
	ID        string
	Room      string
	CreatedAt time.Time

	mu       sync.RWMutex
	identity string

	events    chan *Event
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// NewConnection constructs a connection with an initialized outbound queue.
func NewConnection(id, room string, buffer int) *Connection {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Connection{
		ID:        id,
		Room:      room,
		CreatedAt: time.Now(),
		events:    make(chan *Event, buffer),
		done:      make(chan struct{}),
	}
}

// Identity returns the bound identity or an empty string.
func (c *Connection) Identity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

func (c *Connection) setIdentity(identity string) {
	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()
}

// Events is the outbound queue drained by the transport writer.
func (c *Connection) Events() <-chan *Event {
	return c.events
}

// Done is closed once the manager gives up on the connection.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection was closed; nil for a regular disconnect.
func (c *Connection) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// deliver enqueues without blocking. It returns false only when the queue is full.
func (c *Connection) deliver(ev *Event) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

func (c *Connection) close(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}
