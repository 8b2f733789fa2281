package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vovakirdan/huddle-server/internal/core"
)

// Store keeps the message log in process memory.
type Store struct {
	mu       sync.RWMutex
	seq      int64
	messages []core.Message
	closed   bool
	now      func() time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{now: time.Now}
}

// Append stores a message with the next sequence number.
func (s *Store) Append(_ context.Context, room, from, text string) (core.Message, error) {
	body, err := core.NormalizeBody(text)
	if err != nil {
		return core.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return core.Message{}, core.ErrStoreClosed
	}

	createdAt := s.now().UTC()
	if n := len(s.messages); n > 0 && createdAt.Before(s.messages[n-1].CreatedAt) {
		createdAt = s.messages[n-1].CreatedAt
	}

	s.seq++
	msg := core.Message{
		ID:        s.seq,
		Room:      room,
		From:      from,
		Text:      body,
		CreatedAt: createdAt,
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

// Recent returns up to limit newest messages of a room in chronological order.
func (s *Store) Recent(_ context.Context, room string, limit int) ([]core.Message, error) {
	limit = core.ClampLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, core.ErrStoreClosed
	}

	out := make([]core.Message, 0, limit)
	for i := len(s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if s.messages[i].Room == room {
			out = append(out, s.messages[i])
		}
	}

	// Reverse to get chronological order
	for i := range len(out) / 2 {
		out[i], out[len(out)-1-i] = out[len(out)-1-i], out[i]
	}
	return out, nil
}

// Close marks the store closed; later calls fail with core.ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
