package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// nextEvent returns the very next queued event, failing if there is none.
func nextEvent(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()

	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event queued")
		return nil
	}
}

func noEvent(t *testing.T, ch <-chan *Event) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	default:
	}
}

// memStore is a minimal MessageStore for tests inside the package.
type memStore struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

func (s *memStore) Append(_ context.Context, room, from, text string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Message{}, s.err
	}
	msg := Message{
		ID:        int64(len(s.messages) + 1),
		Room:      room,
		From:      from,
		Text:      text,
		CreatedAt: time.Now(),
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

func (s *memStore) Recent(_ context.Context, _ string, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.messages) {
		limit = len(s.messages)
	}
	out := make([]Message, limit)
	copy(out, s.messages[len(s.messages)-limit:])
	return out, nil
}

func (s *memStore) Close() error { return nil }

// newTestManager wires a manager and broker on top of memStore.
func newTestManager(buffer int) (*Manager, *Broker, *memStore) {
	st := &memStore{}
	m := NewManager(ManagerOptions{SendBuffer: buffer}, nil)
	b := NewBroker(st, m, nil, nil)
	m.UseBroker(b)
	return m, b, st
}

// connect registers a connection and consumes its welcome event.
func connect(t *testing.T, m *Manager) *Connection {
	t.Helper()

	conn := m.Connect()
	ev := nextEvent(t, conn.Events())
	if ev.Kind != EventWelcome || ev.ConnID != conn.ID {
		t.Fatalf("expected welcome first, got %+v", ev)
	}
	return conn
}
