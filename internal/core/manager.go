package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/huddle-server/internal/utils"
)

// DefaultRoom is the room every connection joins when none is configured.
const DefaultRoom = "general"

// Submitter accepts chat messages on behalf of an identity. Implemented by Broker.
type Submitter interface {
	Submit(ctx context.Context, room, identity, text string) (Message, error)
}

// ManagerOptions tunes the connection manager.
type ManagerOptions struct {
	Room       string
	SendBuffer int
}

// Manager owns live connections and is the only component that sends to clients.
type Manager struct {
	room       string
	sendBuffer int
	broker     Submitter
	log        *zerolog.Logger

	// emitMu orders every outbound broadcast so all connections observe one sequence.
	emitMu sync.Mutex

	mu    sync.RWMutex
	conns map[string]*Connection
	rooms map[string]*Room
}

// NewManager creates a manager with the default room already open.
func NewManager(opts ManagerOptions, logger *zerolog.Logger) *Manager {
	if opts.Room == "" {
		opts.Room = DefaultRoom
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	m := &Manager{
		room:       opts.Room,
		sendBuffer: opts.SendBuffer,
		log:        logger,
		conns:      make(map[string]*Connection),
		rooms:      make(map[string]*Room),
	}
	m.rooms[opts.Room] = NewRoom(opts.Room)
	return m
}

// UseBroker attaches the component that sequences submitted messages.
func (m *Manager) UseBroker(s Submitter) {
	m.broker = s
}

// DefaultRoom returns the room new connections join.
func (m *Manager) DefaultRoom() string {
	return m.room
}

// Connect registers a new connection. It is not online until an identity is bound.
// The first event on its queue is always EventWelcome.
func (m *Manager) Connect() *Connection {
	conn := NewConnection(utils.NewID(), m.room, m.sendBuffer)

	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	m.conns[conn.ID] = conn
	room := m.roomLocked(conn.Room)
	room.AddConnection(conn)
	m.mu.Unlock()

	conn.deliver(&Event{
		Kind:   EventWelcome,
		Room:   conn.Room,
		ConnID: conn.ID,
		Online: room.Presence().Online(),
	})

	m.log.Debug().Str("conn_id", conn.ID).Str("room", conn.Room).Msg("connection registered")
	return conn
}

// SetIdentity validates a display name and binds the connection to it, announcing
// presence changes to the room. Binding the current identity again is a no-op.
func (m *Manager) SetIdentity(connID, raw string) error {
	identity, err := NormalizeIdentity(raw)
	if err != nil {
		return err
	}

	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	conn, room, err := m.lookup(connID)
	if err != nil {
		return err
	}
	if conn.Identity() == identity {
		return nil
	}

	change := room.Presence().Bind(conn.ID, identity)
	conn.setIdentity(identity)

	m.log.Info().
		Str("conn_id", conn.ID).
		Str("identity", identity).
		Int("online", len(change.Online)).
		Msg("identity bound")

	if change.Left != "" {
		m.broadcastLocked(room.Name, &Event{Kind: EventUserLeft, Room: room.Name, User: change.Left, Online: change.Online})
	}
	if change.Joined != "" {
		m.broadcastLocked(room.Name, &Event{Kind: EventUserJoined, Room: room.Name, User: change.Joined, Online: change.Online})
	}
	return nil
}

// SubmitMessage forwards a message from an identified connection to the broker.
func (m *Manager) SubmitMessage(ctx context.Context, connID, text string) (Message, error) {
	m.mu.RLock()
	conn, ok := m.conns[connID]
	m.mu.RUnlock()
	if !ok {
		return Message{}, ErrConnectionNotFound
	}

	identity := conn.Identity()
	if identity == "" {
		return Message{}, &UnauthorizedError{ConnID: connID}
	}
	if m.broker == nil {
		return Message{}, ErrNoBroker
	}
	return m.broker.Submit(ctx, conn.Room, identity, text)
}

// Disconnect unregisters a connection. Safe to call more than once; only the first call has effect.
func (m *Manager) Disconnect(connID string) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	conn, ok := m.conns[connID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.conns, connID)
	room := m.roomLocked(conn.Room)
	room.RemoveConnection(conn)
	m.mu.Unlock()

	conn.close(nil)

	removed, online := room.Presence().Unbind(connID)
	m.log.Info().
		Str("conn_id", connID).
		Str("identity", conn.Identity()).
		Bool("departed", removed != "").
		Msg("connection closed")

	if removed != "" {
		m.broadcastLocked(room.Name, &Event{Kind: EventUserLeft, Room: room.Name, User: removed, Online: online})
	}
}

// Broadcast sends an event to every connection in the room, the originator included.
func (m *Manager) Broadcast(room string, event *Event) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()
	m.broadcastLocked(room, event)
}

func (m *Manager) broadcastLocked(room string, event *Event) {
	m.mu.RLock()
	r, ok := m.rooms[room]
	var overflowed []*Connection
	if ok {
		overflowed = r.Broadcast(event)
	}
	m.mu.RUnlock()

	for _, conn := range overflowed {
		err := &TransportError{ConnID: conn.ID, Err: ErrSlowConsumer}
		m.log.Warn().Err(err).Str("event", event.Kind.String()).Msg("dropping slow connection")
		conn.close(err)
	}
}

// Reply sends an event to a single connection.
func (m *Manager) Reply(connID string, event *Event) error {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	conn, _, err := m.lookup(connID)
	if err != nil {
		return err
	}
	if !conn.deliver(event) {
		err := &TransportError{ConnID: conn.ID, Err: ErrSlowConsumer}
		conn.close(err)
		return err
	}
	return nil
}

// Handle dispatches a command received on a live connection.
func (m *Manager) Handle(ctx context.Context, cmd *Command) error {
	switch cmd.Kind {
	case CommandSetIdentity:
		return m.SetIdentity(cmd.ConnID, cmd.Identity)
	case CommandSendMessage:
		_, err := m.SubmitMessage(ctx, cmd.ConnID, cmd.Text)
		return err
	case CommandPing:
		return m.Reply(cmd.ConnID, &Event{Kind: EventPong})
	default:
		return coreError(ErrCodeBadRequest, "unknown command")
	}
}

// Online returns the sorted online identities of a room.
func (m *Manager) Online(room string) []string {
	m.mu.RLock()
	r, ok := m.rooms[room]
	m.mu.RUnlock()
	if !ok {
		return []string{}
	}
	return r.Presence().Online()
}

// Count returns the number of registered connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// CloseAll signals every connection to shut down. Transports finish cleanup through Disconnect.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		c.close(nil)
	}
}

func (m *Manager) lookup(connID string) (*Connection, *Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[connID]
	if !ok {
		return nil, nil, ErrConnectionNotFound
	}
	return conn, m.rooms[conn.Room], nil
}

// roomLocked returns the named room, creating it if needed. Caller holds m.mu for writing.
func (m *Manager) roomLocked(name string) *Room {
	r, ok := m.rooms[name]
	if !ok {
		r = NewRoom(name)
		m.rooms[name] = r
	}
	return r
}
