package core

// Room groups the connections sharing one message stream and one presence set.
type Room struct {
	Name     string
	presence *Presence
	conns    map[string]*Connection
}

// NewRoom constructs a room with no connections.
func NewRoom(name string) *Room {
	return &Room{
		Name:     name,
		presence: NewPresence(),
		conns:    make(map[string]*Connection),
	}
}

// AddConnection inserts a connection into the room. Returns true if newly added.
func (r *Room) AddConnection(c *Connection) bool {
	if _, exists := r.conns[c.ID]; exists {
		return false
	}
	r.conns[c.ID] = c
	return true
}

// RemoveConnection deletes a connection from the room. Returns true if removed.
func (r *Room) RemoveConnection(c *Connection) bool {
	if _, exists := r.conns[c.ID]; !exists {
		return false
	}
	delete(r.conns, c.ID)
	return true
}

// Presence returns the room's presence tracker.
func (r *Room) Presence() *Presence {
	return r.presence
}

// Broadcast enqueues an event on every connection and returns the ones whose queue was full.
func (r *Room) Broadcast(event *Event) []*Connection {
	var overflowed []*Connection
	for _, c := range r.conns {
		if !c.deliver(event) {
			overflowed = append(overflowed, c)
		}
	}
	return overflowed
}

// Len returns the number of registered connections.
func (r *Room) Len() int {
	return len(r.conns)
}

// Empty returns true if no connections are in the room.
func (r *Room) Empty() bool {
	return len(r.conns) == 0
}
