package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventNewMessage carries a stored chat message.
	EventNewMessage EventKind = iota
	// EventUserJoined notifies that an identity came online.
	EventUserJoined
	// EventUserLeft notifies that an identity has no connections left.
	EventUserLeft
	// EventWelcome is sent to a connection right after it is registered.
	EventWelcome
	// EventPong answers a client ping.
	EventPong
	// EventError notifies a single client about a rejected command.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventNewMessage:
		return "new_message"
	case EventUserJoined:
		return "user_joined"
	case EventUserLeft:
		return "user_left"
	case EventWelcome:
		return "welcome"
	case EventPong:
		return "pong"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
// Events are shared between recipients and must not be mutated after broadcast.
type Event struct {
	Kind    EventKind
	Room    string
	User    string
	ConnID  string   // EventWelcome only
	Online  []string // presence events and EventWelcome
	Message Message
	Error   *CoreError
}
