package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSetIdentity binds the connection to a display name.
	CommandSetIdentity CommandKind = iota
	// CommandSendMessage submits a chat message to the connection's room.
	CommandSendMessage
	// CommandPing asks for a pong on the same connection.
	CommandPing
)

// Command represents an action requested over a live connection.
type Command struct {
	Kind     CommandKind
	ConnID   string
	Identity string
	Text     string
}
