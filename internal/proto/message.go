package proto

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags of an inbound payload.
func Validate(v any) error {
	return validate.Struct(v)
}

// TimestampLayout is used for every timestamp on the wire.
const TimestampLayout = time.RFC3339Nano

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type" validate:"required,oneof=set_identity send_message ping"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeSetIdentity = "set_identity"
	InboundTypeSendMessage = "send_message"
	InboundTypePing        = "ping"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNewMessage = "new_message"
	EventUserJoined = "user_joined"
	EventUserLeft   = "user_left"
	EventWelcome    = "welcome"
	EventPong       = "pong"
)

// SetIdentityData binds the connection to a display name.
type SetIdentityData struct {
	Identity string `json:"identity" validate:"required,max=512"`
}

// SendMessageData is a chat message from the client. Identity is informational;
// the identity bound to the connection is authoritative.
type SendMessageData struct {
	Message  string `json:"message" validate:"required,max=16384"`
	Identity string `json:"identity,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage is a stored chat message as seen by clients, live or via history.
type EventMessage struct {
	ID        int64  `json:"id"`
	Room      string `json:"room,omitempty"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// EventPresence is the payload of user_joined and user_left.
type EventPresence struct {
	Username    string   `json:"username"`
	OnlineUsers []string `json:"online_users"`
}

// WelcomeData is the payload of the welcome event, sent once right after the connection is accepted.
type WelcomeData struct {
	ConnectionID string   `json:"connection_id"`
	Room         string   `json:"room"`
	OnlineUsers  []string `json:"online_users"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// SubmitRequest is the request/response fallback for send_message.
type SubmitRequest struct {
	Username string `json:"username" binding:"required,max=512"`
	Message  string `json:"message" binding:"required,max=16384"`
}

// Response is the envelope of every /api endpoint.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}
