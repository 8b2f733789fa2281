package http

import (
	"encoding/json"

	"github.com/samber/lo"

	"github.com/vovakirdan/huddle-server/internal/core"
	"github.com/vovakirdan/huddle-server/internal/proto"
)

func badRequest(msg string) *core.CoreError {
	return &core.CoreError{Code: core.ErrCodeBadRequest, Message: msg}
}

// invalidField reports a payload field rejected by its tag rules, classed like the domain checks.
func invalidField(field string) *core.CoreError {
	return core.ToCoreError(&core.ValidationError{Field: field, Reason: "empty or too long"})
}

// inboundToCommand decodes and validates an envelope into a core command.
func inboundToCommand(connID string, inbound proto.Inbound) (*core.Command, *core.CoreError) {
	if err := proto.Validate(inbound); err != nil {
		return nil, badRequest("unknown message type")
	}

	switch inbound.Type {
	case proto.InboundTypeSetIdentity:
		var data proto.SetIdentityData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, badRequest("malformed set_identity payload")
		}
		if err := proto.Validate(data); err != nil {
			return nil, invalidField("identity")
		}
		return &core.Command{
			Kind:     core.CommandSetIdentity,
			ConnID:   connID,
			Identity: data.Identity,
		}, nil
	case proto.InboundTypeSendMessage:
		var data proto.SendMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, badRequest("malformed send_message payload")
		}
		if err := proto.Validate(data); err != nil {
			return nil, invalidField("message")
		}
		return &core.Command{
			Kind:   core.CommandSendMessage,
			ConnID: connID,
			Text:   data.Message,
		}, nil
	case proto.InboundTypePing:
		return &core.Command{Kind: core.CommandPing, ConnID: connID}, nil
	default:
		return nil, badRequest("unknown message type")
	}
}

func messageToProto(msg core.Message) proto.EventMessage {
	return proto.EventMessage{
		ID:        msg.ID,
		Room:      msg.Room,
		Username:  msg.From,
		Message:   msg.Text,
		Timestamp: msg.CreatedAt.UTC().Format(proto.TimestampLayout),
	}
}

func messagesToProto(msgs []core.Message) []proto.EventMessage {
	return lo.Map(msgs, func(item core.Message, _ int) proto.EventMessage {
		return messageToProto(item)
	})
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventNewMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNewMessage,
			Data:  messageToProto(event.Message),
		}
	case core.EventUserJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserJoined,
			Data:  proto.EventPresence{Username: event.User, OnlineUsers: event.Online},
		}
	case core.EventUserLeft:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserLeft,
			Data:  proto.EventPresence{Username: event.User, OnlineUsers: event.Online},
		}
	case core.EventWelcome:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventWelcome,
			Data: proto.WelcomeData{
				ConnectionID: event.ConnID,
				Room:         event.Room,
				OnlineUsers:  event.Online,
			},
		}
	case core.EventPong:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventPong}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
