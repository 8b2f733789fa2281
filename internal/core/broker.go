package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Broadcaster fans an event out to a room. Implemented by Manager.
type Broadcaster interface {
	Broadcast(room string, event *Event)
}

// Broker validates and sequences chat messages. Every append funnels through it,
// so the order of Broadcast calls matches storage order.
type Broker struct {
	mu     sync.Mutex
	store  MessageStore
	out    Broadcaster
	censor Censor
	log    *zerolog.Logger
}

// NewBroker wires a broker to its store and broadcaster. censor may be nil.
func NewBroker(store MessageStore, out Broadcaster, censor Censor, logger *zerolog.Logger) *Broker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Broker{
		store:  store,
		out:    out,
		censor: censor,
		log:    logger,
	}
}

// Submit validates, stores and broadcasts a message. Failures are terminal; nothing is retried.
func (b *Broker) Submit(ctx context.Context, room, identity, text string) (Message, error) {
	identity, err := NormalizeIdentity(identity)
	if err != nil {
		return Message{}, err
	}
	body, err := NormalizeBody(text)
	if err != nil {
		b.log.Debug().Err(err).Str("identity", identity).Msg("message rejected")
		return Message{}, err
	}
	if b.censor != nil {
		body = b.censor.Censor(body)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	msg, err := b.store.Append(ctx, room, identity, body)
	if err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}

	b.log.Debug().Int64("seq", msg.ID).Str("room", room).Str("identity", identity).Msg("message stored")
	if b.out != nil {
		b.out.Broadcast(room, &Event{Kind: EventNewMessage, Room: room, User: identity, Message: msg})
	}
	return msg, nil
}

// Recent returns the bootstrap window for a room, oldest first.
func (b *Broker) Recent(ctx context.Context, room string, limit int) ([]Message, error) {
	msgs, err := b.store.Recent(ctx, room, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	return msgs, nil
}
