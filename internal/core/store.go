package core

//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks

import "context"

// MessageStore is the append-only, ordered message log.
type MessageStore interface {
	// Append assigns the next sequence number and creation time to a message.
	// Fails with *ValidationError when the body is empty or too long.
	Append(ctx context.Context, room, from, text string) (Message, error)

	// Recent returns up to limit newest messages of a room, oldest first.
	// Limit is clamped to MaxHistoryLimit.
	Recent(ctx context.Context, room string, limit int) ([]Message, error)

	// Close releases the underlying storage.
	Close() error
}

// Censor rewrites a message body before it is stored.
type Censor interface {
	Censor(text string) string
}
