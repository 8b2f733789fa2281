package core

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxBodyChars caps a message body, counted in characters after trimming.
	MaxBodyChars = 2000
	// MaxIdentityChars caps a display name after sanitizing.
	MaxIdentityChars = 64
	// DefaultHistoryLimit is the bootstrap window a client fetches.
	DefaultHistoryLimit = 50
	// MaxHistoryLimit is the largest window Recent will return.
	MaxHistoryLimit = 200
)

// Message is the domain model for a chat message. ID is the sequence number.
type Message struct {
	ID        int64
	Room      string
	From      string
	Text      string
	CreatedAt time.Time
}

// NormalizeBody trims a raw message body and enforces the length cap.
func NormalizeBody(raw string) (string, error) {
	body := strings.TrimSpace(raw)
	if body == "" {
		return "", &ValidationError{Field: "message", Reason: "empty"}
	}
	if utf8.RuneCountInString(body) > MaxBodyChars {
		return "", &ValidationError{Field: "message", Reason: "too long"}
	}
	return body, nil
}

// NormalizeIdentity strips control characters, trims, and enforces the length cap.
func NormalizeIdentity(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, raw)
	identity := strings.TrimSpace(cleaned)
	if identity == "" {
		return "", &ValidationError{Field: "identity", Reason: "empty"}
	}
	if utf8.RuneCountInString(identity) > MaxIdentityChars {
		return "", &ValidationError{Field: "identity", Reason: "too long"}
	}
	return identity, nil
}

// ClampLimit bounds a history window to [0, MaxHistoryLimit].
func ClampLimit(limit int) int {
	switch {
	case limit < 0:
		return 0
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}
