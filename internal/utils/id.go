package utils

import "github.com/google/uuid"

// NewID returns a random, process-unique identifier.
func NewID() string {
	return uuid.NewString()
}
