package core

import (
	"errors"
	"fmt"
)

// Error codes carried on the wire for domain errors.
const (
	ErrCodeValidation   = "validation_error"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeBadRequest   = "bad_request"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeInternal     = "internal_error"
)

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrStoreClosed        = errors.New("message store closed")
	ErrSlowConsumer       = errors.New("outbound queue full")
	ErrNoBroker           = errors.New("no broker attached")
)

// ValidationError reports an empty or oversized message body or an unusable identity.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Code returns the wire error code.
func (e *ValidationError) Code() string { return ErrCodeValidation }

// UnauthorizedError is returned when a connection submits a message before binding an identity.
type UnauthorizedError struct {
	ConnID string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("connection %s has no identity", e.ConnID)
}

// Code returns the wire error code.
func (e *UnauthorizedError) Code() string { return ErrCodeUnauthorized }

// TransportError describes a failed delivery to a single connection.
type TransportError struct {
	ConnID string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.ConnID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// CoreError wraps a code and human-readable message sent back to a single client.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// ToCoreError converts a domain error into its client-facing form.
func ToCoreError(err error) *CoreError {
	var (
		verr *ValidationError
		uerr *UnauthorizedError
		cerr *CoreError
	)
	switch {
	case errors.As(err, &cerr):
		return cerr
	case errors.As(err, &verr):
		return coreError(verr.Code(), verr.Error())
	case errors.As(err, &uerr):
		return coreError(uerr.Code(), "identity required")
	default:
		return coreError(ErrCodeInternal, "internal error")
	}
}
