// Package engine holds the shared error taxonomy for the Pitchline
// session and tool-orchestration engine.
package engine

import (
	"fmt"
)

// Error is the engine-wide structured error. Tool backends, the context
// store, and the live session layer all report failures through this
// type so that retry classification and client-facing error events stay
// consistent.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Param     string    `json:"param,omitempty"`
	Code      string    `json:"code,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Detail    any       `json:"detail,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes engine errors.
type ErrorType string

const (
	ErrInvalidInput ErrorType = "invalid_input_error"
	ErrAuth         ErrorType = "authentication_error"
	ErrNotFound     ErrorType = "not_found_error"
	ErrRateLimit    ErrorType = "rate_limit_error"
	ErrTimeout      ErrorType = "timeout_error"
	ErrUpstream     ErrorType = "upstream_error"
	ErrConnection   ErrorType = "connection_error"
	ErrInternal     ErrorType = "internal_error"
)

// NewInvalidInputError creates an invalid input error.
func NewInvalidInputError(message string) *Error {
	return &Error{Type: ErrInvalidInput, Message: message}
}

// NewInvalidInputErrorWithParam creates an invalid input error naming
// the offending parameter.
func NewInvalidInputErrorWithParam(message, param string) *Error {
	return &Error{Type: ErrInvalidInput, Message: message, Param: param}
}

// NewAuthError creates an authentication error.
func NewAuthError(message string) *Error {
	return &Error{Type: ErrAuth, Message: message}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{Type: ErrNotFound, Message: message}
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(message string) *Error {
	return &Error{Type: ErrRateLimit, Message: message, Code: "rate_limit_exceeded"}
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(message string) *Error {
	return &Error{Type: ErrTimeout, Message: message, Code: "timeout"}
}

// NewUpstreamError wraps a failure from an external collaborator
// (search backend, enrichment API, model provider).
func NewUpstreamError(upstream string, underlying error) *Error {
	return &Error{
		Type:    ErrUpstream,
		Message: fmt.Sprintf("%s: %v", upstream, underlying),
		Detail:  underlying.Error(),
	}
}

// NewConnectionError creates a connection-lifecycle error (duplicate
// transport, handshake failure, closed session).
func NewConnectionError(message string) *Error {
	return &Error{Type: ErrConnection, Message: message, Code: "connection_error"}
}

// NewInternalError creates a generic internal error.
func NewInternalError(message string) *Error {
	return &Error{Type: ErrInternal, Message: message}
}

// IsRetryable reports whether the error class is worth retrying.
// Timeouts, rate limits, and upstream (5xx-class) failures are
// transient; bad input, auth, and not-found are not.
func (e *Error) IsRetryable() bool {
	if e == nil {
		return false
	}
	switch e.Type {
	case ErrRateLimit, ErrTimeout, ErrUpstream:
		return true
	default:
		return false
	}
}

// Unwrap returns the underlying error when one was attached.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	if ue, ok := e.Detail.(error); ok {
		return ue
	}
	return nil
}
