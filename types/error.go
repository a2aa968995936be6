package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the coordination plane.
type ErrorCode string

// Request error codes
const (
	// ErrValidation indicates malformed or invalid input. Surfaced
	// immediately to the caller, never retried.
	ErrValidation ErrorCode = "VALIDATION"

	// ErrUnsupportedTask indicates a composite task type with no known
	// decomposition. Fatal to that coordination request.
	ErrUnsupportedTask ErrorCode = "UNSUPPORTED_TASK"
)

// Agent error codes
const (
	// ErrAgentUnreachable indicates a probe or call to a specialist agent
	// timed out or failed at the transport level. Local and non-fatal: it
	// downgrades the agent's contribution, never a whole request.
	ErrAgentUnreachable ErrorCode = "AGENT_UNREACHABLE"

	// ErrAgentNotFound indicates the agent is not present in the registry.
	ErrAgentNotFound ErrorCode = "AGENT_NOT_FOUND"
)

// Internal error codes
const (
	// ErrRegistryFault indicates the registry's backing store failed. The
	// only condition that aborts an entire discovery cycle.
	ErrRegistryFault ErrorCode = "REGISTRY_FAULT"

	// ErrInternal is the catch-all for unexpected internal failures.
	ErrInternal ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	AgentID    string    `json:"agent_id,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithAgentID attaches the agent involved in the failure.
func (e *Error) WithAgentID(agentID string) *Error {
	e.AgentID = agentID
	return e
}

// CodeOf extracts the ErrorCode from err, or ErrInternal when err is not a
// structured Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}
