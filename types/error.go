package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the assistant.
type ErrorCode string

// MCP client error codes
const (
	// ErrTransport covers network failures and non-success HTTP statuses
	// reaching the command server. Retried only for the catalog fetch.
	ErrTransport ErrorCode = "TRANSPORT"
	// ErrProtocol covers malformed or unexpected server response shapes.
	// Never retried.
	ErrProtocol ErrorCode = "PROTOCOL"
	// ErrCommandNotFound means the command name is absent from the catalog
	// or the server reported not-found on execution.
	ErrCommandNotFound ErrorCode = "COMMAND_NOT_FOUND"
	// ErrArgumentValidation means tool arguments failed schema validation.
	// Raised before any network call is made.
	ErrArgumentValidation ErrorCode = "ARGUMENT_VALIDATION"
)

// Workflow error codes
const (
	// ErrRoutingParse means the routing oracle's answer matched no known
	// agent token. Recovered locally via fallback, never surfaced.
	ErrRoutingParse ErrorCode = "ROUTING_PARSE"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
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

// GetErrorCode extracts the error code from an error chain.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool { return IsCode(err, ErrTransport) }

// IsProtocol reports whether err is a protocol (response shape) failure.
func IsProtocol(err error) bool { return IsCode(err, ErrProtocol) }

// IsCommandNotFound reports whether err means an unknown command.
func IsCommandNotFound(err error) bool { return IsCode(err, ErrCommandNotFound) }

// IsArgumentValidation reports whether err is an argument validation failure.
func IsArgumentValidation(err error) bool { return IsCode(err, ErrArgumentValidation) }
