package models

import "fmt"

// ErrorKind is the closed set of error kinds surfaced by the core pipeline.
// HTTP handlers map each kind to a status code in a single place.
type ErrorKind string

const (
	KindTransport         ErrorKind = "transport"
	KindHTTPClientError   ErrorKind = "http_client_error"
	KindHTTPServerError   ErrorKind = "http_server_error"
	KindRateLimited       ErrorKind = "rate_limited"
	KindRobotsDenied      ErrorKind = "robots_denied"
	KindRenderTimeout     ErrorKind = "render_timeout"
	KindParseError        ErrorKind = "parse_error"
	KindSchemaViolation   ErrorKind = "schema_violation"
	KindDuplicate         ErrorKind = "duplicate"
	KindNotFound          ErrorKind = "not_found"
	KindInvalidArgument   ErrorKind = "invalid_argument"
	KindConflict          ErrorKind = "conflict"
	KindCancelled         ErrorKind = "cancelled"
	KindInternal          ErrorKind = "internal"
)

// Error is the core typed error: every failure that crosses a package
// boundary in the pipeline should be (or wrap) one of these so callers can
// branch on Kind() instead of string-matching messages.
type Error struct {
	kind    ErrorKind
	message string
	cause   error
}

// NewError builds a typed error with no wrapped cause.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// WrapError builds a typed error that wraps an underlying cause.
func WrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

// Kind returns the error's classification.
func (e *Error) Kind() ErrorKind {
	return e.kind
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.cause
}

// NewValidationError is a convenience constructor for invalid_argument errors
// raised by model-level Validate() methods.
func NewValidationError(entity, reason string) *Error {
	return NewError(KindInvalidArgument, fmt.Sprintf("%s: %s", entity, reason))
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, defaulting to
// KindInternal when the error carries no classification.
func KindOf(err error) ErrorKind {
	var typed *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			typed = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if typed == nil {
		return KindInternal
	}
	return typed.kind
}
