// Package domainerrors carries coded errors across layer boundaries.
// Services attach a Code so transport can pick the right HTTP status without
// inspecting error strings, and so tests can assert on failure class.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for transport mapping and test assertions.
type Code string

const (
	// CodeValidation: request shape was legal but semantically invalid.
	CodeValidation Code = "validation_error"
	// CodeInvalidInput: malformed identifier or value at a trust boundary.
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest: request could not be parsed or is missing fields.
	CodeBadRequest Code = "bad_request"
	// CodeUnauthorized: missing or invalid credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden: authenticated but not permitted (wrong role or tenant).
	CodeForbidden Code = "forbidden"
	// CodeNotFound: entity does not exist within the caller's organization.
	CodeNotFound Code = "not_found"
	// CodeConflict: state transition or uniqueness violation.
	CodeConflict Code = "conflict"
	// CodeInvariantViolation: a domain constructor rejected illegal state.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal: unexpected infrastructure failure. Details are logged,
	// never returned to callers.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. The wrapped cause, when present, is
// reachable through errors.Unwrap for sentinel checks.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var derr *Error
	for errors.As(err, &derr) {
		if derr.Code == code {
			return true
		}
		err = derr.cause
		if err == nil {
			return false
		}
	}
	return false
}

// Is is shorthand for HasCode, matching call sites that read like errors.Is.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the outermost code, defaulting to CodeInternal so unknown
// failures never leak detail through transport.
func CodeOf(err error) Code {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Code
	}
	return CodeInternal
}

// MessageOf extracts the outermost message, empty for non-domain errors.
func MessageOf(err error) string {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Message
	}
	return ""
}
