// Package domainerrors defines the coded error type shared by all services.
//
// Services return these so transports can translate them into wire responses
// without inspecting error strings. Stores return sentinel errors
// (pkg/platform/sentinel) and services wrap them with a code here.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for transport mapping and retry semantics.
type Code string

const (
	// CodeValidation covers malformed input the caller must correct before
	// resubmitting (unknown access type, disallowed duration, empty fields).
	CodeValidation Code = "validation_error"

	// CodeBadRequest covers structurally broken requests (unparseable body,
	// non-numeric id segment).
	CodeBadRequest Code = "bad_request"

	// CodeNotFound means the referenced record does not exist. Retrying with
	// the same id will not succeed.
	CodeNotFound Code = "not_found"

	// CodeUnauthorized means no authenticated caller was established.
	CodeUnauthorized Code = "unauthorized"

	// CodeForbidden means the caller is authenticated but fails a role or
	// ownership check.
	CodeForbidden Code = "forbidden"

	// CodeConflict means a uniqueness or concurrent-update conflict.
	CodeConflict Code = "conflict"

	// CodeInvariantViolation means the operation attempted an illegal state
	// transition (mutating a terminal record). It signals a stale client
	// view; the stored record is left untouched.
	CodeInvariantViolation Code = "invalid_state_transition"

	// CodeUnavailable means the backing store failed; the caller may retry.
	CodeUnavailable Code = "store_unavailable"

	// CodeInternal is the catch-all for unexpected failures.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. Message is safe to show to API callers
// except for CodeInternal, which transports must redact.
type Error struct {
	Code    Code
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// New creates a coded error with a caller-facing message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is / errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, wrapped: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.wrapped
	}
	return false
}

// Is is an alias for HasCode; it reads better in test assertions.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf returns the outermost code carried by err, or CodeInternal when err
// carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the caller-facing message of the outermost coded error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
