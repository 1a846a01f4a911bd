// Package domainerrors (imported as dErrors) is the error taxonomy the whole
// core speaks. Services raise coded errors with human-readable messages that
// name the entity or rule that failed; the HTTP layer maps codes to status
// codes without ever collapsing distinct kinds into a generic error.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for transport mapping and programmatic handling.
type Code string

const (
	// CodeValidation marks malformed or out-of-range domain input
	// (empty batch, outside-schedule-window, cross-subject transfer).
	CodeValidation Code = "validation"
	// CodeInvalidInput marks values rejected at a trust boundary before any
	// domain rule runs (bad UUID, unknown role, malformed period token).
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest marks unparseable request envelopes.
	CodeBadRequest Code = "bad_request"
	// CodeNotFound marks a referenced entity that does not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict marks uniqueness or state violations: duplicate check-in,
	// group already has a teacher, student already enrolled in the subject.
	CodeConflict Code = "conflict"
	// CodeForbidden marks a caller without the capability for the operation.
	CodeForbidden Code = "forbidden"
	// CodeInvariantViolation marks a broken model invariant; constructors and
	// transition guards return it, services usually translate it.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal marks unexpected store or infrastructure failure.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. Message is user-visible.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a coded error with a fixed message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause chain for errors.Is/As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			break
		}
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries no code at all.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost user-visible message. Uncoded errors are
// masked so infrastructure details never leak to API consumers.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// HTTPStatus maps a code to its transport status. The mapping is a consumer
// concern but lives here so every handler agrees on it.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvariantViolation:
		return http.StatusConflict
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
