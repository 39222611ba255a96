// Package apperr defines the classified error type every layer raises and the
// HTTP error funnel consumes.
//
// An *Error carries an explicit Kind and an intrinsic HTTP status. Anything
// that is not an *Error is normalized by Classify, which recognizes backend
// constraint codes, body-decoding failures and a few transport errors, and
// otherwise falls back to KindUnclassified.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Kind is the classification of a failure.
type Kind int

const (
	// KindUnclassified is anything not raised as a known category.
	KindUnclassified Kind = iota
	// KindValidation is input that fails a field rule.
	KindValidation
	// KindNotFound is an identifier or route without a match.
	KindNotFound
	// KindDatabase is a storage backend failure.
	KindDatabase
)

// String returns the kind's stable lowercase name, used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindDatabase:
		return "database"
	default:
		return "unclassified"
	}
}

// Status returns the default HTTP status for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. It is created where the failure is detected
// and consumed once by the error funnel.
type Error struct {
	Kind    Kind
	Message string
	// Status is the HTTP status. Zero means none was assigned.
	Status int
	// Code is a backend constraint code (SQLSTATE style) when one was recognized.
	Code string
	// BodyParse marks a request body that could not be decoded.
	BodyParse bool
	Cause     error

	stack pkgerrors.StackTrace
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// StatusCode returns the assigned status, or 500 when none was assigned.
func (e *Error) StatusCode() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// Stack renders the stack captured when the error was created.
func (e *Error) Stack() string {
	if len(e.stack) == 0 {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%+v", e.stack))
}

// New returns an error of the given kind, status and message.
func New(kind Kind, status int, msg string) *Error {
	return &Error{Kind: kind, Status: status, Message: msg, stack: capture(nil)}
}

// Validation returns a 400 validation error.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: msg, stack: capture(nil)}
}

// NotFound returns a 404 not-found error.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: msg, stack: capture(nil)}
}

// Database returns a 500 backend error. A constraint code found on cause is kept.
func Database(msg string, cause error) *Error {
	return &Error{
		Kind:    KindDatabase,
		Status:  http.StatusInternalServerError,
		Message: msg,
		Code:    constraintCode(cause),
		Cause:   cause,
		stack:   capture(cause),
	}
}

// Wrap marks cause as unclassified without assigning a status.
func Wrap(cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: KindUnclassified, Message: cause.Error(), Cause: cause, stack: capture(cause)}
}

// BodyParse returns the error raised when a request body cannot be decoded.
func BodyParse(cause error) *Error {
	msg := "Invalid JSON"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Kind:      KindUnclassified,
		Status:    http.StatusBadRequest,
		Message:   msg,
		BodyParse: true,
		Cause:     cause,
		stack:     capture(cause),
	}
}

// FromPanic turns a recovered panic value into an unclassified error.
func FromPanic(v any) *Error {
	if err, ok := v.(error); ok {
		return &Error{Kind: KindUnclassified, Message: err.Error(), Cause: err, stack: capture(nil)}
	}
	return &Error{Kind: KindUnclassified, Message: fmt.Sprint(v), stack: capture(nil)}
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// capture prefers a stack already attached to cause and otherwise records the
// caller of the constructor.
func capture(cause error) pkgerrors.StackTrace {
	var st stackTracer
	if cause != nil && errors.As(cause, &st) {
		return st.StackTrace()
	}
	trace := pkgerrors.New("").(stackTracer).StackTrace()
	// drop capture and the constructor
	if len(trace) > 2 {
		return trace[2:]
	}
	return trace
}
