// Package services defines the business logic for documents and the business
// failure taxonomy shared by every layer above it.
//
// A business failure is an *Error carrying one of a closed set of kinds. The
// kind fixes the HTTP status the failure maps to, so handlers never pick a
// status themselves: they record the error and the fault middleware renders
// it. Translation into user-facing pages or JSON envelopes happens in the
// http/faults package.
package services

import (
	"errors"
	"net/http"
)

// Kind is the closed set of business failure variants.
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

// Status returns the HTTP status code bound to k.
func (k Kind) Status() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// String returns a stable snake_case name, used as a log and metric label.
func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is a business failure. Values are immutable: WithDetails and
// WithCause return copies.
type Error struct {
	kind    Kind
	message string
	details any
	cause   error
}

func newError(k Kind, msg string) *Error { return &Error{kind: k, message: msg} }

// BadRequest reports a request that violates a business rule (400).
func BadRequest(msg string) *Error { return newError(KindBadRequest, msg) }

// Unauthorized reports a missing or invalid caller identity (401).
func Unauthorized(msg string) *Error { return newError(KindUnauthorized, msg) }

// Forbidden reports a known caller acting outside its permissions (403).
func Forbidden(msg string) *Error { return newError(KindForbidden, msg) }

// NotFound reports a resource that does not exist (404).
func NotFound(msg string) *Error { return newError(KindNotFound, msg) }

// Conflict reports a request that clashes with current state (409).
func Conflict(msg string) *Error { return newError(KindConflict, msg) }

// Error implements error. The cause, when present, is appended for logs only;
// responses use Message.
func (e *Error) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Kind returns the failure variant.
func (e *Error) Kind() Kind { return e.kind }

// Status returns the HTTP status of the variant.
func (e *Error) Status() int { return e.kind.Status() }

// Message returns the caller-facing message.
func (e *Error) Message() string { return e.message }

// Details returns the structured payload attached with WithDetails, or nil.
func (e *Error) Details() any { return e.details }

// WithDetails returns a copy of e carrying d as its details payload.
func (e *Error) WithDetails(d any) *Error {
	cp := *e
	cp.details = d
	return &cp
}

// WithCause returns a copy of e wrapping err.
func (e *Error) WithCause(err error) *Error {
	cp := *e
	cp.cause = err
	return &cp
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// Document-related failures.
var (
	// ErrDocumentNotFound indicates that the document does not exist.
	ErrDocumentNotFound = NotFound("document not found")

	// ErrDocumentForbidden is returned when the document belongs to another user.
	ErrDocumentForbidden = Forbidden("document belongs to another user")

	// ErrDuplicateDocument is returned when the caller already uploaded the
	// same content.
	ErrDuplicateDocument = Conflict("document with identical content already exists")

	// ErrEmptyUpload is returned for a zero-byte upload.
	ErrEmptyUpload = BadRequest("uploaded file is empty")

	// ErrAuthRequired is returned when no caller identity was presented.
	ErrAuthRequired = Unauthorized("authentication required")
)
