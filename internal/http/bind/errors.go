// Package bind turns raw request input (JSON bodies, forms, query parameters,
// multipart files) into typed values and classifies every way that can fail.
//
// Handlers never build error responses for bad input. They return the typed
// error produced here and the fault middleware renders it:
//
//	*ValidationError          body or form fields violated their binding rules
//	*ConstraintViolationError a query/path parameter violated a constraint
//	*UnreadableBodyError      the body could not be decoded at all
//	*MissingParamError        a required parameter was absent
//	*TypeMismatchError        a parameter could not be converted to its type
//	*PayloadTooLargeError     the body exceeded the configured limit
package bind

import (
	"fmt"
	"strings"

	"github.com/tbourn/go-documind-backend/internal/http/response"
)

// ValidationError reports invalid fields of a bound body or form.
type ValidationError struct {
	Fields []response.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed: " + joinFields(e.Fields)
}

// Summary renders the fields as "field: reason, field: reason".
func (e *ValidationError) Summary() string { return joinFields(e.Fields) }

// Violation is one failed parameter constraint. Path is dotted: the operation
// name followed by the parameter name (e.g. "listDocuments.page").
type Violation struct {
	Path    string
	Message string
}

// Field returns the last segment of Path after the final dot.
func (v Violation) Field() string {
	if i := strings.LastIndexByte(v.Path, '.'); i >= 0 {
		return v.Path[i+1:]
	}
	return v.Path
}

// ConstraintViolationError reports parameters that violated a constraint.
type ConstraintViolationError struct {
	Violations []Violation
}

func (e *ConstraintViolationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Path+": "+v.Message)
	}
	return "constraint violation: " + strings.Join(parts, ", ")
}

// FieldErrors converts the violations to response field errors, preserving
// order.
func (e *ConstraintViolationError) FieldErrors() []response.FieldError {
	out := make([]response.FieldError, 0, len(e.Violations))
	for _, v := range e.Violations {
		out = append(out, response.FieldError{Field: v.Field(), Reason: v.Message})
	}
	return out
}

// UnreadableBodyError reports a body that could not be decoded.
type UnreadableBodyError struct {
	Cause error
}

func (e *UnreadableBodyError) Error() string { return "unreadable request body: " + errText(e.Cause) }
func (e *UnreadableBodyError) Unwrap() error { return e.Cause }

// MissingParamError reports an absent required parameter.
type MissingParamError struct {
	Name string
}

func (e *MissingParamError) Error() string { return "missing required parameter " + e.Name }

// TypeMismatchError reports a parameter whose value does not convert to the
// expected type.
type TypeMismatchError struct {
	Name  string
	Value string
	Type  string
	Cause error
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("parameter %s: cannot convert %q to %s", e.Name, e.Value, e.Type)
}
func (e *TypeMismatchError) Unwrap() error { return e.Cause }

// PayloadTooLargeError reports a body larger than Limit bytes.
type PayloadTooLargeError struct {
	Limit int64
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("request body exceeds %d bytes", e.Limit)
}

func joinFields(fields []response.FieldError) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return strings.Join(parts, ", ")
}

func errText(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}
