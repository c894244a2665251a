// Package response defines the JSON envelopes returned by every API endpoint.
//
// Every body is an Envelope. A success envelope may carry a message, data and
// metadata; a failure envelope carries only an ErrorBody. The two branches are
// produced by disjoint constructors (OK*, Fail) and no code path fills both.
// Absent fields are omitted from the wire, never serialized as null.
//
// Example failure:
//
//	HTTP/1.1 400 Bad Request
//	{
//	  "success": false,
//	  "error": {
//	    "message": "request values are invalid",
//	    "details": [{ "field": "name", "reason": "name is required" }]
//	  }
//	}
package response

// Envelope is the generic API body.
type Envelope[T any] struct {
	Success bool       `json:"success" example:"true"`
	Message string     `json:"message,omitempty"`
	Data    *T         `json:"data,omitempty"`
	Meta    any        `json:"meta,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failure. Details is nil, a string, or []FieldError.
type ErrorBody struct {
	Message string `json:"message" example:"request values are invalid"`
	Details any    `json:"details,omitempty"`
}

// FieldError names one invalid input and why it was rejected.
type FieldError struct {
	Field  string `json:"field" example:"name"`
	Reason string `json:"reason" example:"name is required"`
}

// Empty is the type parameter for envelopes that never carry data.
type Empty struct{}

// OK returns a success envelope carrying data.
func OK[T any](data T) Envelope[T] {
	return Envelope[T]{Success: true, Data: &data}
}

// OKMessage returns a success envelope carrying only a message.
func OKMessage(msg string) Envelope[Empty] {
	return Envelope[Empty]{Success: true, Message: msg}
}

// OKEmpty returns a bare success envelope: {"success":true}.
func OKEmpty() Envelope[Empty] {
	return Envelope[Empty]{Success: true}
}

// OKWithMeta returns a success envelope carrying data and metadata
// (e.g. pagination counters).
func OKWithMeta[T any](data T, meta any) Envelope[T] {
	return Envelope[T]{Success: true, Data: &data, Meta: meta}
}

// Fail returns a failure envelope with the given error body.
func Fail(body ErrorBody) Envelope[Empty] {
	return Envelope[Empty]{Success: false, Error: &body}
}

// Message returns an ErrorBody without details.
func Message(msg string) ErrorBody { return ErrorBody{Message: msg} }

// WithDetails returns an ErrorBody carrying details. A nil details value or
// an empty field list is treated as absent.
func WithDetails(msg string, details any) ErrorBody {
	if fe, ok := details.([]FieldError); ok && len(fe) == 0 {
		details = nil
	}
	return ErrorBody{Message: msg, Details: details}
}
