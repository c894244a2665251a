package faults

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tbourn/go-documind-backend/internal/http/bind"
	"github.com/tbourn/go-documind-backend/internal/http/response"
	"github.com/tbourn/go-documind-backend/internal/services"
)

// Class names a row of the failure table. It doubles as the metric label.
type Class string

const (
	ClassTooLarge     Class = "payload_too_large"
	ClassValidation   Class = "validation"
	ClassConstraint   Class = "constraint_violation"
	ClassUnreadable   Class = "unreadable_body"
	ClassMissingParam Class = "missing_parameter"
	ClassTypeMismatch Class = "type_mismatch"
	ClassBusiness     Class = "business"
	ClassUnexpected   Class = "unexpected"

	ClassNoRoute  Class = "no_route"
	ClassNoMethod Class = "no_method"
)

// Failure is a classified error, ready to render.
type Failure struct {
	Class   Class
	Status  int
	Message string
	// Details is nil, a string or []response.FieldError.
	Details any
	// Summary is "field: reason, ..." for validation failures.
	Summary string
	Err     error
}

// Expected reports whether the failure is caller-caused (logged at warn).
func (f Failure) Expected() bool { return f.Class != ClassUnexpected }

// Body returns the envelope error body for f.
func (f Failure) Body() response.ErrorBody { return response.WithDetails(f.Message, f.Details) }

// PanicError carries a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// The failure table. Rows are tried in order and the first match wins, so
// more specific failures are listed before the ones they might wrap.
//
//	#  match                            status          message
//	1  *bind.PayloadTooLargeError,      413             MsgTooLarge (rendered by LimitBody)
//	   *http.MaxBytesError
//	2  *bind.ValidationError            400             MsgInvalidInput + field list
//	3  *bind.ConstraintViolationError   400             MsgInvalidInput + field list
//	4  *bind.UnreadableBodyError        400             MsgUnreadableBody
//	5  *bind.MissingParamError          400             MsgMissingParam + name
//	6  *bind.TypeMismatchError          400             MsgTypeMismatch + name
//	7  *services.Error                  kind's status   own message, own details
//	8  anything else                    500             MsgInternal
var table = []func(error) (Failure, bool){
	func(err error) (Failure, bool) {
		var tl *bind.PayloadTooLargeError
		var mbe *http.MaxBytesError
		if errors.As(err, &tl) || errors.As(err, &mbe) {
			return Failure{Class: ClassTooLarge, Status: http.StatusRequestEntityTooLarge, Message: MsgTooLarge}, true
		}
		return Failure{}, false
	},
	func(err error) (Failure, bool) {
		var ve *bind.ValidationError
		if !errors.As(err, &ve) {
			return Failure{}, false
		}
		return Failure{
			Class:   ClassValidation,
			Status:  http.StatusBadRequest,
			Message: MsgInvalidInput,
			Details: ve.Fields,
			Summary: ve.Summary(),
		}, true
	},
	func(err error) (Failure, bool) {
		var cv *bind.ConstraintViolationError
		if !errors.As(err, &cv) {
			return Failure{}, false
		}
		return Failure{Class: ClassConstraint, Status: http.StatusBadRequest, Message: MsgInvalidInput, Details: cv.FieldErrors()}, true
	},
	func(err error) (Failure, bool) {
		var ue *bind.UnreadableBodyError
		if !errors.As(err, &ue) {
			return Failure{}, false
		}
		return Failure{Class: ClassUnreadable, Status: http.StatusBadRequest, Message: MsgUnreadableBody}, true
	},
	func(err error) (Failure, bool) {
		var me *bind.MissingParamError
		if !errors.As(err, &me) {
			return Failure{}, false
		}
		return Failure{Class: ClassMissingParam, Status: http.StatusBadRequest, Message: MsgMissingParam + me.Name}, true
	},
	func(err error) (Failure, bool) {
		var te *bind.TypeMismatchError
		if !errors.As(err, &te) {
			return Failure{}, false
		}
		return Failure{Class: ClassTypeMismatch, Status: http.StatusBadRequest, Message: MsgTypeMismatch + te.Name}, true
	},
	func(err error) (Failure, bool) {
		be, ok := services.AsError(err)
		if !ok {
			return Failure{}, false
		}
		return Failure{Class: ClassBusiness, Status: be.Status(), Message: be.Message(), Details: be.Details()}, true
	},
}

// Classify maps err to its row of the failure table.
func Classify(err error) Failure {
	for _, match := range table {
		if f, ok := match(err); ok {
			f.Err = err
			return f
		}
	}
	return Failure{Class: ClassUnexpected, Status: http.StatusInternalServerError, Message: MsgInternal, Err: err}
}
