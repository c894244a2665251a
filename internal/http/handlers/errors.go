package handlers

import (
	"errors"

	"github.com/tbourn/go-documind-backend/internal/services"
)

// Failures raised on purpose by the fault demonstration endpoints.
var (
	errDemoBadRequest   = services.BadRequest("test: the request is invalid")
	errDemoUnauthorized = services.Unauthorized("test: authentication is required")
	errDemoForbidden    = services.Forbidden("test: access is denied")
	errDemoNotFound     = services.NotFound("test: the resource could not be found")
	errDemoConflict     = services.Conflict("test: the resource is in conflict")
	errDemoInternal     = errors.New("test: an internal server error occurred")
)
