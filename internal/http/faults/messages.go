package faults

// User-facing messages. Only these (and the messages of business failures)
// ever reach a response body.
const (
	MsgInvalidInput   = "request values are invalid"
	MsgUnreadableBody = "request body could not be read"
	MsgMissingParam   = "required request parameter is missing: "
	MsgTypeMismatch   = "request parameter has an invalid type: "
	MsgInternal       = "an internal server error occurred"
	MsgTooLarge       = "upload size exceeds the allowed limit"
	MsgNoMethod       = "HTTP method not supported: "
	MsgNoRoute        = "the requested resource could not be found"
)

// FlashErrorMessage is the flash key under which the view handler stores the
// validation summary before redirecting.
const FlashErrorMessage = "errorMessage"

// Metric stage labels.
const (
	stagePreRouting = "prerouting"
	stageAPI        = "api"
	stageView       = "view"
)
