package faults

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-documind-backend/internal/http/middleware"
	"github.com/tbourn/go-documind-backend/internal/http/response"
	"github.com/tbourn/go-documind-backend/internal/http/views"
)

// pending returns the failure recorded by the chain, or nil when there is
// none or a response was already written.
func pending(c *gin.Context) error {
	if c.Writer.Written() {
		return nil
	}
	last := c.Errors.Last()
	if last == nil {
		return nil
	}
	return last.Err
}

// recovered turns a recovered value into an error, re-panicking for
// http.ErrAbortHandler which net/http uses to abort a response on purpose.
func recovered(rec any) error {
	if rec == http.ErrAbortHandler {
		panic(rec)
	}
	return &PanicError{Value: rec, Stack: debug.Stack()}
}

func logFailure(c *gin.Context, stage string, f Failure) {
	lg := middleware.LoggerFrom(c)
	var ev *zerolog.Event
	if f.Expected() {
		ev = lg.Warn()
	} else {
		ev = lg.Error()
	}
	ev = ev.Str("stage", stage).
		Str("class", string(f.Class)).
		Int("status", f.Status).
		Str("uri", c.Request.URL.Path).
		Err(f.Err)
	if pe, ok := f.Err.(*PanicError); ok {
		ev = ev.Bytes("stack", pe.Stack)
	}
	ev.Msg("request failed")
	middleware.ObserveFault(stage, string(f.Class), f.Status)
}

func writeJSON(c *gin.Context, f Failure) {
	c.AbortWithStatusJSON(f.Status, response.Fail(f.Body()))
}

func writeHTML(c *gin.Context, page string, status int, msg string) {
	c.Abort()
	c.HTML(status, page, gin.H{"status": status, "message": msg})
}

// negotiated renders f as JSON or HTML from the Accept header alone.
func negotiated(c *gin.Context, f Failure, page string) {
	if WantsJSON(c.Request) {
		writeJSON(c, f)
		return
	}
	writeHTML(c, page, f.Status, f.Message)
}

var internalFailure = Failure{Class: ClassUnexpected, Status: http.StatusInternalServerError, Message: MsgInternal}

func pageFor(f Failure) string {
	switch f.Class {
	case ClassBusiness:
		return views.ErrorPage(f.Status)
	case ClassUnexpected:
		return views.ErrorInternal
	default:
		return views.ErrorPage(http.StatusBadRequest)
	}
}
