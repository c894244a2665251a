// Package faults translates request failures into responses.
//
// Three stages cooperate:
//
//   - pre-routing (NoRoute, NoMethod, LimitBody, Recovery): failures that
//     happen before, or outside of, a matched route group. Only here is the
//     representation chosen from the Accept header (WantsJSON).
//   - API: middleware on the JSON route group, rendering failure envelopes.
//   - View: middleware on the HTML route group, rendering error pages.
//
// All stages share one ordered failure table (Classify) and log every
// failure: caller-caused ones at warn, anything else at error with the full
// error, which never reaches the response body.
package faults

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-documind-backend/internal/http/views"
)

// NoRoute renders 404 for requests that matched no route.
func NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		f := Failure{Class: ClassNoRoute, Status: http.StatusNotFound, Message: MsgNoRoute, Err: errors.New("no route for " + c.Request.URL.Path)}
		preRouting(c, f, views.ErrorPage(http.StatusNotFound))
	}
}

// NoMethod renders 405 for a known path requested with an unsupported method.
// It needs gin.Engine.HandleMethodNotAllowed.
func NoMethod() gin.HandlerFunc {
	return func(c *gin.Context) {
		f := Failure{Class: ClassNoMethod, Status: http.StatusMethodNotAllowed, Message: MsgNoMethod + c.Request.Method, Err: errors.New("method " + c.Request.Method + " not allowed")}
		preRouting(c, f, views.ErrorGeneric)
	}
}

// LimitBody caps request bodies at max bytes (<= 0 disables the cap).
//
// A declared Content-Length above max is rejected before the chain runs.
// Otherwise the body is wrapped with http.MaxBytesReader; if reading it then
// fails anywhere below and the failure is recorded (as *bind.PayloadTooLargeError
// or *http.MaxBytesError), LimitBody renders the 413 after the chain unless a
// response was already written.
func LimitBody(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if max <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > max {
			preRouting(c, tooLarge(&http.MaxBytesError{Limit: max}), views.ErrorGeneric)
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}

		c.Next()

		if c.Writer.Written() {
			return
		}
		for _, e := range c.Errors {
			if f := Classify(e.Err); f.Class == ClassTooLarge {
				preRouting(c, f, views.ErrorGeneric)
				return
			}
		}
	}
}

func tooLarge(err error) Failure {
	return Failure{Class: ClassTooLarge, Status: http.StatusRequestEntityTooLarge, Message: MsgTooLarge, Err: err}
}

// Recovery is the last-resort panic handler for the whole engine. Group
// middlewares recover their own panics; this catches the rest (for example a
// panic in global middleware) and renders a negotiated generic 500.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				f := internalFailure
				f.Err = recovered(rec)
				logFailure(c, stagePreRouting, f)
				if c.Writer.Written() {
					c.Abort()
					return
				}
				negotiated(c, f, views.ErrorInternal)
			}
		}()
		c.Next()
	}
}

func preRouting(c *gin.Context, f Failure, page string) {
	logFailure(c, stagePreRouting, f)
	negotiated(c, f, page)
}
