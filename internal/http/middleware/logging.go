// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides request correlation and structured access logging:
//
//   - RequestID() ensures every request carries a stable correlation ID
//     (propagated via X-Request-ID and stored in the Gin context).
//   - Identity() records the caller identity from X-User-ID when present.
//   - Logger() attaches a request-scoped zerolog.Logger, copies the same
//     correlation fields into the request's diagnostic context (package diag)
//     so deferred work logs with them, and emits one redacted access log per
//     request at a level chosen by outcome.
//   - LoggerFrom() retrieves the request-scoped logger.
//
// Recommended order:
//
//	RequestID() → Identity() → Logger() → faults.Recovery() → ...
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-documind-backend/internal/diag"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// RequestIDHeader is the HTTP header used to propagate the correlation ID.
	RequestIDHeader = "X-Request-ID"
	// loggerKey holds the *zerolog.Logger built by Logger.
	loggerKey = "logger"
	// maxQueryLogLength caps the number of bytes of the raw query string logged.
	maxQueryLogLength = 2048
)

// RequestID attaches (or propagates) a correlation identifier per request.
//
// If the incoming request has X-Request-ID that value is reused, otherwise a
// new UUIDv4 is generated. The ID is echoed on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(RequestIDHeader, rid)
		c.Next()
	}
}

// RequestIDFrom returns the correlation ID set by RequestID, or "".
func RequestIDFrom(c *gin.Context) string {
	v, _ := c.Get(requestIDKey)
	return asString(v)
}

// LogOptions configures Logger.
type LogOptions struct {
	// MaskHeaders lists extra request headers logged as "[REDACTED]".
	MaskHeaders []string
	// LogHeaders includes the scrubbed request headers in the access log.
	LogHeaders bool
}

// Logger writes a structured access log for each request.
//
// The request-scoped logger carries request_id, user_id, method, path and
// remote_ip. The same fields (minus remote_ip) are installed as the request's
// diagnostic context. The access log adds status, latency, sizes and the
// redacted query; level is error for 5xx, warn for 4xx, info otherwise.
//
// Place this after RequestID() and Identity().
func Logger(opts LogOptions) gin.HandlerFunc {
	red := NewRedactor(opts.MaskHeaders...)

	return func(c *gin.Context) {
		start := time.Now()

		rid := RequestIDFrom(c)
		uid := UserID(c)
		path := routeOf(c)

		l := log.With().
			Str("request_id", rid).
			Str("user_id", uid).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Logger()
		c.Set(loggerKey, &l)

		ctx := diag.With(c.Request.Context(),
			"request_id", rid,
			"method", c.Request.Method,
			"path", path,
		)
		if uid != "" {
			ctx = diag.With(ctx, "user_id", uid)
		}
		c.Request = c.Request.WithContext(l.WithContext(ctx))

		query := red.Scrub(c.Request.URL.RawQuery)
		var headers map[string]string
		if opts.LogHeaders {
			headers = red.Headers(c.Request.Header)
		}

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		default:
			ev = l.Info()
		}
		ev = ev.
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int64("bytes_in", c.Request.ContentLength).
			Int("bytes_out", c.Writer.Size()).
			Str("query", truncate(query, maxQueryLogLength)).
			Str("user_agent", c.Request.UserAgent())
		if headers != nil {
			ev = ev.Interface("headers", headers)
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Msg("request")
	}
}

// LoggerFrom returns the request-scoped zerolog.Logger.
//
// If Logger() did not run, a fallback logger without request fields is
// returned. Callers can use the result without nil checks.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func routeOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate operates on bytes, which is acceptable for logging.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
