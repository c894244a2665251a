// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements Idempotency-Key support for uploads. The middleware
// validates the header, stashes the key for the handler, and asks a lookup
// whether the same (user, key) pair already produced a document. On a hit the
// request is marked as a replay of that document and exempted from rate
// limiting; the handler then serves the stored document instead of storing
// the upload again.
package middleware

import (
	"context"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-documind-backend/internal/services"
)

// HeaderIdempotencyKey is the request header carrying the idempotency key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // string: document ID being replayed
	ctxKeyRateBypass = "rate.bypass" // bool: skip rate limiting
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// ErrInvalidIdempotencyKey is recorded when the header fails validation.
var ErrInvalidIdempotencyKey = services.BadRequest("invalid Idempotency-Key")

// GetIdempotencyKey returns the validated key stashed by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, _ := c.Get(ctxKeyIdemKey)
	s, _ := v.(string)
	return s, s != ""
}

// ReplayOf returns the document ID a replayed request resolves to.
func ReplayOf(c *gin.Context) (string, bool) {
	v, _ := c.Get(ctxKeyIdemReplay)
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the request replays a completed upload.
func IsReplay(c *gin.Context) bool {
	_, ok := ReplayOf(c)
	return ok
}

// IdempotencyOptions configures header validation.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters; nil uses ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
}

// IdempotencyLookup returns the document previously created for
// (userID, key) if its record has not expired at now. Errors are logged and
// treated as a miss.
type IdempotencyLookup func(ctx context.Context, userID, key string, now time.Time) (documentID string, found bool, err error)

// IdempotencyValidator validates Idempotency-Key when present. A malformed
// key records ErrInvalidIdempotencyKey and aborts; the group's fault handler
// renders the 400.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			_ = c.Error(ErrInvalidIdempotencyKey)
			c.Abort()
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			id, found, err := lookup(c.Request.Context(), UserID(c), key, time.Now().UTC())
			switch {
			case err != nil:
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			case found:
				c.Set(ctxKeyIdemReplay, id)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}
