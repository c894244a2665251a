package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-documind-backend/internal/services"
)

// UserIDHeader carries the caller identity set by the upstream gateway.
const UserIDHeader = "X-User-ID"

const userIDKey = "userID"

// Identity copies X-User-ID into the Gin context. It never rejects.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := strings.TrimSpace(c.GetHeader(UserIDHeader)); uid != "" {
			c.Set(userIDKey, uid)
		}
		c.Next()
	}
}

// UserID returns the identity recorded by Identity, or "".
func UserID(c *gin.Context) string {
	v, _ := c.Get(userIDKey)
	return asString(v)
}

// RequireUser aborts with services.ErrAuthRequired when no identity is
// present. The group's fault handler renders it.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" {
			_ = c.Error(services.ErrAuthRequired)
			c.Abort()
			return
		}
		c.Next()
	}
}
