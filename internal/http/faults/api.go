package faults

import (
	"github.com/gin-gonic/gin"
)

// API renders failures of the JSON route group as failure envelopes.
//
// Handlers record a failure with c.Error and abort; after the chain returns
// API classifies the last recorded error (see the table in classify.go) and
// writes exactly one response, unless the handler already wrote one. Panics
// in the group are recovered and rendered as the generic 500. Oversized
// bodies are left for LimitBody.
func API() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				f := Classify(recovered(rec))
				logFailure(c, stageAPI, f)
				if c.Writer.Written() {
					c.Abort()
					return
				}
				writeJSON(c, f)
			}
		}()

		c.Next()

		err := pending(c)
		if err == nil {
			return
		}
		f := Classify(err)
		if f.Class == ClassTooLarge {
			return
		}
		logFailure(c, stageAPI, f)
		writeJSON(c, f)
	}
}
