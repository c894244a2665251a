package faults

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-documind-backend/internal/http/views"
)

// View renders failures of the HTML route group as error pages.
//
// It follows the same table as API with one exception: a body or form
// validation failure redirects (302) to the path of the Referer, carrying the
// "field: reason, ..." summary as a flash message under FlashErrorMessage.
// Business failures pick their page by status (views.ErrorPage); parameter
// failures use the 400 page; anything unexpected renders error/500.
func View() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				f := Classify(recovered(rec))
				logFailure(c, stageView, f)
				if c.Writer.Written() {
					c.Abort()
					return
				}
				writeHTML(c, views.ErrorInternal, f.Status, f.Message)
			}
		}()

		c.Next()

		err := pending(c)
		if err == nil {
			return
		}
		f := Classify(err)
		switch f.Class {
		case ClassTooLarge:
			return
		case ClassValidation:
			logFailure(c, stageView, f)
			views.SetFlash(c, FlashErrorMessage, f.Summary)
			c.Abort()
			c.Redirect(http.StatusFound, SafePath(c.Request.Referer()))
			return
		}
		logFailure(c, stageView, f)
		writeHTML(c, pageFor(f), f.Status, f.Message)
	}
}
