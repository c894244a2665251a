package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-documind-backend/internal/http/faults"
	"github.com/tbourn/go-documind-backend/internal/http/views"
)

// Home renders the landing page. It is also where the view fault handler
// redirects when a form post has no usable Referer, so it shows any pending
// flash message.
func (h *Handlers) Home(c *gin.Context) {
	c.HTML(http.StatusOK, views.Home, gin.H{
		faults.FlashErrorMessage: views.PopFlash(c, faults.FlashErrorMessage),
		"apiBase":                h.apiBase,
	})
}
