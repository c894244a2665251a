// Package views holds the server-rendered pages: error pages for the fault
// handlers, the home page and the fault demo page, plus one-shot flash
// messages carried across a redirect.
package views

import (
	"embed"
	"encoding/base64"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.tmpl
var files embed.FS

// Template names rendered by the fault handlers and page handlers.
const (
	ErrorGeneric  = "error/error"
	ErrorInternal = "error/500"
	Home          = "home"
	FaultDemo     = "test/exception-test"
)

// ErrorPage returns the template name for an HTTP status. Statuses without a
// dedicated page use ErrorGeneric.
func ErrorPage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "error/400"
	case http.StatusUnauthorized:
		return "error/401"
	case http.StatusForbidden:
		return "error/403"
	case http.StatusNotFound:
		return "error/404"
	case http.StatusConflict:
		return "error/409"
	}
	return ErrorGeneric
}

// Templates parses the embedded templates. It panics on a malformed template,
// which can only happen at build time.
func Templates() *template.Template {
	return template.Must(template.New("").ParseFS(files, "templates/*.tmpl"))
}

// Install registers the templates on r.
func Install(r *gin.Engine) { r.SetHTMLTemplate(Templates()) }

const flashPrefix = "flash_"

// SetFlash stores msg under key for the next request only.
func SetFlash(c *gin.Context, key, msg string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     flashPrefix + key,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(msg)),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopFlash returns the message stored under key and expires it.
func PopFlash(c *gin.Context, key string) string {
	ck, err := c.Request.Cookie(flashPrefix + key)
	if err != nil {
		return ""
	}
	http.SetCookie(c.Writer, &http.Cookie{Name: ck.Name, Path: "/", MaxAge: -1, HttpOnly: true})
	raw, err := base64.RawURLEncoding.DecodeString(ck.Value)
	if err != nil {
		return ""
	}
	return string(raw)
}
