// Package handlers provides HTTP handler implementations for the public API
// and the server-rendered pages.
//
// Handlers never write error responses. A failing handler records the error
// with fail() and returns; the fault middleware of its route group renders it
// as a JSON envelope (API group) or an error page (view group):
//
//	HTTP/1.1 404 Not Found
//	{ "success": false, "error": { "message": "document not found" } }
//
// Successful API responses use the same envelope:
//
//	HTTP/1.1 200 OK
//	{ "success": true, "data": { "id": "…", "status": "ready" } }
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// fail records err for the fault middleware and stops the handler chain.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ok writes body as JSON with the given HTTP status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
