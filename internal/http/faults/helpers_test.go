package faults

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-documind-backend/internal/http/response"
	"github.com/tbourn/go-documind-backend/internal/http/views"
)

type sample struct {
	Name string `json:"name" form:"name" binding:"notblank"`
	Age  int    `json:"age" form:"age" binding:"min=1"`
}

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

// newEngine builds an engine with the pre-routing stage installed and the
// global middleware in mw, and returns it with its /api and /view groups.
func newEngine(t *testing.T, maxBody int64, mw ...gin.HandlerFunc) (*gin.Engine, *gin.RouterGroup, *gin.RouterGroup) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.HandleMethodNotAllowed = true
	views.Install(r)
	r.Use(Recovery(), LimitBody(maxBody))
	r.Use(mw...)
	r.NoRoute(NoRoute())
	r.NoMethod(NoMethod())
	// gin panics on an unmatched request when HandleMethodNotAllowed is set
	// and no route tree exists yet.
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, r.Group("/api", API()), r.Group("/view", View())
}

func do(r http.Handler, method, target string, body io.Reader, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool `json:"success"`
	Error   *struct {
		Message string                `json:"message"`
		Details []response.FieldError `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
	if env.Success || env.Error == nil {
		t.Fatalf("not a failure envelope: %s", w.Body.String())
	}
	return env
}

var jsonAccept = map[string]string{"Accept": "application/json", "Content-Type": "application/json"}

// newStreamedRequest builds a JSON request whose length is not declared, so
// the size limit is only hit while reading.
func newStreamedRequest(target, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, io.NopCloser(strings.NewReader(body)))
	req.ContentLength = -1
	req.Header.Set("Content-Type", "application/json")
	if strings.HasPrefix(target, "/api") {
		req.Header.Set("Accept", "application/json")
	}
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
