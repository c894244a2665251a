package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-documind-backend/internal/diag"
	"github.com/tbourn/go-documind-backend/internal/http/bind"
	"github.com/tbourn/go-documind-backend/internal/http/faults"
	"github.com/tbourn/go-documind-backend/internal/http/middleware"
	"github.com/tbourn/go-documind-backend/internal/http/response"
	"github.com/tbourn/go-documind-backend/internal/http/views"
	"github.com/tbourn/go-documind-backend/internal/repo"
	"github.com/tbourn/go-documind-backend/internal/services"
	"github.com/tbourn/go-documind-backend/internal/storage"
)

// inlineExec runs submitted tasks immediately on the caller's goroutine.
type inlineExec struct{}

func (inlineExec) Submit(ctx context.Context, _ string, fn func(context.Context) error, _ ...any) error {
	diag.Wrap(ctx, func(tctx context.Context) { _ = fn(tctx) }).Run(context.Background(), &diag.Slot{})
	return nil
}

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newServer wires the handlers the way the router does, with a 1 KiB body cap.
func newServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newDB(t)
	store, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "files"))
	if err != nil {
		t.Fatal(err)
	}
	svc := &services.DocumentService{DB: db, Store: store, Exec: inlineExec{}, IdempotencyTTL: time.Hour}
	h := New(svc, "/api")

	bind.Setup()
	r := gin.New()
	r.HandleMethodNotAllowed = true
	views.Install(r)
	r.Use(middleware.RequestID(), middleware.Identity(), faults.Recovery(), faults.LimitBody(1<<10))
	r.NoRoute(faults.NoRoute())
	r.NoMethod(faults.NoMethod())

	lookup := func(ctx context.Context, userID, key string, now time.Time) (string, bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, userID, key, now)
		if err != nil {
			return "", false, nil
		}
		return rec.DocumentID, true, nil
	}
	api := r.Group("/api", faults.API(), middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, lookup))
	docs := api.Group("/documents", middleware.RequireUser())
	docs.POST("", h.UploadDocument)
	docs.GET("", h.ListDocuments)
	docs.GET("/:id", h.GetDocument)
	docs.GET("/:id/content", h.DownloadDocument)
	docs.DELETE("/:id", h.DeleteDocument)
	h.RegisterFaultDemoAPI(api.Group("/test/exception"))

	pages := r.Group("", faults.View())
	pages.GET("/", h.Home)
	h.RegisterFaultDemoView(pages.Group("/test/exception"))
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(r http.Handler, target, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if user != "" {
		req.Header.Set(middleware.UserIDHeader, user)
	}
	return do(r, req)
}

func uploadRequest(t *testing.T, user, name, content string, hdr map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(FormField, name)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.WriteString(fw, content)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if user != "" {
		req.Header.Set(middleware.UserIDHeader, user)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	return req
}

type docEnvelope struct {
	Success bool `json:"success"`
	Data    *struct {
		ID          string `json:"id"`
		Filename    string `json:"filename"`
		Status      string `json:"status"`
		ContentType string `json:"content_type"`
		Size        int64  `json:"size"`
	} `json:"data"`
	Error *struct {
		Message string                `json:"message"`
		Details []response.FieldError `json:"details"`
	} `json:"error"`
}

func decodeEnv(t *testing.T, w *httptest.ResponseRecorder) docEnvelope {
	t.Helper()
	var env docEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
	return env
}

func mustUpload(t *testing.T, r http.Handler, user, name, content string) string {
	t.Helper()
	w := do(r, uploadRequest(t, user, name, content, nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: status=%d body=%s", w.Code, w.Body.String())
	}
	env := decodeEnv(t, w)
	if env.Data == nil || env.Data.ID == "" {
		t.Fatalf("upload: no document in %s", w.Body.String())
	}
	return env.Data.ID
}

func contains(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
