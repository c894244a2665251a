// Document HTTP handlers.
//
// This file exposes REST endpoints for document resources:
//   - POST   /documents               (upload, multipart "file")
//   - GET    /documents               (list, paginated)
//   - GET    /documents/{id}          (metadata)
//   - GET    /documents/{id}/content  (download)
//   - DELETE /documents/{id}          (delete)
//
// Every endpoint requires X-User-ID (enforced by middleware.RequireUser).
package handlers

import (
	"context"
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-documind-backend/internal/domain"
	"github.com/tbourn/go-documind-backend/internal/http/bind"
	"github.com/tbourn/go-documind-backend/internal/http/middleware"
	"github.com/tbourn/go-documind-backend/internal/http/response"
	"github.com/tbourn/go-documind-backend/internal/services"
	"github.com/tbourn/go-documind-backend/internal/utils"
)

// DocumentService defines the document operations consumed by the handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type DocumentService interface {
	Upload(ctx context.Context, in services.Upload) (*domain.Document, bool, error)
	Get(ctx context.Context, userID, id string) (*domain.Document, error)
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Document, utils.PageMeta, error)
	Open(ctx context.Context, userID, id string) (*domain.Document, io.ReadCloser, error)
	Delete(ctx context.Context, userID, id string) error
}

// Handlers groups the HTTP endpoints. It depends on abstract service
// interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	docs    DocumentService
	apiBase string
}

// New constructs Handlers. apiBase is the API mount point (e.g. "/api"),
// used for Location headers and the home page.
func New(docs DocumentService, apiBase string) *Handlers {
	return &Handlers{docs: docs, apiBase: apiBase}
}

// FormField is the multipart field carrying the uploaded file.
const FormField = "file"

// HeaderReplay marks a response served from an earlier upload.
const HeaderReplay = "Idempotent-Replay"

// UploadDocument godoc
// @ID          uploadDocument
// @Summary     Upload a document
// @Description Stores the file and schedules content analysis. Repeating an upload with the same Idempotency-Key returns the original document with 200.
// @Tags        Documents
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       X-User-ID        header    string  true   "User ID"                 example(user123)
// @Param       Idempotency-Key  header    string  false  "Replay protection key"   example(upload-2024-05-01-a)
// @Param       file             formData  file    true   "Document"
//
// @Success     201  {object}  response.Envelope[domain.Document]
// @Success     200  {object}  response.Envelope[domain.Document]  "Replayed"
// @Failure     400  {object}  response.Envelope[response.Empty]   "Missing or empty file"
// @Failure     401  {object}  response.Envelope[response.Empty]   "Missing X-User-ID"
// @Failure     409  {object}  response.Envelope[response.Empty]   "Duplicate content"
// @Failure     413  {object}  response.Envelope[response.Empty]   "Too large"
// @Router      /documents [post]
func (h *Handlers) UploadDocument(c *gin.Context) {
	ctx := c.Request.Context()
	uid := middleware.UserID(c)

	if id, replay := middleware.ReplayOf(c); replay {
		if d, err := h.docs.Get(ctx, uid, id); err == nil {
			h.respondUploaded(c, d, true)
			return
		}
	}

	fh, err := bind.File(c, FormField)
	if err != nil {
		fail(c, err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, &bind.UnreadableBodyError{Cause: err})
		return
	}
	defer f.Close()

	key, _ := middleware.GetIdempotencyKey(c)
	d, replayed, err := h.docs.Upload(ctx, services.Upload{
		UserID:         uid,
		Filename:       fh.Filename,
		Size:           fh.Size,
		Body:           f,
		IdempotencyKey: key,
	})
	if err != nil {
		fail(c, err)
		return
	}
	h.respondUploaded(c, d, replayed)
}

func (h *Handlers) respondUploaded(c *gin.Context, d *domain.Document, replayed bool) {
	c.Header("Location", h.apiBase+"/documents/"+d.ID)
	if replayed {
		c.Header(HeaderReplay, "true")
		ok(c, http.StatusOK, response.OK(d))
		return
	}
	ok(c, http.StatusCreated, response.OK(d))
}

// ListDocuments godoc
// @ID          listDocuments
// @Summary     List documents (paginated)
// @Tags        Documents
// @Produce     json
//
// @Param       X-User-ID  header  string  true   "User ID"         example(user123)
// @Param       page       query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  response.Envelope[[]domain.Document]
// @Failure     400  {object}  response.Envelope[response.Empty]  "Invalid paging"
// @Router      /documents [get]
func (h *Handlers) ListDocuments(c *gin.Context) {
	page, err := bind.QueryIntDefault(c, "page", utils.DefaultPage)
	if err != nil {
		fail(c, err)
		return
	}
	size, err := bind.QueryIntDefault(c, "page_size", utils.DefaultPageSize)
	if err != nil {
		fail(c, err)
		return
	}
	if err := bind.Check("listDocuments").
		Var("page", page, "min=1").
		Var("page_size", size, "min=1,max=100").
		Err(); err != nil {
		fail(c, err)
		return
	}

	items, meta, err := h.docs.ListPage(c.Request.Context(), middleware.UserID(c), page, size)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, response.OKWithMeta(items, meta))
}

// GetDocument godoc
// @ID          getDocument
// @Summary     Get document metadata
// @Tags        Documents
// @Produce     json
//
// @Param       X-User-ID  header  string  true  "User ID"        example(user123)
// @Param       id         path    string  true  "Document ID"    format(uuid)
//
// @Success     200  {object}  response.Envelope[domain.Document]
// @Failure     403  {object}  response.Envelope[response.Empty]  "Owned by another user"
// @Failure     404  {object}  response.Envelope[response.Empty]  "Not found"
// @Router      /documents/{id} [get]
func (h *Handlers) GetDocument(c *gin.Context) {
	id, err := documentID(c, "getDocument")
	if err != nil {
		fail(c, err)
		return
	}
	d, err := h.docs.Get(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, response.OK(d))
}

// DownloadDocument godoc
// @ID          downloadDocument
// @Summary     Download document content
// @Tags        Documents
// @Produce     octet-stream
//
// @Param       X-User-ID  header  string  true  "User ID"      example(user123)
// @Param       id         path    string  true  "Document ID"  format(uuid)
//
// @Success     200  {file}    file
// @Failure     404  {object}  response.Envelope[response.Empty]  "Not found"
// @Router      /documents/{id}/content [get]
func (h *Handlers) DownloadDocument(c *gin.Context) {
	id, err := documentID(c, "downloadDocument")
	if err != nil {
		fail(c, err)
		return
	}
	d, rc, err := h.docs.Open(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	defer rc.Close()

	ct := d.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": d.Filename})
	if disposition == "" {
		disposition = "attachment"
	}
	c.DataFromReader(http.StatusOK, d.Size, ct, rc, map[string]string{"Content-Disposition": disposition})
}

// DeleteDocument godoc
// @ID          deleteDocument
// @Summary     Delete a document
// @Tags        Documents
//
// @Param       X-User-ID  header  string  true  "User ID"      example(user123)
// @Param       id         path    string  true  "Document ID"  format(uuid)
//
// @Success     204  {string}  string  "No Content"
// @Failure     403  {object}  response.Envelope[response.Empty]  "Owned by another user"
// @Failure     404  {object}  response.Envelope[response.Empty]  "Not found"
// @Router      /documents/{id} [delete]
func (h *Handlers) DeleteDocument(c *gin.Context) {
	id, err := documentID(c, "deleteDocument")
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.docs.Delete(c.Request.Context(), middleware.UserID(c), id); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

// documentID returns the :id path parameter, which must be a UUID.
func documentID(c *gin.Context, op string) (string, error) {
	id, err := bind.Param(c, "id")
	if err != nil {
		return "", err
	}
	if err := bind.Check(op).Var("id", id, "uuid").Err(); err != nil {
		return "", err
	}
	return id, nil
}
