// Package services – DocumentService
//
// DocumentService owns the lifecycle of uploaded documents: storing the bytes,
// recording metadata, enforcing ownership and scheduling content analysis on
// the background executor. Every predictable failure is returned as a
// business *Error so the HTTP layer can render it without inspecting causes.
package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-documind-backend/internal/domain"
	"github.com/tbourn/go-documind-backend/internal/repo"
	"github.com/tbourn/go-documind-backend/internal/storage"
	"github.com/tbourn/go-documind-backend/internal/utils"
)

// TaskAnalyzeDocument names the background analysis task.
const TaskAnalyzeDocument = "analyzeDocument"

// Submitter schedules deferred work. *async.Executor implements it.
type Submitter interface {
	Submit(ctx context.Context, name string, fn func(context.Context) error, args ...any) error
}

// DocumentService coordinates document storage, persistence and analysis.
type DocumentService struct {
	DB    *gorm.DB
	Store storage.FileStore
	Exec  Submitter

	// IdempotencyTTL bounds how long an Idempotency-Key replays its document.
	IdempotencyTTL time.Duration
}

// Upload describes one incoming file.
type Upload struct {
	UserID         string
	Filename       string
	Size           int64
	Body           io.Reader
	IdempotencyKey string
}

// Upload stores the file and creates its document in the pending state, then
// schedules analysis. When the upload carries an Idempotency-Key already used
// by the same user, the original document is returned with replayed=true and
// nothing is stored.
func (s *DocumentService) Upload(ctx context.Context, in Upload) (doc *domain.Document, replayed bool, err error) {
	ctx, span := tracer().Start(ctx, "Upload", trace.WithAttributes(
		attribute.String("user.id", in.UserID),
		attribute.Int64("upload.size", in.Size),
	))
	defer span.End()

	if in.UserID == "" {
		return nil, false, ErrAuthRequired
	}
	if in.IdempotencyKey != "" {
		if d, ok := s.replay(ctx, in.UserID, in.IdempotencyKey); ok {
			return d, true, nil
		}
	}
	if in.Size == 0 {
		return nil, false, ErrEmptyUpload
	}

	stored, err := s.Store.Save(ctx, in.Body, in.Filename)
	if err != nil {
		return nil, false, err
	}
	if stored.Size == 0 {
		s.discard(ctx, stored.Key)
		return nil, false, ErrEmptyUpload
	}

	doc = &domain.Document{
		UserID:     in.UserID,
		Filename:   stored.Filename,
		StorageKey: stored.Key,
		SHA256:     stored.SHA256,
		Size:       stored.Size,
	}
	if err := repo.CreateDocument(ctx, s.DB, doc); err != nil {
		s.discard(ctx, stored.Key)
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, false, ErrDuplicateDocument
		}
		return nil, false, err
	}
	span.SetAttributes(attribute.String("document.id", doc.ID))

	if in.IdempotencyKey != "" {
		if _, err := repo.CreateIdempotency(ctx, s.DB, in.UserID, in.IdempotencyKey, doc.ID, s.ttl()); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("document_id", doc.ID).Msg("idempotency record not stored")
		}
	}

	s.scheduleAnalysis(ctx, doc)
	return doc, false, nil
}

// Get returns the caller's document.
func (s *DocumentService) Get(ctx context.Context, userID, id string) (*domain.Document, error) {
	if userID == "" {
		return nil, ErrAuthRequired
	}
	d, err := repo.GetDocument(ctx, s.DB, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	if d.UserID != userID {
		return nil, ErrDocumentForbidden
	}
	return d, nil
}

// ListPage returns a page of the caller's documents, newest first, with its
// pagination meta.
func (s *DocumentService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Document, utils.PageMeta, error) {
	if userID == "" {
		return nil, utils.PageMeta{}, ErrAuthRequired
	}
	page, pageSize = utils.Normalize(page, pageSize)
	items, total, err := repo.ListDocuments(ctx, s.DB, userID, utils.Offset(page, pageSize), pageSize)
	if err != nil {
		return nil, utils.PageMeta{}, err
	}
	if items == nil {
		items = []domain.Document{}
	}
	return items, utils.NewPageMeta(page, pageSize, total), nil
}

// Open returns the caller's document together with a reader over its bytes.
// The caller closes the reader.
func (s *DocumentService) Open(ctx context.Context, userID, id string) (*domain.Document, io.ReadCloser, error) {
	d, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.Store.Open(d.StorageKey)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, nil, ErrDocumentNotFound.WithCause(err)
	}
	if err != nil {
		return nil, nil, err
	}
	return d, rc, nil
}

// Delete removes the caller's document and its stored bytes.
func (s *DocumentService) Delete(ctx context.Context, userID, id string) error {
	d, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := repo.DeleteDocument(ctx, s.DB, d.ID); err != nil {
		if repo.IsNotFound(err) {
			return ErrDocumentNotFound
		}
		return err
	}
	s.discard(ctx, d.StorageKey)
	return nil
}

// PurgeExpiredKeys drops idempotency records that expired before now and
// reports how many were removed.
func (s *DocumentService) PurgeExpiredKeys(ctx context.Context, now time.Time) (int64, error) {
	n, err := repo.PurgeExpiredIdempotency(ctx, s.DB, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		zerolog.Ctx(ctx).Debug().Int64("purged", n).Msg("expired idempotency keys removed")
	}
	return n, nil
}

func (s *DocumentService) replay(ctx context.Context, userID, key string) (*domain.Document, bool) {
	rec, err := repo.GetIdempotency(ctx, s.DB, userID, key, time.Now().UTC())
	if err != nil {
		return nil, false
	}
	d, err := repo.GetDocument(ctx, s.DB, rec.DocumentID)
	if err != nil {
		return nil, false
	}
	return d, true
}

// scheduleAnalysis hands the document to the executor. A rejected submission
// marks the document failed; the upload itself still succeeds.
func (s *DocumentService) scheduleAnalysis(ctx context.Context, doc *domain.Document) {
	if s.Exec == nil {
		return
	}
	id, key := doc.ID, doc.StorageKey
	err := s.Exec.Submit(ctx, TaskAnalyzeDocument, func(tctx context.Context) error {
		return s.analyze(tctx, id, key)
	}, id)
	if err == nil {
		return
	}
	zerolog.Ctx(ctx).Warn().Err(err).Str("document_id", id).Msg("analysis not scheduled")
	if uerr := repo.UpdateDocumentAnalysis(ctx, s.DB, id, domain.StatusFailed, ""); uerr == nil {
		doc.Status = domain.StatusFailed
	}
}

// analyze detects the stored content type and settles the document status.
// A detection failure marks the document failed and is returned so the
// executor's error handler reports it.
func (s *DocumentService) analyze(ctx context.Context, id, key string) error {
	ctx, span := tracer().Start(ctx, "Analyze", trace.WithAttributes(attribute.String("document.id", id)))
	defer span.End()

	ct, err := s.Store.DetectContentType(key)
	if err != nil {
		if uerr := repo.UpdateDocumentAnalysis(ctx, s.DB, id, domain.StatusFailed, ""); uerr != nil {
			zerolog.Ctx(ctx).Error().Err(uerr).Str("document_id", id).Msg("document status not updated")
		}
		return err
	}
	if err := repo.UpdateDocumentAnalysis(ctx, s.DB, id, domain.StatusReady, ct); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().
		Str("document_id", id).
		Str("content_type", ct).
		Msg("document analyzed")
	return nil
}

func (s *DocumentService) discard(ctx context.Context, key string) {
	if err := s.Store.Delete(key); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("storage_key", key).Msg("stored file not removed")
	}
}

func (s *DocumentService) ttl() time.Duration {
	if s.IdempotencyTTL > 0 {
		return s.IdempotencyTTL
	}
	return 24 * time.Hour
}

func tracer() trace.Tracer { return otel.Tracer("services/DocumentService") }
