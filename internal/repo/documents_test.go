package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-documind-backend/internal/domain"
)

func TestCreateDocument_AssignsDefaults(t *testing.T) {
	db := newTestDB(t)
	d := &domain.Document{UserID: "u1", Filename: "a.txt", StorageKey: "k1", SHA256: sha('a'), Size: 1}
	if err := CreateDocument(context.Background(), db, d); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if d.ID == "" || d.Status != domain.StatusPending || d.CreatedAt.IsZero() {
		t.Fatalf("defaults not applied: %+v", d)
	}
	got, err := GetDocument(context.Background(), db, d.ID)
	if err != nil || got.Filename != "a.txt" {
		t.Fatalf("GetDocument: got=%+v err=%v", got, err)
	}
}

func TestCreateDocument_DuplicateDigestPerUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mk := func(user string) *domain.Document {
		return &domain.Document{UserID: user, Filename: "a", StorageKey: "k", SHA256: sha('b'), Size: 1}
	}
	if err := CreateDocument(ctx, db, mk("u1")); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := CreateDocument(ctx, db, mk("u1")); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := CreateDocument(ctx, db, mk("u2")); err != nil {
		t.Fatalf("other user should be allowed: %v", err)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := GetDocument(context.Background(), db, "missing")
	if !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindDocumentBySHA(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	d := &domain.Document{UserID: "u1", Filename: "a", StorageKey: "k", SHA256: sha('c'), Size: 1}
	if err := CreateDocument(ctx, db, d); err != nil {
		t.Fatal(err)
	}
	got, err := FindDocumentBySHA(ctx, db, "u1", sha('c'))
	if err != nil || got.ID != d.ID {
		t.Fatalf("FindDocumentBySHA: got=%+v err=%v", got, err)
	}
	if _, err := FindDocumentBySHA(ctx, db, "u2", sha('c')); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
}

func TestListDocuments_PagesNewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for i, c := range []byte("xyz") {
		d := &domain.Document{UserID: "u1", Filename: string(c), StorageKey: "k", SHA256: sha(c), Size: 1}
		if err := CreateDocument(ctx, db, d); err != nil {
			t.Fatal(err)
		}
		// Spread timestamps so ordering is deterministic.
		db.Model(d).Update("created_at", time.Now().UTC().Add(time.Duration(i)*time.Minute))
	}
	other := &domain.Document{UserID: "u2", Filename: "o", StorageKey: "k", SHA256: sha('o'), Size: 1}
	if err := CreateDocument(ctx, db, other); err != nil {
		t.Fatal(err)
	}

	page, total, err := ListDocuments(ctx, db, "u1", 0, 2)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if total != 3 || len(page) != 2 {
		t.Fatalf("total=%d len=%d", total, len(page))
	}
	if page[0].Filename != "z" || page[1].Filename != "y" {
		t.Fatalf("unexpected order: %s, %s", page[0].Filename, page[1].Filename)
	}

	rest, _, err := ListDocuments(ctx, db, "u1", 2, 2)
	if err != nil || len(rest) != 1 || rest[0].Filename != "x" {
		t.Fatalf("second page: %+v err=%v", rest, err)
	}
}

func TestUpdateDocumentAnalysis(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	d := &domain.Document{UserID: "u1", Filename: "a", StorageKey: "k", SHA256: sha('d'), Size: 1}
	if err := CreateDocument(ctx, db, d); err != nil {
		t.Fatal(err)
	}
	if err := UpdateDocumentAnalysis(ctx, db, d.ID, domain.StatusReady, "text/plain; charset=utf-8"); err != nil {
		t.Fatalf("UpdateDocumentAnalysis: %v", err)
	}
	got, _ := GetDocument(ctx, db, d.ID)
	if got.Status != domain.StatusReady || got.ContentType != "text/plain; charset=utf-8" {
		t.Fatalf("not updated: %+v", got)
	}
	if err := UpdateDocumentAnalysis(ctx, db, "missing", domain.StatusFailed, ""); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteDocument_RemovesIdempotencyRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	d := &domain.Document{UserID: "u1", Filename: "a", StorageKey: "k", SHA256: sha('e'), Size: 1}
	if err := CreateDocument(ctx, db, d); err != nil {
		t.Fatal(err)
	}
	if _, err := CreateIdempotency(ctx, db, "u1", "key-1", d.ID, time.Hour); err != nil {
		t.Fatal(err)
	}

	if err := DeleteDocument(ctx, db, d.ID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := GetDocument(ctx, db, d.ID); !IsNotFound(err) {
		t.Fatalf("document still present: %v", err)
	}
	if _, err := GetIdempotency(ctx, db, "u1", "key-1", time.Now()); !IsNotFound(err) {
		t.Fatalf("idempotency row still present: %v", err)
	}
	if err := DeleteDocument(ctx, db, d.ID); !IsNotFound(err) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}
