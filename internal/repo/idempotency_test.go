package repo

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreateAndGetIdempotency(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rec, err := CreateIdempotency(ctx, db, "u1", "k1", "doc-1", time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if rec.ID == "" || !rec.ExpiresAt.After(rec.CreatedAt) {
		t.Fatalf("unexpected record: %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "u1", "k1", time.Now().UTC())
	if err != nil || got.DocumentID != "doc-1" {
		t.Fatalf("GetIdempotency: got=%+v err=%v", got, err)
	}
}

func TestGetIdempotency_ScopedToUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if _, err := CreateIdempotency(ctx, db, "u1", "k1", "doc-1", time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, err := GetIdempotency(ctx, db, "u2", "k1", time.Now().UTC()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
}

func TestGetIdempotency_Expired(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if _, err := CreateIdempotency(ctx, db, "u1", "k1", "doc-1", time.Minute); err != nil {
		t.Fatal(err)
	}
	later := time.Now().UTC().Add(2 * time.Minute)
	if _, err := GetIdempotency(ctx, db, "u1", "k1", later); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestCreateIdempotency_Duplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if _, err := CreateIdempotency(ctx, db, "u1", "k1", "doc-1", time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, err := CreateIdempotency(ctx, db, "u1", "k1", "doc-2", time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestPurgeExpiredIdempotency(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if _, err := CreateIdempotency(ctx, db, "u1", "old", "doc-1", time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, err := CreateIdempotency(ctx, db, "u1", "new", "doc-2", time.Hour); err != nil {
		t.Fatal(err)
	}
	n, err := PurgeExpiredIdempotency(ctx, db, time.Now().UTC().Add(10*time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}
	if _, err := GetIdempotency(ctx, db, "u1", "new", time.Now().UTC()); err != nil {
		t.Fatalf("fresh record removed: %v", err)
	}
}
