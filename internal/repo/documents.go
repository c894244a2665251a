// Package repo: documents.
//
// Thin, context-aware CRUD over domain.Document. Ownership is not enforced
// here; services decide what a missing or foreign row means.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-documind-backend/internal/domain"
)

// CreateDocument inserts d, assigning an ID and timestamps when unset. A
// second document with the same (user_id, sha256) yields ErrDuplicate.
func CreateDocument(ctx context.Context, db *gorm.DB, d *domain.Document) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = domain.StatusPending
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetDocument returns the document by ID or ErrNotFound.
func GetDocument(ctx context.Context, db *gorm.DB, id string) (*domain.Document, error) {
	var d domain.Document
	if err := db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// FindDocumentBySHA returns the user's document with the given digest or
// ErrNotFound.
func FindDocumentBySHA(ctx context.Context, db *gorm.DB, userID, sha string) (*domain.Document, error) {
	var d domain.Document
	err := db.WithContext(ctx).Where("user_id = ? AND sha256 = ?", userID, sha).First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDocuments returns one page of the user's documents, newest first, and
// the total count.
func ListDocuments(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Document, int64, error) {
	owned := func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.Document{}).Where("user_id = ?", userID)
	}
	var total int64
	if err := owned().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Document
	err := owned().Order("created_at DESC").Order("id").Offset(offset).Limit(limit).Find(&out).Error
	return out, total, err
}

// UpdateDocumentAnalysis records the outcome of analysis.
func UpdateDocumentAnalysis(ctx context.Context, db *gorm.DB, id, status, contentType string) error {
	res := db.WithContext(ctx).Model(&domain.Document{}).Where("id = ?", id).
		Updates(map[string]any{"status": status, "content_type": contentType, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDocument removes the row and any idempotency records pointing to it.
func DeleteDocument(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&domain.Idempotency{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Document{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
