// Package domain defines the persistence models of the document service.
// These types are mapped with GORM and shared by the repository and service
// layers.
package domain

import "time"

// Document status values.
const (
	StatusPending = "pending"
	StatusReady   = "ready"
	StatusFailed  = "failed"
)

// Document is an uploaded file owned by a user. The bytes live in a
// storage.FileStore under StorageKey; the row keeps metadata and the
// analysis outcome.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: owner; a user cannot store the same content (SHA256) twice.
//   - Filename: original client filename, NFC-normalized.
//   - StorageKey: opaque key in the file store.
//   - ContentType: detected by the analysis task; empty while pending.
//   - Status: pending → ready | failed.
type Document struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	UserID      string    `json:"user_id"      gorm:"type:varchar(64);not null;index:idx_user_docs,priority:1;uniqueIndex:ux_documents_user_sha,priority:1"`
	Filename    string    `json:"filename"     gorm:"type:varchar(255);not null"`
	StorageKey  string    `json:"-"            gorm:"type:varchar(128);not null"`
	SHA256      string    `json:"sha256"       gorm:"type:char(64);not null;uniqueIndex:ux_documents_user_sha,priority:2"`
	Size        int64     `json:"size"         gorm:"not null"`
	ContentType string    `json:"content_type" gorm:"type:varchar(127);not null;default:''"`
	Status      string    `json:"status"       gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','ready','failed')"`
	CreatedAt   time.Time `json:"created_at"   gorm:"index:idx_user_docs,priority:2"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Document.
func (Document) TableName() string { return "documents" }
