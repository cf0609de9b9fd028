// Package models defines server-side data models persisted in the database.
package models

import "time"

// Case owns documents. Every case belongs to exactly one tenant.
type Case struct {
	ID        string
	TenantID  string
	Title     string
	CreatedAt time.Time
}

// Document is the logical file entity. Its File* fields point at the
// current version; Version is 0 until the first upload is finalized.
type Document struct {
	ID       string
	TenantID string
	CaseID   string

	Title    string
	Category string
	Notes    string

	// FileKey is the object key of the current version, "" when no file yet.
	FileKey     string
	FileName    string
	ContentType string
	FileSize    int64
	// Version is monotonic and equals the version of the row holding FileKey.
	Version int
	// UploaderID is the user who finalized the current version.
	UploaderID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasFile reports whether any version was ever finalized.
func (d *Document) HasFile() bool {
	return d.FileKey != ""
}

// NextVersion is the only version a new upload may target.
func (d *Document) NextVersion() int {
	if !d.HasFile() {
		return 1
	}
	return d.Version + 1
}

// DocumentVersion is an immutable history entry, unique on (DocumentID, Version).
type DocumentVersion struct {
	ID          string
	TenantID    string
	DocumentID  string
	Version     int
	FileKey     string
	FileName    string
	ContentType string
	FileSize    int64
	UploaderID  string
	CreatedAt   time.Time
}
