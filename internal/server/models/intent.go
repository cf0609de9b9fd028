package models

import (
	"encoding/json"
	"time"
)

// IntentStatus is the lifecycle state of an upload attempt.
type IntentStatus string

const (
	IntentInitiated IntentStatus = "INITIATED"
	IntentFinalized IntentStatus = "FINALIZED"
	IntentFailed    IntentStatus = "FAILED"
)

// Terminal reports whether no transition may leave s.
func (s IntentStatus) Terminal() bool {
	return s == IntentFinalized || s == IntentFailed
}

// Valid reports whether s is a known status.
func (s IntentStatus) Valid() bool {
	switch s {
	case IntentInitiated, IntentFinalized, IntentFailed:
		return true
	}
	return false
}

// UploadIntent records one attempted upload from initiate to a terminal state.
type UploadIntent struct {
	ID       string
	TenantID string

	CaseID           string
	DocumentID       string
	Key              string
	FileName         string
	ContentType      string
	ExpectedFileSize int64
	ExpectedVersion  int

	Status    IntentStatus
	CreatedBy string
	CreatedAt time.Time
	// ExpiresAt bounds the presigned write window, not finalize.
	ExpiresAt time.Time
	UpdatedAt time.Time

	FinalizedAt       *time.Time
	LastError         string
	Result            json.RawMessage
	DocumentVersionID string
	// CleanedAt is set once the sweeper has dealt with the stored object.
	CleanedAt *time.Time
}

// Expired reports whether the presigned URL issued for the intent has lapsed.
func (i *UploadIntent) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
