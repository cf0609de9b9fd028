package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/server/models"
)

// finalizedSnapshot is stored in upload_intents.result on success.
type finalizedSnapshot struct {
	DocumentID  string    `json:"documentId"`
	VersionID   string    `json:"versionId"`
	Version     int       `json:"version"`
	Key         string    `json:"key"`
	FileSize    int64     `json:"fileSize"`
	ContentType string    `json:"contentType"`
	Recovered   bool      `json:"recovered,omitempty"`
	FinalizedAt time.Time `json:"finalizedAt"`
}

// failedSnapshot is stored in upload_intents.result on failure.
type failedSnapshot struct {
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	FailedAt time.Time `json:"failedAt"`
}

func snapshotOf(v *models.DocumentVersion, recovered bool, at time.Time) []byte {
	b, _ := json.Marshal(finalizedSnapshot{
		DocumentID:  v.DocumentID,
		VersionID:   v.ID,
		Version:     v.Version,
		Key:         v.FileKey,
		FileSize:    v.FileSize,
		ContentType: v.ContentType,
		Recovered:   recovered,
		FinalizedAt: at,
	})
	return b
}

func lastErrorOf(cause error) string {
	return fmt.Sprintf("%s: %s", common.CodeOf(cause), cause.Error())
}

// failIntent closes an INITIATED intent as FAILED and returns cause.
// Ledger writes outlive the caller's cancellation.
func (s *UploadService) failIntent(ctx context.Context, intent *models.UploadIntent, cause error) error {
	if intent == nil || intent.Status != models.IntentInitiated {
		return cause
	}
	ctx = context.WithoutCancel(ctx)
	now := s.now()

	result, _ := json.Marshal(failedSnapshot{Code: common.CodeOf(cause), Message: cause.Error(), FailedAt: now})
	err := s.repos.Intents().MarkFailed(ctx, intent.TenantID, intent.ID, lastErrorOf(cause), result, now)
	if err != nil && !errors.Is(err, common.ErrIntentClosed) {
		s.log.Error(ctx, "error marking upload intent failed", "intent_id", intent.ID, "error", err)
	}

	s.log.Warn(ctx, "upload intent failed",
		"intent_id", intent.ID, "document_id", intent.DocumentID, "code", common.CodeOf(cause), "error", cause)
	return cause
}

// recordTransient notes a retryable failure; the intent stays INITIATED.
func (s *UploadService) recordTransient(ctx context.Context, intent *models.UploadIntent, cause error) error {
	if intent == nil || intent.Status != models.IntentInitiated {
		return cause
	}
	ctx = context.WithoutCancel(ctx)

	err := s.repos.Intents().RecordError(ctx, intent.TenantID, intent.ID, lastErrorOf(cause), s.now())
	if err != nil && !errors.Is(err, common.ErrIntentClosed) {
		s.log.Error(ctx, "error recording upload intent failure", "intent_id", intent.ID, "error", err)
	}
	return cause
}

// closeRecovered finalizes an intent whose version row was committed by an
// earlier or concurrent call.
func (s *UploadService) closeRecovered(ctx context.Context, intent *models.UploadIntent, v *models.DocumentVersion) {
	if intent == nil || intent.Status != models.IntentInitiated {
		return
	}
	ctx = context.WithoutCancel(ctx)
	now := s.now()

	err := s.repos.Intents().MarkFinalized(ctx, intent.TenantID, intent.ID, v.ID, snapshotOf(v, true, now), now)
	if err != nil && !errors.Is(err, common.ErrIntentClosed) {
		s.log.Error(ctx, "error closing recovered upload intent", "intent_id", intent.ID, "error", err)
	}
}
