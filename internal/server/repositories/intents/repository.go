package intents

import (
	"context"
	"time"

	"github.com/dmitrijs2005/casevault/internal/server/models"
)

// Filter narrows an intent listing. Zero fields are ignored.
type Filter struct {
	TenantID string
	Status   models.IntentStatus
	// Query matches key, file name, last error and ids, case-insensitively.
	Query string
	// Cursor is the id of the last intent on the previous page.
	Cursor string
	Take   int
}

// Repository is the upload ledger. Status transitions are guarded on
// INITIATED, so a closed intent never changes again; guarded calls return
// common.ErrIntentClosed when the intent is no longer INITIATED.
type Repository interface {
	Create(ctx context.Context, in *models.UploadIntent) error
	GetByID(ctx context.Context, tenantID, id string) (*models.UploadIntent, error)
	GetByKey(ctx context.Context, tenantID, key string) (*models.UploadIntent, error)

	MarkFinalized(ctx context.Context, tenantID, id, versionID string, result []byte, at time.Time) error
	MarkFailed(ctx context.Context, tenantID, id, lastError string, result []byte, at time.Time) error
	// RecordError notes a transient failure and leaves the intent INITIATED.
	RecordError(ctx context.Context, tenantID, id, lastError string, at time.Time) error
	MarkCleaned(ctx context.Context, tenantID, id string, at time.Time) error

	List(ctx context.Context, f Filter) ([]*models.UploadIntent, error)
	CountByStatus(ctx context.Context, tenantID string) (map[models.IntentStatus]int, error)
	// ListStale returns uncleaned INITIATED or FAILED intents that expired before cutoff.
	// An empty tenantID spans all tenants.
	ListStale(ctx context.Context, tenantID string, cutoff time.Time, take int) ([]*models.UploadIntent, error)
}
