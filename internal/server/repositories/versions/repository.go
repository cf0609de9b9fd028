package versions

import (
	"context"

	"github.com/dmitrijs2005/casevault/internal/server/models"
)

type Repository interface {
	// Create inserts an immutable version row. A second row for the same
	// (document, version) yields dbx.ErrUniqueViolation.
	Create(ctx context.Context, v *models.DocumentVersion) error
	GetByDocumentVersion(ctx context.Context, tenantID, documentID string, version int) (*models.DocumentVersion, error)
	GetByID(ctx context.Context, tenantID, id string) (*models.DocumentVersion, error)
	GetByKey(ctx context.Context, tenantID, key string) (*models.DocumentVersion, error)
	// ListByDocument returns versions newest first.
	ListByDocument(ctx context.Context, tenantID, documentID string) ([]*models.DocumentVersion, error)
}
