package documents

import (
	"context"

	"github.com/dmitrijs2005/casevault/internal/server/models"
)

type Repository interface {
	GetByID(ctx context.Context, tenantID, id string) (*models.Document, error)
	Create(ctx context.Context, d *models.Document) error
	// AdvanceVersion moves the document's current-file pointer to d.Version.
	// It only applies when the stored version is still d.Version-1 and
	// returns common.ErrVersionConflict otherwise.
	AdvanceVersion(ctx context.Context, d *models.Document) error
}
