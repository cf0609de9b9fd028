package cases

import (
	"context"

	"github.com/dmitrijs2005/casevault/internal/server/models"
)

type Repository interface {
	GetByID(ctx context.Context, tenantID, caseID string) (*models.Case, error)
	// GetMemberRole returns common.ErrorNotFound when userID is not a member.
	GetMemberRole(ctx context.Context, caseID, userID string) (string, error)
}
