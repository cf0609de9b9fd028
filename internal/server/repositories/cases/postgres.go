package cases

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/dbx"
	"github.com/dmitrijs2005/casevault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, tenantID, caseID string) (*models.Case, error) {
	if !dbx.IsUUID(caseID) {
		return nil, common.ErrorNotFound
	}
	query := `SELECT id, tenant_id, title, created_at FROM cases WHERE id=$1 AND tenant_id=$2`

	c := &models.Case{}
	err := r.db.QueryRowContext(ctx, query, caseID, tenantID).Scan(&c.ID, &c.TenantID, &c.Title, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return c, nil
}

func (r *PostgresRepository) GetMemberRole(ctx context.Context, caseID, userID string) (string, error) {
	if !dbx.IsUUID(caseID) {
		return "", common.ErrorNotFound
	}
	query := `SELECT role FROM case_members WHERE case_id=$1 AND user_id=$2`

	var role string
	err := r.db.QueryRowContext(ctx, query, caseID, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}

	return role, nil
}
