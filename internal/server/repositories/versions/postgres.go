package versions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/dbx"
	"github.com/dmitrijs2005/casevault/internal/server/models"
)

const selectColumns = `SELECT id, tenant_id, document_id, version, file_key, file_name,
	content_type, file_size, uploader_id, created_at FROM document_versions`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(s scanner) (*models.DocumentVersion, error) {
	v := &models.DocumentVersion{}
	err := s.Scan(&v.ID, &v.TenantID, &v.DocumentID, &v.Version, &v.FileKey, &v.FileName,
		&v.ContentType, &v.FileSize, &v.UploaderID, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *PostgresRepository) Create(ctx context.Context, v *models.DocumentVersion) error {
	query := `INSERT INTO document_versions (id, tenant_id, document_id, version, file_key, file_name,
		content_type, file_size, uploader_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query, v.ID, v.TenantID, v.DocumentID, v.Version, v.FileKey, v.FileName,
		v.ContentType, v.FileSize, v.UploaderID, v.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %w", dbx.ErrUniqueViolation, err)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.DocumentVersion, error) {
	v, err := scanVersion(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return v, nil
}

func (r *PostgresRepository) GetByDocumentVersion(ctx context.Context, tenantID, documentID string, version int) (*models.DocumentVersion, error) {
	if !dbx.IsUUID(documentID) {
		return nil, common.ErrorNotFound
	}
	return r.getOne(ctx, selectColumns+` WHERE document_id=$1 AND version=$2 AND tenant_id=$3`, documentID, version, tenantID)
}

func (r *PostgresRepository) GetByID(ctx context.Context, tenantID, id string) (*models.DocumentVersion, error) {
	if !dbx.IsUUID(id) {
		return nil, common.ErrorNotFound
	}
	return r.getOne(ctx, selectColumns+` WHERE id=$1 AND tenant_id=$2`, id, tenantID)
}

func (r *PostgresRepository) GetByKey(ctx context.Context, tenantID, key string) (*models.DocumentVersion, error) {
	return r.getOne(ctx, selectColumns+` WHERE file_key=$1 AND tenant_id=$2`, key, tenantID)
}

func (r *PostgresRepository) ListByDocument(ctx context.Context, tenantID, documentID string) ([]*models.DocumentVersion, error) {
	if !dbx.IsUUID(documentID) {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, selectColumns+` WHERE document_id=$1 AND tenant_id=$2 ORDER BY version DESC`, documentID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.DocumentVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
