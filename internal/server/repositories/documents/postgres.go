package documents

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

func (r *PostgresRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Document, error) {
	if !dbx.IsUUID(id) {
		return nil, common.ErrorNotFound
	}
	query := `SELECT id, tenant_id, case_id, title, category, notes,
		file_key, file_name, content_type, file_size, version, uploader_id,
		created_at, updated_at
		FROM documents WHERE id=$1 AND tenant_id=$2`

	var (
		d                                          models.Document
		fileKey, fileName, contentType, uploaderID sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, id, tenantID).Scan(
		&d.ID, &d.TenantID, &d.CaseID, &d.Title, &d.Category, &d.Notes,
		&fileKey, &fileName, &contentType, &d.FileSize, &d.Version, &uploaderID,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	d.FileKey = fileKey.String
	d.FileName = fileName.String
	d.ContentType = contentType.String
	d.UploaderID = uploaderID.String

	return &d, nil
}

func (r *PostgresRepository) Create(ctx context.Context, d *models.Document) error {
	query := `INSERT INTO documents (id, tenant_id, case_id, title, category, notes,
		file_key, file_name, content_type, file_size, version, uploader_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.TenantID, d.CaseID, d.Title, d.Category, d.Notes,
		nullString(d.FileKey), nullString(d.FileName), nullString(d.ContentType),
		d.FileSize, d.Version, nullString(d.UploaderID), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %w", dbx.ErrUniqueViolation, err)
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) AdvanceVersion(ctx context.Context, d *models.Document) error {
	query := `UPDATE documents SET
		file_key=$3, file_name=$4, content_type=$5, file_size=$6, version=$7, uploader_id=$8,
		title=COALESCE(NULLIF($9, ''), title),
		category=COALESCE(NULLIF($10, ''), category),
		notes=COALESCE(NULLIF($11, ''), notes),
		updated_at=$12
		WHERE id=$1 AND tenant_id=$2 AND version=$13`

	res, err := r.db.ExecContext(ctx, query,
		d.ID, d.TenantID, d.FileKey, d.FileName, d.ContentType, d.FileSize, d.Version, d.UploaderID,
		d.Title, d.Category, d.Notes, d.UpdatedAt, d.Version-1,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return dbx.ExpectOneRow(res, common.ErrVersionConflict)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
