package intents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/dbx"
	"github.com/dmitrijs2005/casevault/internal/server/models"
)

const selectColumns = `SELECT id, tenant_id, case_id, document_id, key, file_name, content_type,
	expected_file_size, expected_version, status, created_by, created_at, expires_at, updated_at,
	finalized_at, last_error, result, document_version_id, cleaned_at FROM upload_intents`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIntent(s scanner) (*models.UploadIntent, error) {
	var (
		in                   models.UploadIntent
		status               string
		finalizedAt, cleaned sql.NullTime
		lastError, versionID sql.NullString
		result               []byte
	)

	err := s.Scan(&in.ID, &in.TenantID, &in.CaseID, &in.DocumentID, &in.Key, &in.FileName, &in.ContentType,
		&in.ExpectedFileSize, &in.ExpectedVersion, &status, &in.CreatedBy, &in.CreatedAt, &in.ExpiresAt, &in.UpdatedAt,
		&finalizedAt, &lastError, &result, &versionID, &cleaned)
	if err != nil {
		return nil, err
	}

	in.Status = models.IntentStatus(status)
	if finalizedAt.Valid {
		t := finalizedAt.Time
		in.FinalizedAt = &t
	}
	if cleaned.Valid {
		t := cleaned.Time
		in.CleanedAt = &t
	}
	in.LastError = lastError.String
	in.DocumentVersionID = versionID.String
	if len(result) > 0 {
		in.Result = append([]byte(nil), result...)
	}

	return &in, nil
}

func (r *PostgresRepository) Create(ctx context.Context, in *models.UploadIntent) error {
	query := `INSERT INTO upload_intents (id, tenant_id, case_id, document_id, key, file_name, content_type,
		expected_file_size, expected_version, status, created_by, created_at, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.ExecContext(ctx, query, in.ID, in.TenantID, in.CaseID, in.DocumentID, in.Key, in.FileName,
		in.ContentType, in.ExpectedFileSize, in.ExpectedVersion, string(in.Status), in.CreatedBy,
		in.CreatedAt, in.ExpiresAt, in.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %w", dbx.ErrUniqueViolation, err)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.UploadIntent, error) {
	in, err := scanIntent(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return in, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, tenantID, id string) (*models.UploadIntent, error) {
	if !dbx.IsUUID(id) {
		return nil, common.ErrorNotFound
	}
	return r.getOne(ctx, selectColumns+` WHERE id=$1 AND tenant_id=$2`, id, tenantID)
}

func (r *PostgresRepository) GetByKey(ctx context.Context, tenantID, key string) (*models.UploadIntent, error) {
	return r.getOne(ctx, selectColumns+` WHERE key=$1 AND tenant_id=$2`, key, tenantID)
}

func (r *PostgresRepository) MarkFinalized(ctx context.Context, tenantID, id, versionID string, result []byte, at time.Time) error {
	query := `UPDATE upload_intents
		SET status='FINALIZED', document_version_id=$3, result=$4, finalized_at=$5, updated_at=$5, last_error=NULL
		WHERE id=$1 AND tenant_id=$2 AND status='INITIATED'`

	res, err := r.db.ExecContext(ctx, query, id, tenantID, versionID, result, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res, common.ErrIntentClosed)
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, tenantID, id, lastError string, result []byte, at time.Time) error {
	query := `UPDATE upload_intents
		SET status='FAILED', last_error=$3, result=$4, updated_at=$5
		WHERE id=$1 AND tenant_id=$2 AND status='INITIATED'`

	res, err := r.db.ExecContext(ctx, query, id, tenantID, lastError, result, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res, common.ErrIntentClosed)
}

func (r *PostgresRepository) RecordError(ctx context.Context, tenantID, id, lastError string, at time.Time) error {
	query := `UPDATE upload_intents SET last_error=$3, updated_at=$4
		WHERE id=$1 AND tenant_id=$2 AND status='INITIATED'`

	res, err := r.db.ExecContext(ctx, query, id, tenantID, lastError, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res, common.ErrIntentClosed)
}

func (r *PostgresRepository) MarkCleaned(ctx context.Context, tenantID, id string, at time.Time) error {
	query := `UPDATE upload_intents SET cleaned_at=$3, updated_at=$3
		WHERE id=$1 AND tenant_id=$2 AND cleaned_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, id, tenantID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.ExpectOneRow(res, common.ErrorNotFound)
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]*models.UploadIntent, error) {
	var (
		conds = []string{"tenant_id=$1"}
		args  = []any{f.TenantID}
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Status != "" {
		conds = append(conds, "status="+next(string(f.Status)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		p := next("%" + q + "%")
		conds = append(conds, fmt.Sprintf(
			"(key ILIKE %[1]s OR file_name ILIKE %[1]s OR last_error ILIKE %[1]s OR id::text ILIKE %[1]s OR document_id::text ILIKE %[1]s)", p))
	}
	if f.Cursor != "" {
		if !dbx.IsUUID(f.Cursor) {
			return nil, nil
		}
		p := next(f.Cursor)
		conds = append(conds, fmt.Sprintf(
			"(created_at, id) < (SELECT created_at, id FROM upload_intents WHERE id=%s AND tenant_id=$1)", p))
	}

	query := selectColumns + " WHERE " + strings.Join(conds, " AND ") + " ORDER BY created_at DESC, id DESC"
	if f.Take > 0 {
		query += " LIMIT " + next(f.Take)
	}

	return r.list(ctx, query, args...)
}

func (r *PostgresRepository) ListStale(ctx context.Context, tenantID string, cutoff time.Time, take int) ([]*models.UploadIntent, error) {
	query := selectColumns + ` WHERE status IN ('INITIATED', 'FAILED') AND cleaned_at IS NULL AND expires_at < $1
		AND ($2 = '' OR tenant_id = $2)
		ORDER BY expires_at ASC LIMIT $3`

	return r.list(ctx, query, cutoff, tenantID, take)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.UploadIntent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.UploadIntent
	for rows.Next() {
		in, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) CountByStatus(ctx context.Context, tenantID string) (map[models.IntentStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM upload_intents WHERE tenant_id=$1 GROUP BY status`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	counts := map[models.IntentStatus]int{
		models.IntentInitiated: 0,
		models.IntentFinalized: 0,
		models.IntentFailed:    0,
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		counts[models.IntentStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return counts, nil
}
