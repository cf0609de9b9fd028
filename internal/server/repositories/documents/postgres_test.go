package documents

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/dbx"
	"github.com/dmitrijs2005/casevault/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	caseUUID = "6f1c2a9e-3b4d-4c5e-8f70-1a2b3c4d5e6f"
	docUUID  = "0b7e4d2c-8a1f-4e3b-9c6d-5f4e3d2c1b0a"
)

var docColumns = []string{
	"id", "tenant_id", "case_id", "title", "category", "notes",
	"file_key", "file_name", "content_type", "file_size", "version", "uploader_id",
	"created_at", "updated_at",
}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestGetByID_WithoutFile(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)SELECT id, tenant_id, case_id, .* FROM documents WHERE id=\$1 AND tenant_id=\$2`).
		WithArgs(docUUID, "t1").
		WillReturnRows(sqlmock.NewRows(docColumns).
			AddRow(docUUID, "t1", caseUUID, "Retainer", "contracts", "", nil, nil, nil, int64(0), 0, nil, now, now))

	d, err := repo.GetByID(context.Background(), "t1", docUUID)
	require.NoError(t, err)
	assert.False(t, d.HasFile())
	assert.Equal(t, 1, d.NextVersion())
	assert.Equal(t, "contracts", d.Category)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_WithFile(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM documents`).
		WithArgs(docUUID, "t1").
		WillReturnRows(sqlmock.NewRows(docColumns).
			AddRow(docUUID, "t1", caseUUID, "Brief", "", "", "k/v2", "brief.pdf", "application/pdf", int64(1000), 2, "u1", now, now))

	d, err := repo.GetByID(context.Background(), "t1", docUUID)
	require.NoError(t, err)
	assert.Equal(t, "k/v2", d.FileKey)
	assert.Equal(t, 3, d.NextVersion())
	assert.Equal(t, "u1", d.UploaderID)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM documents`).WithArgs(docUUID, "t1").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "t1", docUUID)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectExec(`(?s)^INSERT INTO documents \(id, tenant_id, case_id, .*VALUES`).
		WithArgs(docUUID, "t1", caseUUID, "Brief", "", "",
			sql.NullString{String: "k", Valid: true}, sql.NullString{String: "b.pdf", Valid: true},
			sql.NullString{String: "application/pdf", Valid: true},
			int64(10), 1, sql.NullString{String: "u1", Valid: true}, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.Document{
		ID: docUUID, TenantID: "t1", CaseID: caseUUID, Title: "Brief",
		FileKey: "k", FileName: "b.pdf", ContentType: "application/pdf", FileSize: 10,
		Version: 1, UploaderID: "u1", CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UniqueViolation(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO documents`).WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &models.Document{ID: docUUID})
	require.ErrorIs(t, err, dbx.ErrUniqueViolation)
}

func TestAdvanceVersion(t *testing.T) {
	now := time.Now().UTC()
	doc := &models.Document{
		ID: docUUID, TenantID: "t1", FileKey: "k/v3", FileName: "b.pdf", ContentType: "application/pdf",
		FileSize: 42, Version: 3, UploaderID: "u1", Title: "", Category: "pleadings", UpdatedAt: now,
	}

	tests := []struct {
		name    string
		result  sql.Result
		execErr error
		wantErr error
	}{
		{name: "applied", result: sqlmock.NewResult(0, 1)},
		{name: "stale version", result: sqlmock.NewResult(0, 0), wantErr: common.ErrVersionConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			mock.ExpectExec(`(?s)^UPDATE documents SET .* WHERE id=\$1 AND tenant_id=\$2 AND version=\$13$`).
				WithArgs(docUUID, "t1", "k/v3", "b.pdf", "application/pdf", int64(42), 3, "u1",
					"", "pleadings", "", now, 2).
				WillReturnResult(tt.result)

			err := repo.AdvanceVersion(context.Background(), doc)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAdvanceVersion_ExecError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`UPDATE documents`).WillReturnError(errors.New("conn reset"))

	err := repo.AdvanceVersion(context.Background(), &models.Document{Version: 1})
	require.ErrorContains(t, err, "db error: conn reset")
}

func TestGetByID_NonUUIDIsNotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	_, err := repo.GetByID(context.Background(), "t1", "d-lost")
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
