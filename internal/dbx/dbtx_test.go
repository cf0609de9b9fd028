package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:dbx_tests?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS t (id INTEGER PRIMARY KEY, v TEXT);`)
	require.NoError(t, err)
	return db
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	return n
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('ok')`)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 1, countRows(t, db), "must commit on success")
}

func TestWithTx_RollbackOnFnError(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('fail')`)
		require.NoError(t, e)
		return errors.New("boom")
	})
	require.Error(t, err)

	require.Equal(t, 0, countRows(t, db), "must rollback when fn returns error")
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := setupDB(t)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic to propagate")
		}
		require.Equal(t, 0, countRows(t, db), "must rollback on panic")
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('panic')`)
		require.NoError(t, e)
		panic("kaput")
	})
}

func TestWithTx_BeginError(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Close())

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return nil
	})
	require.Error(t, err, "begin should fail when DB is closed")
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "pg unique", err: &pgconn.PgError{Code: "23505", ConstraintName: "document_versions_document_id_version_key"}, want: true},
		{name: "wrapped pg unique", err: fmt.Errorf("db error: %w", &pgconn.PgError{Code: "23505"}), want: true},
		{name: "pg fk violation", err: &pgconn.PgError{Code: "23503"}, want: false},
		{name: "sentinel", err: fmt.Errorf("insert version: %w", ErrUniqueViolation), want: true},
		{name: "other", err: errors.New("boom"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsUniqueViolation(tt.err))
		})
	}
}

func TestWithTx_CommitErrorIsWrapped(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		// committing a tx that was already rolled back fails
		return tx.(*sql.Tx).Rollback()
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "commit tx")
}

func TestExpectOneRow(t *testing.T) {
	onZero := errors.New("no rows")

	require.NoError(t, ExpectOneRow(driverResult(1), onZero))
	require.ErrorIs(t, ExpectOneRow(driverResult(0), onZero), onZero)
	require.ErrorContains(t, ExpectOneRow(driverResult(2), onZero), "unexpected rows affected: 2")
}

type driverResult int64

func (r driverResult) LastInsertId() (int64, error) { return 0, nil }
func (r driverResult) RowsAffected() (int64, error) { return int64(r), nil }

func TestIsUUID(t *testing.T) {
	require.True(t, IsUUID("3f2b8c1e-9a4d-4e7f-8b1a-2c3d4e5f6a7b"))
	require.False(t, IsUUID(""))
	require.False(t, IsUUID("c1"))
	require.False(t, IsUUID("3f2b8c1e9a4d4e7f8b1a2c3d4e5f6a7b"))
	require.False(t, IsUUID("urn:uuid:3f2b8c1e-9a4d-4e7f-8b1a-2c3d4e5f6a7b"))
	require.False(t, IsUUID("3f2b8c1e-9a4d-4e7f-8b1a-2c3d4e5f6a7z"))
}
