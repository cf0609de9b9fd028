package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/casevault/internal/uploadapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	db := openTemp(t)

	require.NoError(t, RunMigrations(context.Background(), db))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='pending_uploads'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLiteRepository_SaveListDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(openTemp(t))

	first := Entry{
		FilePath:  "/tmp/brief.pdf",
		CreatedAt: time.Unix(100, 0),
		Request: uploadapi.FinalizeUploadRequest{
			IntentID:         "i1",
			DocumentID:       "d1",
			ExpectedVersion:  2,
			Key:              "documents/t1/c1/d1/2-abc-brief.pdf",
			ExpectedFileSize: 1024,
			DocumentMeta:     uploadapi.DocumentMeta{Title: "Brief"},
		},
	}
	second := Entry{FilePath: "/tmp/exhibit.png", CreatedAt: time.Unix(200, 0), Request: uploadapi.FinalizeUploadRequest{IntentID: "i2"}}

	require.NoError(t, repo.Save(ctx, second))
	require.NoError(t, repo.Save(ctx, first))

	got, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.Request, got[0].Request)
	assert.Equal(t, "/tmp/brief.pdf", got[0].FilePath)
	assert.True(t, got[0].CreatedAt.Equal(first.CreatedAt))
	assert.Equal(t, "i2", got[1].Request.IntentID)

	require.NoError(t, repo.Delete(ctx, "i1"))
	got, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "i2", got[0].Request.IntentID)
}

func TestSQLiteRepository_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(openTemp(t))

	e := Entry{FilePath: "a", Request: uploadapi.FinalizeUploadRequest{IntentID: "i1", FileName: "a.pdf"}}
	require.NoError(t, repo.Save(ctx, e))
	e.Request.FileName = "b.pdf"
	require.NoError(t, repo.Save(ctx, e))

	got, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b.pdf", got[0].Request.FileName)
}
