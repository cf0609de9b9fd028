package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/casevault/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Save(ctx context.Context, e Entry) error {
	req, err := json.Marshal(e.Request)
	if err != nil {
		return fmt.Errorf("marshal finalize request: %w", err)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pending_uploads (intent_id, file_path, request, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(intent_id) DO UPDATE SET file_path = excluded.file_path, request = excluded.request
	`, e.Request.IntentID, e.FilePath, string(req), e.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save pending upload[%s]: %w", e.Request.IntentID, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, intentID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pending_uploads WHERE intent_id = ?`, intentID)
	if err != nil {
		return fmt.Errorf("failed to delete pending upload[%s]: %w", intentID, err)
	}
	return nil
}

// List returns pending uploads oldest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT file_path, request, created_at FROM pending_uploads ORDER BY created_at, intent_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending uploads: %w", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var (
			e       Entry
			req     string
			created int64
		)
		if err := rows.Scan(&e.FilePath, &req, &created); err != nil {
			return nil, fmt.Errorf("failed to scan pending upload row: %w", err)
		}
		if err := json.Unmarshal([]byte(req), &e.Request); err != nil {
			return nil, fmt.Errorf("failed to decode pending upload: %w", err)
		}
		e.CreatedAt = time.Unix(0, created)
		result = append(result, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending upload rows: %w", err)
	}

	return result, nil
}
