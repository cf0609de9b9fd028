// Package journal keeps a local record of uploads whose bytes reached
// storage but whose finalize has not yet been acknowledged, so the CLI can
// finish them after a crash or a lost connection.
package journal

import (
	"context"
	"time"

	"github.com/dmitrijs2005/casevault/internal/uploadapi"
)

// Entry is one upload waiting for finalize.
type Entry struct {
	FilePath  string
	Request   uploadapi.FinalizeUploadRequest
	CreatedAt time.Time
}

type Repository interface {
	Save(ctx context.Context, e Entry) error
	Delete(ctx context.Context, intentID string) error
	List(ctx context.Context) ([]Entry, error)
}
