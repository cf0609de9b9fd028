// Package storage talks to the object store holding document bytes.
// The service never proxies file content; it only presigns, inspects and
// deletes objects by key.
package storage

import (
	"context"
	"errors"
	"mime"
	"time"
)

// ErrNotFound is returned by HeadObject when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// ObjectInfo is what the store reports about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// Gateway is implemented by every object-store backend.
type Gateway interface {
	// PresignPut returns a URL that accepts one PUT of key with contentType.
	PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error)
	// PresignGet returns a download URL that suggests filename to the browser.
	PresignGet(ctx context.Context, key, filename string, expires time.Duration) (string, error)
	// HeadObject returns ErrNotFound if the object is not (yet) visible.
	HeadObject(ctx context.Context, key string) (*ObjectInfo, error)
	DeleteObject(ctx context.Context, key string) error
}

func attachmentDisposition(filename string) string {
	if filename == "" {
		return "attachment"
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}
