// Package reliability keeps the SQLite databases recoverable: consistent snapshots,
// off-site backup uploads with rotation, and routine database maintenance.
package reliability

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes a stored backup object
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore is the remote storage port backups are uploaded to.
// Keys are relative to the store's configured prefix.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}
