package adapter

import (
	"context"
	"time"

	"log-archiver/internal/domain/model"
)

// ObjectInfo describes one archived artifact in a storage backend.
type ObjectInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// StorageBackend is the capability interface over one storage variant
// (local disk, S3, GCS). A backend is configured with its own
// credentials/endpoint and an optional key prefix it prepends to every
// key it handles. Put must not leave a partial object visible on
// failure, and re-uploading an existing key overwrites it.
type StorageBackend interface {
	// Put uploads the local file under key and returns the remote location.
	Put(ctx context.Context, localPath, key string) (string, error)

	// Delete removes key from the backend. A missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns objects under the backend's prefix whose modification
	// time is strictly before olderThan. Pass the zero time to list all.
	List(ctx context.Context, olderThan time.Time) ([]ObjectInfo, error)
}

// Uploader ships a local artifact to the configured backend. On
// acknowledged success the local file is deleted; on failure it is
// retained for inspection.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}

// ArchiveWriter serializes a batch of records to a single local
// artifact. An empty batch writes a valid empty artifact.
type ArchiveWriter interface {
	// Write serializes records for (date, hourRange) and returns the
	// artifact's local path. Each call overwrites any previous artifact
	// for the same slot.
	Write(date, hourRange string, records []model.LogRecord) (string, error)

	// Key is the destination key for a slot's artifact, before the
	// backend's own prefix is applied.
	Key(date, hourRange string) string
}
