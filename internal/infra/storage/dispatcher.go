package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	appcfg "log-archiver/internal/config"
	"log-archiver/internal/domain/ports/adapter"
	"log-archiver/internal/infra/metrics"
)

// Ensure compile-time conformance
var _ adapter.Uploader = (*Dispatcher)(nil)

// Dispatcher wraps the configured backend with the upload contract the
// slot processor relies on: an acknowledged upload deletes the local
// artifact (so sustained backfills never grow local disk unbounded),
// and a failed upload leaves it in place.
type Dispatcher struct {
	backend adapter.StorageBackend
	name    string
	log     *zerolog.Logger
}

// NewBackend selects the storage variant from configuration. The choice
// is made once here; nothing downstream inspects the concrete type.
func NewBackend(ctx context.Context, cfg appcfg.StorageConfig) (adapter.StorageBackend, error) {
	switch cfg.Backend {
	case "local":
		return NewLocalBackend(cfg.Local.Root, cfg.KeyPrefix)
	case "s3":
		return NewS3Backend(ctx, cfg.S3, cfg.KeyPrefix)
	case "gcs":
		return NewGCSBackend(ctx, cfg.GCS, cfg.KeyPrefix)
	default:
		return nil, fmt.Errorf("storage backend %q: want local, s3 or gcs", cfg.Backend)
	}
}

func NewDispatcher(backend adapter.StorageBackend, backendName string, logger *zerolog.Logger) *Dispatcher {
	l := logger.With().Str("component", "UploadDispatcher").Str("backend", backendName).Logger()
	return &Dispatcher{backend: backend, name: backendName, log: &l}
}

func (d *Dispatcher) Upload(ctx context.Context, localPath, key string) (string, error) {
	var size int64
	if fi, err := os.Stat(localPath); err == nil {
		size = fi.Size()
	}

	location, err := d.backend.Put(ctx, localPath, key)
	if err != nil {
		metrics.IncUpload(d.name, "error")
		return "", err
	}
	metrics.IncUpload(d.name, "ok")
	metrics.AddUploadBytes(d.name, size)

	if err := os.Remove(localPath); err != nil {
		// The upload itself stands; only the local cleanup failed.
		d.log.Warn().Err(err).Str("path", localPath).Msg("uploaded artifact left on disk")
	}
	return location, nil
}
