package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	appcfg "log-archiver/internal/config"
	"log-archiver/internal/domain/ports/adapter"
)

// Ensure compile-time conformance
var _ adapter.StorageBackend = (*GCSBackend)(nil)

// GCSBackend ships artifacts to a Google Cloud Storage bucket. An object
// only becomes visible when its writer is closed successfully, so
// failed uploads leave no partial object.
type GCSBackend struct {
	client *gcs.Client
	bucket string
	prefix string
}

func NewGCSBackend(ctx context.Context, cfg appcfg.GCSConfig, keyPrefix string) (*GCSBackend, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCSBackend{client: client, bucket: cfg.Bucket, prefix: keyPrefix}, nil
}

func (b *GCSBackend) fullKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return path.Join(b.prefix, key)
}

func (b *GCSBackend) Put(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("gcs put %s: %w", key, err)
	}
	defer f.Close()

	full := b.fullKey(key)
	w := b.client.Bucket(b.bucket).Object(full).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs put %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs put %s: %w", key, err)
	}
	return fmt.Sprintf("gs://%s/%s", b.bucket, full), nil
}

func (b *GCSBackend) Delete(ctx context.Context, key string) error {
	err := b.client.Bucket(b.bucket).Object(b.fullKey(key)).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete %s: %w", key, err)
	}
	return nil
}

func (b *GCSBackend) List(ctx context.Context, olderThan time.Time) ([]adapter.ObjectInfo, error) {
	q := &gcs.Query{}
	if b.prefix != "" {
		q.Prefix = b.prefix + "/"
	}
	it := b.client.Bucket(b.bucket).Objects(ctx, q)

	var out []adapter.ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list: %w", err)
		}
		if !olderThan.IsZero() && !attrs.Updated.Before(olderThan) {
			continue
		}
		key := attrs.Name
		if b.prefix != "" {
			key = key[len(b.prefix)+1:]
		}
		out = append(out, adapter.ObjectInfo{Key: key, Size: attrs.Size, ModTime: attrs.Updated})
	}
	return out, nil
}

// Close releases the underlying client.
func (b *GCSBackend) Close() error { return b.client.Close() }
