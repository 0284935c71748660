package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"log-archiver/internal/domain/ports/adapter"
)

// Ensure compile-time conformance
var _ adapter.StorageBackend = (*LocalBackend)(nil)

// LocalBackend stores artifacts under a directory root. Put copies to a
// temp file in the destination directory and renames it into place, so
// a failed upload never leaves a partial object visible.
type LocalBackend struct {
	root   string
	prefix string
}

func NewLocalBackend(root, keyPrefix string) (*LocalBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalBackend{root: root, prefix: keyPrefix}, nil
}

func (b *LocalBackend) fullKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return path.Join(b.prefix, key)
}

func (b *LocalBackend) Put(ctx context.Context, localPath, key string) (string, error) {
	dst := filepath.Join(b.root, filepath.FromSlash(b.fullKey(key)))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("local put %s: %w", key, err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("local put %s: %w", key, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("local put %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return "", fmt.Errorf("local put %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("local put %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("local put %s: %w", key, err)
	}
	return dst, nil
}

func (b *LocalBackend) Delete(ctx context.Context, key string) error {
	dst := filepath.Join(b.root, filepath.FromSlash(b.fullKey(key)))
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("local delete %s: %w", key, err)
	}
	return nil
}

func (b *LocalBackend) List(ctx context.Context, olderThan time.Time) ([]adapter.ObjectInfo, error) {
	base := filepath.Join(b.root, filepath.FromSlash(b.prefix))
	var out []adapter.ObjectInfo
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !olderThan.IsZero() && !info.ModTime().Before(olderThan) {
			return nil
		}
		rel, err := filepath.Rel(b.root, p)
		if err != nil {
			return err
		}
		out = append(out, adapter.ObjectInfo{
			Key:     strings.TrimPrefix(filepath.ToSlash(rel), b.prefix+"/"),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("local list: %w", err)
	}
	return out, nil
}
