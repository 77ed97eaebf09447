package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ryshoes/storefront/config"
)

// localBucket keeps objects as files under a root directory.
type localBucket struct {
	root string
}

func newLocalBucket(cfg config.LocalStorageConfig) (*localBucket, error) {
	root := cfg.Root
	if root == "" {
		root = "public"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage/local: resolve root: %w", err)
	}
	return &localBucket{root: abs}, nil
}

func (b *localBucket) path(key string) string {
	return filepath.Join(b.root, filepath.FromSlash(key))
}

func (b *localBucket) Ensure(ctx context.Context) error {
	return os.MkdirAll(b.root, 0o755)
}

// Write goes through a temp file in the target directory so a reader never
// sees a half-written image.
func (b *localBucket) Write(ctx context.Context, key string, data []byte, contentType string) error {
	full := b.path(key)
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage/local: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("storage/local: create %s: %w", key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("storage/local: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("storage/local: write %s: %w", key, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("storage/local: chmod %s: %w", key, err)
	}
	return os.Rename(tmp.Name(), full)
}

func (b *localBucket) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(b.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage/local: open %s: %w", key, err)
	}
	return f, nil
}

func (b *localBucket) Remove(ctx context.Context, key string) error {
	err := os.Remove(b.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage/local: delete %s: %w", key, err)
	}
	return nil
}

func (b *localBucket) String() string {
	return "file://" + filepath.ToSlash(b.root)
}
