package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/ryshoes/storefront/config"
)

// URLPrefix is the path under which stored objects are served.
const URLPrefix = "/media/"

// CacheControl is attached to every stored image. Keys are never reused, so
// an object can be cached forever.
const CacheControl = "public, max-age=31536000, immutable"

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// Bucket is one blob backend. Keys are slash-separated paths relative to the
// bucket root. Removing a missing key is not an error.
type Bucket interface {
	Ensure(ctx context.Context) error
	Write(ctx context.Context, key string, data []byte, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
	String() string
}

// Storage stores product images in a Bucket and hands out /media/
// references for them.
type Storage struct {
	bucket Bucket
}

func New(bucket Bucket) *Storage {
	return &Storage{bucket: bucket}
}

// Open builds the bucket selected by cfg.Backend and makes sure it exists.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		bucket Bucket
		err    error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "local":
		bucket, err = newLocalBucket(cfg.Local)
	case "minio":
		bucket, err = newMinioBucket(cfg.Minio)
	case "gcs":
		bucket, err = newGCSBucket(ctx, cfg.GCS)
	case "s3":
		bucket, err = newS3Bucket(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := bucket.Ensure(ctx); err != nil {
		return nil, fmt.Errorf("ensure %s: %w", bucket, err)
	}
	return New(bucket), nil
}

// Get opens the object stored under key.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.bucket.Open(ctx, key)
}

// Upload stores data under a fresh unique key in dir, keeping the extension
// of filename, and returns the public reference of the object.
func (s *Storage) Upload(ctx context.Context, dir, filename string, data []byte, contentType string) (string, error) {
	key := NewObjectKey(dir, filename)
	if err := s.bucket.Write(ctx, key, data, contentType); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	return URLForKey(key), nil
}

// DeleteURL removes the object behind a reference returned by Upload.
func (s *Storage) DeleteURL(ctx context.Context, ref string) error {
	key, ok := KeyFromURL(ref)
	if !ok {
		return fmt.Errorf("not a storage reference: %q", ref)
	}
	return s.bucket.Remove(ctx, key)
}

// NewObjectKey returns dir/<uuid><ext>.
func NewObjectKey(dir, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	return path.Join(dir, uuid.NewString()+ext)
}

// URLForKey maps an object key to its public reference.
func URLForKey(key string) string {
	return URLPrefix + strings.TrimLeft(key, "/")
}

// KeyFromURL is the inverse of URLForKey. Keys that try to escape the
// bucket root are rejected.
func KeyFromURL(ref string) (string, bool) {
	if !strings.HasPrefix(ref, URLPrefix) {
		return "", false
	}
	return CleanKey(strings.TrimPrefix(ref, URLPrefix))
}

// CleanKey normalizes a client-supplied object key.
func CleanKey(key string) (string, bool) {
	if key == "" || strings.Contains(key, "\\") {
		return "", false
	}
	cleaned := path.Clean("/" + key)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." || cleaned != key {
		return "", false
	}
	return cleaned, true
}
