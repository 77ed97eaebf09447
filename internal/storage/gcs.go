package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/ryshoes/storefront/config"
	"google.golang.org/api/option"
)

type gcsBucket struct {
	handle    *storage.BucketHandle
	name      string
	projectID string
}

func newGCSBucket(ctx context.Context, cfg config.GCSConfig) (*gcsBucket, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &gcsBucket{
		handle:    client.Bucket(cfg.Bucket),
		name:      cfg.Bucket,
		projectID: cfg.ProjectID,
	}, nil
}

// Ensure creates the bucket when it is missing. Creation needs a project id.
func (b *gcsBucket) Ensure(ctx context.Context) error {
	_, err := b.handle.Attrs(ctx)
	if err == nil || !errors.Is(err, storage.ErrBucketNotExist) {
		return err
	}
	if strings.TrimSpace(b.projectID) == "" {
		return errors.New("gcs project id is required to create bucket")
	}
	return b.handle.Create(ctx, b.projectID, nil)
}

func (b *gcsBucket) Write(ctx context.Context, key string, data []byte, contentType string) error {
	w := b.handle.Object(key).NewWriter(ctx)
	// Zero chunk size sends the object in a single request.
	w.ChunkSize = 0
	w.ContentType = contentType
	w.CacheControl = CacheControl
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (b *gcsBucket) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := b.handle.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return reader, nil
}

func (b *gcsBucket) Remove(ctx context.Context, key string) error {
	err := b.handle.Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (b *gcsBucket) String() string {
	return "gs://" + b.name
}
