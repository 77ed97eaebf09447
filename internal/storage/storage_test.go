package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ryshoes/storefront/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalStorage(t *testing.T) *Storage {
	t.Helper()
	st, err := Open(context.Background(), config.StorageConfig{
		Backend: "local",
		Local:   config.LocalStorageConfig{Root: t.TempDir()},
	})
	require.NoError(t, err)
	return st
}

func TestNewObjectKeyKeepsExtension(t *testing.T) {
	a := NewObjectKey("products", "Photo.JPG")
	b := NewObjectKey("products", "Photo.JPG")

	assert.True(t, strings.HasPrefix(a, "products/"))
	assert.True(t, strings.HasSuffix(a, ".jpg"))
	assert.NotEqual(t, a, b)

	assert.NotContains(t, NewObjectKey("products", `..\..\evil.png`), "..")
	assert.False(t, strings.Contains(NewObjectKey("products", "noext"), "."))
}

func TestKeyFromURL(t *testing.T) {
	key, ok := KeyFromURL("/media/products/abc.png")
	require.True(t, ok)
	assert.Equal(t, "products/abc.png", key)

	for _, ref := range []string{
		"/products/abc.png",
		"/media/",
		"/media/../etc/passwd",
		"/media/products/../../x",
		"/media//products/abc.png",
	} {
		_, ok := KeyFromURL(ref)
		assert.False(t, ok, ref)
	}
}

func TestLocalUploadGetDelete(t *testing.T) {
	st := newLocalStorage(t)
	ctx := context.Background()

	ref, err := st.Upload(ctx, "products", "shoe.png", []byte("pngdata"), "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "/media/products/"))

	key, ok := KeyFromURL(ref)
	require.True(t, ok)
	rc, err := st.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "pngdata", string(data))

	require.NoError(t, st.DeleteURL(ctx, ref))
	_, err = st.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.DeleteURL(ctx, ref), "deleting a missing object is not an error")
	assert.Error(t, st.DeleteURL(ctx, "https://elsewhere/x.png"))
}

type brokenBucket struct{}

func (brokenBucket) Ensure(ctx context.Context) error { return nil }

func (brokenBucket) Write(ctx context.Context, key string, data []byte, contentType string) error {
	return errors.New("disk full")
}

func (brokenBucket) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, ErrNotFound
}

func (brokenBucket) Remove(ctx context.Context, key string) error { return nil }

func (brokenBucket) String() string { return "broken://" }

func TestUploadWrapsBucketErrors(t *testing.T) {
	st := New(brokenBucket{})
	_, err := st.Upload(context.Background(), "products", "a.png", []byte("x"), "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "products/")
}

func TestLocalWriteLeavesOnlyTheObject(t *testing.T) {
	root := t.TempDir()
	st, err := Open(context.Background(), config.StorageConfig{
		Backend: "local",
		Local:   config.LocalStorageConfig{Root: root},
	})
	require.NoError(t, err)

	ref, err := st.Upload(context.Background(), "products", "a.jpg", []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "products"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/media/products/"+entries[0].Name(), ref)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "ftp"})
	assert.Error(t, err)
}

func TestOpenRequiresBackendSettings(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, config.StorageConfig{Backend: "minio"})
	assert.EqualError(t, err, "minio endpoint is required")

	_, err = Open(ctx, config.StorageConfig{Backend: "s3"})
	assert.EqualError(t, err, "s3 bucket is required")

	_, err = Open(ctx, config.StorageConfig{Backend: "gcs"})
	assert.EqualError(t, err, "gcs bucket is required")
}
