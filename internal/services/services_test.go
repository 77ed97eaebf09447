package services

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ryshoes/storefront/config"
	"github.com/ryshoes/storefront/internal/cache"
	"github.com/ryshoes/storefront/internal/mq"
	"github.com/ryshoes/storefront/internal/session"
	"github.com/ryshoes/storefront/internal/storage"
	"github.com/ryshoes/storefront/internal/store/memory"
	"github.com/ryshoes/storefront/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var (
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
	textBytes = []byte("definitely not an image")
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []mq.Event
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, channel string, event mq.Event) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return "", nil
}

func (p *recordingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.events))
	for _, event := range p.events {
		names = append(names, event.Type)
	}
	return names
}

// failingBlobs accepts failAfter uploads and rejects the rest.
type failingBlobs struct {
	BlobStore
	failAfter int
	uploads   int
}

func (b *failingBlobs) Upload(ctx context.Context, dir, filename string, data []byte, contentType string) (string, error) {
	if b.uploads >= b.failAfter {
		return "", errors.New("disk full")
	}
	b.uploads++
	return b.BlobStore.Upload(ctx, dir, filename, data, contentType)
}

type testEnv struct {
	root      string
	store     *memory.Store
	blobs     *storage.Storage
	publisher *recordingPublisher
	auth      *AuthService
	catalog   *CatalogService
	products  *ProductService
	orders    *OrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	blobs, err := storage.Open(context.Background(), config.StorageConfig{
		Backend: "local",
		Local:   config.LocalStorageConfig{Root: root},
	})
	require.NoError(t, err)

	st := memory.New()
	publisher := &recordingPublisher{}
	auth := NewAuthService(st.Users())
	auth.hashCost = bcrypt.MinCost
	catalog := NewCatalogService(st.Products(), cache.NewMemory(), 0)

	return &testEnv{
		root:      root,
		store:     st,
		blobs:     blobs,
		publisher: publisher,
		auth:      auth,
		catalog:   catalog,
		products:  NewProductService(st.Products(), blobs, catalog, publisher),
		orders:    NewOrderService(st.Orders(), publisher),
	}
}

// blobExists reports whether the object behind a /media/ reference exists.
func (e *testEnv) blobExists(t *testing.T, ref string) bool {
	t.Helper()
	key, ok := storage.KeyFromURL(ref)
	require.True(t, ok, ref)
	rc, err := e.blobs.Get(context.Background(), key)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()
	return true
}

// blobCount returns the number of product images on disk.
func (e *testEnv) blobCount(t *testing.T) int {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(e.root, "products", "*"))
	require.NoError(t, err)
	return len(matches)
}

func (e *testEnv) createProduct(t *testing.T, name string, price string) types.Product {
	t.Helper()
	product, err := e.products.Create(context.Background(), ProductInput{
		Name:         name,
		Price:        price,
		Description:  "Used, good condition",
		CatalogImage: Upload{Filename: "catalog.jpg", Data: jpegBytes},
		DetailImages: []Upload{{Filename: "detail.png", Data: pngBytes}},
	})
	require.NoError(t, err)
	return product
}

func (e *testEnv) registerUser(t *testing.T, username string) types.User {
	t.Helper()
	user, err := e.auth.Register(context.Background(), RegisterInput{
		Username: username,
		Password: "secret-password",
		Address:  "Jl. Dago 1, Bandung",
	})
	require.NoError(t, err)
	return user
}

func adminSession() session.Data {
	return session.Data{IsLoggedIn: true, ID: 1, Username: "admin", Role: types.RoleAdmin}
}

func validAddress() *types.ShippingAddress {
	return &types.ShippingAddress{
		RecipientName:        "Budi",
		RecipientPhoneNumber: "081234567890",
		Email:                "budi@example.com",
		Province:             "Jawa Barat",
		City:                 "Bandung",
		District:             "Coblong",
		FullAddress:          "Jl. Dago 1",
		PostalCode:           "40135",
	}
}
