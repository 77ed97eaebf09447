package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/ryshoes/storefront/internal/store"
	"github.com/ryshoes/storefront/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsernameUniqueUnderConcurrency(t *testing.T) {
	users := New().Users()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := users.Create(ctx, types.User{Username: "budi", Role: types.RoleUser})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, conflicts int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, store.ErrConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 9, conflicts)
}

func TestProductListNewestFirst(t *testing.T) {
	products := New().Products()
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		_, err := products.Create(ctx, types.Product{Name: name, Price: 1, CatalogImageURL: "/media/products/x.png"})
		require.NoError(t, err)
	}

	list, err := products.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "third", list[0].Name)
	assert.Equal(t, "first", list[2].Name)
}

func TestProductUpdateAppendsImages(t *testing.T) {
	products := New().Products()
	ctx := context.Background()

	created, err := products.Create(ctx, types.Product{
		Name:   "Shoes",
		Price:  10,
		Images: []types.ProductImage{{URL: "/media/products/a.png"}},
	})
	require.NoError(t, err)

	created.Name = "Shoes v2"
	updated, err := products.Update(ctx, created, []string{"/media/products/b.png"})
	require.NoError(t, err)
	assert.Equal(t, "Shoes v2", updated.Name)
	require.Len(t, updated.Images, 2)
	assert.Equal(t, "/media/products/b.png", updated.Images[1].URL)

	_, err = products.Update(ctx, types.Product{ID: 99}, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOrdersSurviveProductDeletion(t *testing.T) {
	s := New()
	ctx := context.Background()

	user, err := s.Users().Create(ctx, types.User{Username: "budi", Role: types.RoleUser})
	require.NoError(t, err)
	product, err := s.Products().Create(ctx, types.Product{Name: "Shoes", Price: 150})
	require.NoError(t, err)

	order, err := s.Orders().Create(ctx, types.Order{ProductID: &product.ID, UserID: user.ID, TotalAmount: 1, Status: types.OrderStatusPending})
	require.NoError(t, err)
	assert.Equal(t, int64(150), order.TotalAmount)
	assert.Equal(t, "Shoes", order.ProductName)

	byProduct, err := s.Orders().ListByProduct(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, byProduct, 1)
	assert.Equal(t, "budi", byProduct[0].Purchaser.Username)

	require.NoError(t, s.Products().Delete(ctx, product.ID))

	mine, err := s.Orders().ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Nil(t, mine[0].Product)
	assert.Nil(t, mine[0].ProductID)
	assert.Equal(t, "Shoes", mine[0].ProductName)

	missing := 404
	_, err = s.Orders().Create(ctx, types.Order{ProductID: &missing, UserID: user.ID})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOrderStatusCompareAndSet(t *testing.T) {
	s := New()
	ctx := context.Background()
	product, err := s.Products().Create(ctx, types.Product{Name: "Shoes", Price: 150})
	require.NoError(t, err)
	order, err := s.Orders().Create(ctx, types.Order{ProductID: &product.ID, UserID: 1, Status: types.OrderStatusPending})
	require.NoError(t, err)

	updated, err := s.Orders().UpdateStatus(ctx, order.ID, types.OrderStatusPending, types.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusProcessing, updated.Status)

	_, err = s.Orders().UpdateStatus(ctx, order.ID, types.OrderStatusPending, types.OrderStatusCancelled)
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = s.Orders().UpdateStatus(ctx, 999, types.OrderStatusPending, types.OrderStatusCancelled)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
