package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/ryshoes/storefront/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

var (
	userCols    = []string{"id", "username", "name", "address", "phone", "role", "password_hash", "created_at", "updated_at"}
	productCols = []string{"id", "name", "price", "description", "size", "catalog_image_url", "created_at", "updated_at"}
	orderCols   = []string{"id", "product_id", "product_name", "user_id", "total_amount", "status",
		"shipping_address", "payment_method", "phone_number", "created_at", "updated_at"}
)

const addressJSON = `{"recipientName":"Budi","recipientPhoneNumber":"0812","email":"b@example.com","province":"Jabar","city":"Bandung","district":"Coblong","fullAddress":"Jl. Dago 1","postalCode":"40135"}`

func TestUserRepositoryCreateMapsUniqueViolation(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	_, err := repo.Create(context.Background(), types.User{Username: "budi", Role: types.RoleUser, PasswordHash: "x"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUserRepositoryGetByUsername(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery("FROM users WHERE username = \\$1").
		WithArgs("budi").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(7, "budi", "Budi", "Jl. Dago", "", "USER", "hash", now, now))
	mock.ExpectQuery("FROM users WHERE username = \\$1").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(userCols))

	user, err := repo.GetByUsername(context.Background(), "budi")
	require.NoError(t, err)
	assert.Equal(t, 7, user.ID)
	assert.Equal(t, types.RoleUser, user.Role)
	assert.Equal(t, "hash", user.PasswordHash)

	_, err = repo.GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProductRepositoryCreateWritesImagesInTransaction(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)
	size := "42"

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO products").
		WithArgs("Sneakers", int64(150000), "Lightly used", "42", "/media/products/a.png", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectQuery("INSERT INTO product_images").
		WithArgs(3, "/media/products/b.png").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectQuery("INSERT INTO product_images").
		WithArgs(3, "/media/products/c.png").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectCommit()

	created, err := repo.Create(context.Background(), types.Product{
		Name:            "Sneakers",
		Price:           150000,
		Description:     "Lightly used",
		Size:            &size,
		CatalogImageURL: "/media/products/a.png",
		Images:          []types.ProductImage{{URL: "/media/products/b.png"}, {URL: "/media/products/c.png"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, created.ID)
	require.Len(t, created.Images, 2)
	assert.Equal(t, 10, created.Images[0].ID)
	assert.Equal(t, 3, created.Images[1].ProductID)
}

func TestProductRepositoryCreateRollsBackOnImageFailure(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO products").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectQuery("INSERT INTO product_images").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), types.Product{
		Name:            "Sneakers",
		Price:           1,
		Description:     "x",
		CatalogImageURL: "/media/products/a.png",
		Images:          []types.ProductImage{{URL: "/media/products/b.png"}},
	})
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestProductRepositoryGetLoadsImages(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)
	now := time.Now()

	mock.ExpectQuery("FROM products WHERE id = \\$1").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(3, "Sneakers", int64(150000), "Lightly used", nil, "/media/products/a.png", now, now))
	mock.ExpectQuery("FROM product_images WHERE product_id = \\$1").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "url"}).
			AddRow(10, 3, "/media/products/b.png"))

	product, err := repo.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Nil(t, product.Size)
	require.Len(t, product.Images, 1)
	assert.Equal(t, "/media/products/b.png", product.Images[0].URL)
}

func TestProductRepositoryListNewestFirst(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)
	now := time.Now()

	mock.ExpectQuery("FROM products ORDER BY created_at DESC, id DESC").
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(2, "Jacket", int64(200), "d", "M", "/media/products/j.png", now, now).
			AddRow(1, "Shoes", int64(100), "d", nil, "/media/products/s.png", now.Add(-time.Hour), now))

	products, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "M", products[0].SizeValue())
	assert.Equal(t, 1, products[1].ID)
}

func TestProductRepositoryUpdateMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Update(context.Background(), types.Product{ID: 99, Name: "x", Price: 1}, []string{"/media/products/z.png"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProductRepositoryDelete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProductRepository(db)

	mock.ExpectExec("DELETE FROM products WHERE id = \\$1").WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM products WHERE id = \\$1").WithArgs(4).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), 3))
	assert.ErrorIs(t, repo.Delete(context.Background(), 4), ErrNotFound)
}

func TestOrderRepositoryCreateUsesCurrentPrice(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepository(db)
	productID := 3

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT name, price FROM products WHERE id = \\$1 FOR SHARE").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"name", "price"}).AddRow("Sneakers", int64(150000)))
	mock.ExpectQuery("INSERT INTO orders").
		WithArgs(3, "Sneakers", 7, int64(150000), "Pending", sqlmock.AnyArg(), "Transfer", "0812", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(21))
	mock.ExpectCommit()

	order, err := repo.Create(context.Background(), types.Order{
		ProductID:     &productID,
		UserID:        7,
		TotalAmount:   1,
		Status:        types.OrderStatusPending,
		PaymentMethod: "Transfer",
		PhoneNumber:   "0812",
	})
	require.NoError(t, err)
	assert.Equal(t, 21, order.ID)
	assert.Equal(t, int64(150000), order.TotalAmount)
	assert.Equal(t, "Sneakers", order.ProductName)
}

func TestOrderRepositoryCreateMissingProduct(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepository(db)
	productID := 404

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT name, price FROM products").
		WithArgs(404).
		WillReturnRows(sqlmock.NewRows([]string{"name", "price"}))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), types.Order{ProductID: &productID, UserID: 7})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrderRepositoryListByUserKeepsOrdersOfDeletedProducts(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepository(db)
	now := time.Now()

	cols := append(append([]string{}, orderCols...), "p_id", "p_name", "p_price", "p_image")
	mock.ExpectQuery("LEFT JOIN products p ON p.id = o.product_id").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(2, 3, "Sneakers", 7, int64(150000), "Pending", addressJSON, "Transfer", "0812", now, now,
				3, "Sneakers", int64(150000), "/media/products/a.png").
			AddRow(1, nil, "Old Jacket", 7, int64(90000), "Completed", addressJSON, "COD", "0812", now.Add(-time.Hour), now,
				nil, nil, nil, nil))

	orders, err := repo.ListByUser(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	require.NotNil(t, orders[0].Product)
	assert.Equal(t, "/media/products/a.png", orders[0].Product.CatalogImageURL)
	assert.Equal(t, "Bandung", orders[0].ShippingAddress.City)

	assert.Nil(t, orders[1].Product)
	assert.Nil(t, orders[1].ProductID)
	assert.Equal(t, types.OrderStatusCompleted, orders[1].Status)
}

func TestOrderRepositoryListByProductJoinsPurchaser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepository(db)
	now := time.Now()

	cols := append(append([]string{}, orderCols...), "u_id", "u_username", "u_name", "u_address")
	mock.ExpectQuery("JOIN users u ON u.id = o.user_id").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(2, 3, "Sneakers", 7, int64(150000), "Pending", addressJSON, "Transfer", "0812", now, now,
				7, "budi", "Budi", "Jl. Dago"))

	orders, err := repo.ListByProduct(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "budi", orders[0].Purchaser.Username)
	assert.Equal(t, "Jl. Dago 1", orders[0].ShippingAddress.FullAddress)
}

func TestOrderRepositoryUpdateStatusConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOrderRepository(db)
	now := time.Now()

	mock.ExpectExec("UPDATE orders SET status").
		WithArgs("Shipped", sqlmock.AnyArg(), 2, "Processing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM orders o WHERE o.id = \\$1").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(orderCols).
			AddRow(2, 3, "Sneakers", 7, int64(150000), "Cancelled", addressJSON, "Transfer", "0812", now, now))

	_, err := repo.UpdateStatus(context.Background(), 2, types.OrderStatusProcessing, types.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrConflict)
}
