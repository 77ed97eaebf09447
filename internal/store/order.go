package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ryshoes/storefront/types"
)

// OrderRepository handles persistence for orders.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `o.id, o.product_id, o.product_name, o.user_id, o.total_amount, o.status,
	o.shipping_address, o.payment_method, o.phone_number, o.created_at, o.updated_at`

func orderScanTargets(order *types.Order, productID *sql.NullInt64) []any {
	return []any{
		&order.ID,
		productID,
		&order.ProductName,
		&order.UserID,
		&order.TotalAmount,
		&order.Status,
		&order.ShippingAddress,
		&order.PaymentMethod,
		&order.PhoneNumber,
		&order.CreatedAt,
		&order.UpdatedAt,
	}
}

func setProductID(order *types.Order, productID sql.NullInt64) {
	if productID.Valid {
		id := int(productID.Int64)
		order.ProductID = &id
	}
}

// Create inserts an order for order.ProductID. The product row is read with
// FOR SHARE in the same transaction, so TotalAmount always equals the price
// the product had when the order was written. A missing product yields
// ErrNotFound.
func (r *OrderRepository) Create(ctx context.Context, order types.Order) (types.Order, error) {
	if order.ProductID == nil {
		return types.Order{}, ErrNotFound
	}

	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Order{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const priceQuery = `SELECT name, price FROM products WHERE id = $1 FOR SHARE`
	if err := tx.QueryRowContext(ctx, priceQuery, *order.ProductID).Scan(&order.ProductName, &order.TotalAmount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Order{}, ErrNotFound
		}
		return types.Order{}, err
	}

	const insertQuery = `
		INSERT INTO orders (product_id, product_name, user_id, total_amount, status, shipping_address,
			payment_method, phone_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	if err := tx.QueryRowContext(
		ctx,
		insertQuery,
		*order.ProductID,
		order.ProductName,
		order.UserID,
		order.TotalAmount,
		order.Status,
		order.ShippingAddress,
		order.PaymentMethod,
		order.PhoneNumber,
		order.CreatedAt,
		order.UpdatedAt,
	).Scan(&order.ID); err != nil {
		return types.Order{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.Order{}, err
	}
	return order, nil
}

func (r *OrderRepository) Get(ctx context.Context, id int) (types.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`
	var order types.Order
	var productID sql.NullInt64
	if err := r.db.QueryRowContext(ctx, query, id).Scan(orderScanTargets(&order, &productID)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Order{}, ErrNotFound
		}
		return types.Order{}, err
	}
	setProductID(&order, productID)
	return order, nil
}

// ListByUser returns a user's orders, newest first, joined with the
// product when it still exists.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int) ([]types.OrderWithProduct, error) {
	query := `
		SELECT ` + orderColumns + `, p.id, p.name, p.price, p.catalog_image_url
		FROM orders o
		LEFT JOIN products p ON p.id = o.product_id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC, o.id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]types.OrderWithProduct, 0)
	for rows.Next() {
		var item types.OrderWithProduct
		var productID, joinedID sql.NullInt64
		var name, imageURL sql.NullString
		var price sql.NullInt64

		targets := append(orderScanTargets(&item.Order, &productID), &joinedID, &name, &price, &imageURL)
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}
		setProductID(&item.Order, productID)
		if joinedID.Valid {
			item.Product = &types.Product{
				ID:              int(joinedID.Int64),
				Name:            name.String,
				Price:           price.Int64,
				CatalogImageURL: imageURL.String,
			}
		}
		orders = append(orders, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListByProduct returns every order placed for a product, newest first,
// joined with the purchaser.
func (r *OrderRepository) ListByProduct(ctx context.Context, productID int) ([]types.ProductOrder, error) {
	query := `
		SELECT ` + orderColumns + `, u.id, u.username, u.name, u.address
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.product_id = $1
		ORDER BY o.created_at DESC, o.id DESC`
	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]types.ProductOrder, 0)
	for rows.Next() {
		var item types.ProductOrder
		var orderProductID sql.NullInt64

		targets := append(orderScanTargets(&item.Order, &orderProductID),
			&item.Purchaser.ID, &item.Purchaser.Username, &item.Purchaser.Name, &item.Purchaser.Address)
		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}
		setProductID(&item.Order, orderProductID)
		orders = append(orders, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus moves the order from one status to another. It yields
// ErrNotFound for an unknown id and ErrConflict when the stored status is
// no longer from.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int, from, to types.OrderStatus) (types.Order, error) {
	const query = `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, to, time.Now(), id, from)
	if err != nil {
		return types.Order{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Order{}, err
	}
	if affected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return types.Order{}, err
		}
		return types.Order{}, ErrConflict
	}
	return r.Get(ctx, id)
}
