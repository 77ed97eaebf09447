package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusCompleted  OrderStatus = "Completed"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusCompleted},
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from s to next.
// Statuses only move forward; Completed and Cancelled are terminal.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ShippingAddress is the delivery destination captured at checkout.
// It is persisted as a single JSON text column.
type ShippingAddress struct {
	RecipientName        string `json:"recipientName" validate:"required"`
	RecipientPhoneNumber string `json:"recipientPhoneNumber" validate:"required"`
	Email                string `json:"email" validate:"required,email"`
	Province             string `json:"province" validate:"required"`
	City                 string `json:"city" validate:"required"`
	District             string `json:"district" validate:"required"`
	FullAddress          string `json:"fullAddress" validate:"required"`
	PostalCode           string `json:"postalCode" validate:"required"`
}

// Value serializes the address for the shipping_address column.
func (a ShippingAddress) Value() (driver.Value, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan deserializes the shipping_address column.
func (a *ShippingAddress) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*a = ShippingAddress{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported shipping address type %T", src)
	}
	if len(data) == 0 {
		*a = ShippingAddress{}
		return nil
	}
	if err := json.Unmarshal(data, a); err != nil {
		return errors.New("invalid shipping address encoding")
	}
	return nil
}

// Order is a purchase of a single product by a single user.
// Orders are never deleted.
type Order struct {
	// ID is the unique identifier of the order.
	ID int `json:"id" db:"id"`

	// ProductID references the purchased product. Nil once the product
	// has been removed from the catalog.
	ProductID *int `json:"productId" db:"product_id"`

	// ProductName is a snapshot of the product name at checkout.
	ProductName string `json:"productName" db:"product_name"`

	// UserID references the purchaser.
	UserID int `json:"userId" db:"user_id"`

	// TotalAmount equals the product price at the time the order was placed.
	TotalAmount int64 `json:"totalAmount" db:"total_amount"`

	Status          OrderStatus     `json:"status" db:"status"`
	ShippingAddress ShippingAddress `json:"shippingAddress" db:"shipping_address"`
	PaymentMethod   string          `json:"paymentMethod" db:"payment_method"`

	// PhoneNumber is copied from the recipient phone number.
	PhoneNumber string `json:"phoneNumber" db:"phone_number"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// OrderItem is the per-product line of a customer order view.
type OrderItem struct {
	ID          int    `json:"id"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"`
	ImageURL    string `json:"imageUrl"`
}

// CustomerOrder is an order as shown to the purchaser, enriched with
// product details.
type CustomerOrder struct {
	ID          int         `json:"id"`
	OrderDate   time.Time   `json:"orderDate"`
	TotalAmount int64       `json:"totalAmount"`
	Status      OrderStatus `json:"status"`
	Items       []OrderItem `json:"items"`
}

// Purchaser is the public identity of the user that placed an order.
type Purchaser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Address  string `json:"address"`
}

// ProductOrder is an order as shown to administrators, enriched with
// purchaser identity.
type ProductOrder struct {
	Order
	Purchaser Purchaser `json:"user"`
}

// OrderWithProduct joins an order with whatever is left of its product.
// Product is nil when the product has been deleted.
type OrderWithProduct struct {
	Order
	Product *Product
}
