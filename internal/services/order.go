package services

import (
	"context"
	"strings"

	"github.com/ryshoes/storefront/internal/logging"
	"github.com/ryshoes/storefront/internal/metrics"
	"github.com/ryshoes/storefront/internal/mq"
	"github.com/ryshoes/storefront/internal/session"
	"github.com/ryshoes/storefront/types"
	"github.com/sirupsen/logrus"
)

// OrderRepository defines persistence operations for orders.
type OrderRepository interface {
	Create(ctx context.Context, order types.Order) (types.Order, error)
	Get(ctx context.Context, id int) (types.Order, error)
	ListByUser(ctx context.Context, userID int) ([]types.OrderWithProduct, error)
	ListByProduct(ctx context.Context, productID int) ([]types.ProductOrder, error)
	UpdateStatus(ctx context.Context, id int, from, to types.OrderStatus) (types.Order, error)
}

// CreateOrderInput is the checkout payload. Any client supplied amount is
// ignored.
type CreateOrderInput struct {
	ProductID       int                    `json:"productId" validate:"required,gt=0"`
	ShippingAddress *types.ShippingAddress `json:"shippingAddress" validate:"required"`
	PaymentMethod   string                 `json:"paymentMethod" validate:"required"`
}

// OrderService encapsulates checkout and order history.
type OrderService struct {
	repo      OrderRepository
	publisher EventPublisher
}

func NewOrderService(repo OrderRepository, publisher EventPublisher) *OrderService {
	return &OrderService{repo: repo, publisher: publisher}
}

// Create places an order for the logged-in user. The total is taken from
// the product price inside the insert transaction.
func (s *OrderService) Create(ctx context.Context, actor session.Data, input CreateOrderInput) (types.Order, error) {
	if !actor.IsLoggedIn {
		return types.Order{}, ErrUnauthorized
	}

	input.PaymentMethod = strings.TrimSpace(input.PaymentMethod)
	if input.ShippingAddress != nil {
		trimAddress(input.ShippingAddress)
	}
	if verr := validateStruct(input, nil); verr.OrNil() != nil {
		verr.Message = "Missing required fields"
		return types.Order{}, verr
	}

	productID := input.ProductID
	order, err := s.repo.Create(ctx, types.Order{
		ProductID:       &productID,
		UserID:          actor.ID,
		Status:          types.OrderStatusPending,
		ShippingAddress: *input.ShippingAddress,
		PaymentMethod:   input.PaymentMethod,
		PhoneNumber:     input.ShippingAddress.RecipientPhoneNumber,
	})
	if err != nil {
		return types.Order{}, mapStoreError(err)
	}

	metrics.OrdersCreated.Inc()
	entry := logging.FromContext(ctx).WithFields(logrus.Fields{
		"order_id":   order.ID,
		"product_id": productID,
		"user_id":    actor.ID,
		"total":      order.TotalAmount,
	})
	entry.Info("order created")
	s.publish(ctx, entry, mq.EventOrderCreated, order)
	return order, nil
}

// ListForUser returns the orders of the logged-in user, newest first.
func (s *OrderService) ListForUser(ctx context.Context, actor session.Data) ([]types.CustomerOrder, error) {
	if !actor.IsLoggedIn {
		return nil, ErrUnauthorized
	}

	rows, err := s.repo.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	orders := make([]types.CustomerOrder, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, types.CustomerOrder{
			ID:          row.ID,
			OrderDate:   row.CreatedAt,
			TotalAmount: row.TotalAmount,
			Status:      row.Status,
			Items:       []types.OrderItem{orderItem(row)},
		})
	}
	return orders, nil
}

func orderItem(row types.OrderWithProduct) types.OrderItem {
	item := types.OrderItem{
		ProductName: row.ProductName,
		Quantity:    1,
		Price:       row.TotalAmount,
	}
	if row.Product != nil {
		item.ID = row.Product.ID
		item.ProductName = row.Product.Name
		item.Price = row.Product.Price
		item.ImageURL = row.Product.CatalogImageURL
	}
	return item
}

// ListForProduct returns every order of a product with its purchaser,
// newest first. Admin only.
func (s *OrderService) ListForProduct(ctx context.Context, actor session.Data, productID int) ([]types.ProductOrder, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if productID < 1 {
		return nil, ErrNotFound
	}
	return s.repo.ListByProduct(ctx, productID)
}

// UpdateStatus moves an order forward in its lifecycle. Admin only.
func (s *OrderService) UpdateStatus(ctx context.Context, actor session.Data, id int, status types.OrderStatus) (types.Order, error) {
	if err := requireAdmin(actor); err != nil {
		return types.Order{}, err
	}
	if !status.Valid() {
		verr := &ValidationError{}
		verr.Add("status", "Unknown order status")
		return types.Order{}, verr
	}
	if id < 1 {
		return types.Order{}, ErrNotFound
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Order{}, mapStoreError(err)
	}
	if !current.Status.CanTransition(status) {
		return types.Order{}, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, id, current.Status, status)
	if err != nil {
		return types.Order{}, mapStoreError(err)
	}

	entry := logging.FromContext(ctx).WithFields(logrus.Fields{
		"order_id": id,
		"from":     current.Status,
		"to":       status,
	})
	entry.Info("order status changed")
	s.publish(ctx, entry, mq.EventOrderStatusChanged, updated)
	return updated, nil
}

func (s *OrderService) publish(ctx context.Context, entry *logrus.Entry, eventType string, order types.Order) {
	if s.publisher == nil {
		return
	}
	event, err := mq.NewEvent(eventType, order.ID, order)
	if err == nil {
		_, err = s.publisher.PublishEvent(ctx, mq.ChannelOrders, event)
	}
	if err != nil {
		entry.WithError(err).Warn("order event not published")
	}
}

func requireAdmin(actor session.Data) error {
	if !actor.IsLoggedIn {
		return ErrUnauthorized
	}
	if actor.Role != types.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

func trimAddress(a *types.ShippingAddress) {
	a.RecipientName = strings.TrimSpace(a.RecipientName)
	a.RecipientPhoneNumber = strings.TrimSpace(a.RecipientPhoneNumber)
	a.Email = strings.TrimSpace(a.Email)
	a.Province = strings.TrimSpace(a.Province)
	a.City = strings.TrimSpace(a.City)
	a.District = strings.TrimSpace(a.District)
	a.FullAddress = strings.TrimSpace(a.FullAddress)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
}
