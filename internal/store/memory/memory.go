// Package memory provides in-process repositories with the same behavior as
// the postgres store. Used by tests and by STORE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ryshoes/storefront/internal/store"
	"github.com/ryshoes/storefront/types"
)

// Store holds every table behind one lock so cross-table operations
// (order creation, product deletion) stay atomic.
type Store struct {
	mu sync.RWMutex

	users    map[int]types.User
	products map[int]types.Product
	orders   map[int]types.Order

	nextUserID    int
	nextProductID int
	nextImageID   int
	nextOrderID   int

	now func() time.Time
}

func New() *Store {
	return &Store{
		users:    make(map[int]types.User),
		products: make(map[int]types.Product),
		orders:   make(map[int]types.Order),
		now:      time.Now,
	}
}

// tick returns a strictly increasing timestamp so newest-first ordering is
// stable even when writes land within the clock resolution.
func (s *Store) tick(last time.Time) time.Time {
	now := s.now()
	if !now.After(last) {
		now = last.Add(time.Microsecond)
	}
	return now
}

func (s *Store) Users() *UserRepository       { return &UserRepository{s: s} }
func (s *Store) Products() *ProductRepository { return &ProductRepository{s: s} }
func (s *Store) Orders() *OrderRepository     { return &OrderRepository{s: s} }

// UserRepository is the in-memory counterpart of store.UserRepository.
type UserRepository struct {
	s *Store
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, user := range r.s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Username == user.Username {
			return types.User{}, store.ErrConflict
		}
	}
	r.s.nextUserID++
	user.ID = r.s.nextUserID
	user.CreatedAt = r.s.now()
	user.UpdatedAt = user.CreatedAt
	r.s.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	for id, existing := range r.s.users {
		if id != user.ID && existing.Username == user.Username {
			return types.User{}, store.ErrConflict
		}
	}
	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = r.s.now()
	r.s.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) Upsert(ctx context.Context, user types.User) (types.User, error) {
	r.s.mu.Lock()
	for id, existing := range r.s.users {
		if existing.Username == user.Username {
			existing.Role = user.Role
			existing.PasswordHash = user.PasswordHash
			existing.UpdatedAt = r.s.now()
			r.s.users[id] = existing
			r.s.mu.Unlock()
			return existing, nil
		}
	}
	r.s.mu.Unlock()
	return r.Create(ctx, user)
}

// ProductRepository is the in-memory counterpart of store.ProductRepository.
type ProductRepository struct {
	s *Store
}

func (r *ProductRepository) List(ctx context.Context) ([]types.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	products := make([]types.Product, 0, len(r.s.products))
	for _, product := range r.s.products {
		product.Images = nil
		products = append(products, product)
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].ID > products[j].ID
		}
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return products, nil
}

func (r *ProductRepository) Get(ctx context.Context, id int) (types.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	product, ok := r.s.products[id]
	if !ok {
		return types.Product{}, store.ErrNotFound
	}
	return cloneProduct(product), nil
}

func (r *ProductRepository) Create(ctx context.Context, product types.Product) (types.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var last time.Time
	for _, existing := range r.s.products {
		if existing.CreatedAt.After(last) {
			last = existing.CreatedAt
		}
	}

	r.s.nextProductID++
	product.ID = r.s.nextProductID
	product.CreatedAt = r.s.tick(last)
	product.UpdatedAt = product.CreatedAt

	images := make([]types.ProductImage, 0, len(product.Images))
	for _, image := range product.Images {
		r.s.nextImageID++
		images = append(images, types.ProductImage{ID: r.s.nextImageID, ProductID: product.ID, URL: image.URL})
	}
	product.Images = images

	r.s.products[product.ID] = cloneProduct(product)
	return product, nil
}

func (r *ProductRepository) Update(ctx context.Context, product types.Product, newImages []string) (types.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.products[product.ID]
	if !ok {
		return types.Product{}, store.ErrNotFound
	}

	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = r.s.now()
	product.Images = append([]types.ProductImage{}, current.Images...)
	for _, url := range newImages {
		r.s.nextImageID++
		product.Images = append(product.Images, types.ProductImage{ID: r.s.nextImageID, ProductID: product.ID, URL: url})
	}

	r.s.products[product.ID] = cloneProduct(product)
	return cloneProduct(product), nil
}

func (r *ProductRepository) Delete(ctx context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.s.products, id)
	for orderID, order := range r.s.orders {
		if order.ProductID != nil && *order.ProductID == id {
			order.ProductID = nil
			r.s.orders[orderID] = order
		}
	}
	return nil
}

func cloneProduct(product types.Product) types.Product {
	product.Images = append([]types.ProductImage{}, product.Images...)
	if product.Size != nil {
		size := *product.Size
		product.Size = &size
	}
	return product
}

// OrderRepository is the in-memory counterpart of store.OrderRepository.
type OrderRepository struct {
	s *Store
}

func (r *OrderRepository) Create(ctx context.Context, order types.Order) (types.Order, error) {
	if order.ProductID == nil {
		return types.Order{}, store.ErrNotFound
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	product, ok := r.s.products[*order.ProductID]
	if !ok {
		return types.Order{}, store.ErrNotFound
	}

	var last time.Time
	for _, existing := range r.s.orders {
		if existing.CreatedAt.After(last) {
			last = existing.CreatedAt
		}
	}

	r.s.nextOrderID++
	order.ID = r.s.nextOrderID
	order.ProductName = product.Name
	order.TotalAmount = product.Price
	order.CreatedAt = r.s.tick(last)
	order.UpdatedAt = order.CreatedAt
	productID := product.ID
	order.ProductID = &productID

	r.s.orders[order.ID] = order
	return order, nil
}

func (r *OrderRepository) Get(ctx context.Context, id int) (types.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	order, ok := r.s.orders[id]
	if !ok {
		return types.Order{}, store.ErrNotFound
	}
	return order, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID int) ([]types.OrderWithProduct, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	orders := make([]types.OrderWithProduct, 0)
	for _, order := range r.s.sortedOrders() {
		if order.UserID != userID {
			continue
		}
		item := types.OrderWithProduct{Order: order}
		if order.ProductID != nil {
			if product, ok := r.s.products[*order.ProductID]; ok {
				product = cloneProduct(product)
				product.Images = nil
				item.Product = &product
			}
		}
		orders = append(orders, item)
	}
	return orders, nil
}

func (r *OrderRepository) ListByProduct(ctx context.Context, productID int) ([]types.ProductOrder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	orders := make([]types.ProductOrder, 0)
	for _, order := range r.s.sortedOrders() {
		if order.ProductID == nil || *order.ProductID != productID {
			continue
		}
		user, ok := r.s.users[order.UserID]
		if !ok {
			continue
		}
		orders = append(orders, types.ProductOrder{
			Order: order,
			Purchaser: types.Purchaser{
				ID:       user.ID,
				Username: user.Username,
				Name:     user.Name,
				Address:  user.Address,
			},
		})
	}
	return orders, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id int, from, to types.OrderStatus) (types.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	order, ok := r.s.orders[id]
	if !ok {
		return types.Order{}, store.ErrNotFound
	}
	if order.Status != from {
		return types.Order{}, store.ErrConflict
	}
	order.Status = to
	order.UpdatedAt = r.s.now()
	r.s.orders[id] = order
	return order, nil
}

// sortedOrders must be called with the lock held.
func (s *Store) sortedOrders() []types.Order {
	orders := make([]types.Order, 0, len(s.orders))
	for _, order := range s.orders {
		orders = append(orders, order)
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders
}
