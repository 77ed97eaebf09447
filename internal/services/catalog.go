package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ryshoes/storefront/internal/cache"
	"github.com/ryshoes/storefront/internal/logging"
	"github.com/ryshoes/storefront/internal/metrics"
	"github.com/ryshoes/storefront/types"
)

const (
	catalogCachePrefix = "catalog:"
	// catalogGenerationKey lives outside catalogCachePrefix so invalidation
	// never resets it.
	catalogGenerationKey = "catalog-generation"
	defaultCatalogTTL    = 5 * time.Minute
)

// ProductRepository defines persistence operations for products.
type ProductRepository interface {
	List(ctx context.Context) ([]types.Product, error)
	Get(ctx context.Context, id int) (types.Product, error)
	Create(ctx context.Context, product types.Product) (types.Product, error)
	Update(ctx context.Context, product types.Product, newImages []string) (types.Product, error)
	Delete(ctx context.Context, id int) error
}

// Filter narrows a product listing. Zero values disable a criterion.
type Filter struct {
	// Query matches a case-insensitive substring of the product name.
	Query string
	// Size matches the size label exactly.
	Size     string
	MinPrice *int64
	MaxPrice *int64
}

// CatalogService serves read-only catalog views, cached until the next
// product mutation. Cached views are keyed by a generation counter that every
// mutation bumps, so a read that raced a mutation stores its stale view under
// a generation nobody reads any more.
type CatalogService struct {
	repo  ProductRepository
	cache cache.Cache
	ttl   time.Duration
}

// NewCatalogService builds the catalog. A nil cache disables caching.
func NewCatalogService(repo ProductRepository, c cache.Cache, ttl time.Duration) *CatalogService {
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	return &CatalogService{repo: repo, cache: c, ttl: ttl}
}

// List returns every product, newest first.
func (s *CatalogService) List(ctx context.Context) ([]types.Product, error) {
	key, cacheable := s.cacheKey(ctx, "list")

	var products []types.Product
	if cacheable && s.lookup(ctx, key, &products) {
		return products, nil
	}

	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.store(ctx, key, products)
	}
	return products, nil
}

// Search lists the catalog and applies filter to it.
func (s *CatalogService) Search(ctx context.Context, filter Filter) ([]types.Product, error) {
	products, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return FilterProducts(products, filter), nil
}

// Get returns one product with its detail images.
func (s *CatalogService) Get(ctx context.Context, id int) (types.Product, error) {
	if id < 1 {
		return types.Product{}, ErrNotFound
	}

	key, cacheable := s.cacheKey(ctx, fmt.Sprintf("product:%d", id))

	var product types.Product
	if cacheable && s.lookup(ctx, key, &product) {
		return product, nil
	}

	product, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Product{}, mapStoreError(err)
	}
	if cacheable {
		s.store(ctx, key, product)
	}
	return product, nil
}

// Invalidate moves the catalog to a new generation and drops every cached
// view.
func (s *CatalogService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Incr(ctx, catalogGenerationKey); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("catalog generation bump failed")
	}
	if err := s.cache.DeleteByPrefix(ctx, catalogCachePrefix); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("catalog cache invalidation failed")
	}
}

func (s *CatalogService) lookup(ctx context.Context, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	found, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("key", key).Warn("catalog cache read failed")
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return false
	}
	if !found {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return true
}

func (s *CatalogService) store(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("key", key).Warn("catalog cache write failed")
	}
}

// cacheKey names view under the current generation. It reports false when
// there is no cache or the generation cannot be read, and the caller then
// bypasses the cache.
func (s *CatalogService) cacheKey(ctx context.Context, view string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	var generation int64
	if _, err := s.cache.Get(ctx, catalogGenerationKey, &generation); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("catalog generation read failed")
		return "", false
	}
	return fmt.Sprintf("%s%d:%s", catalogCachePrefix, generation, view), true
}

// FilterProducts returns the products matching every criterion of f,
// preserving order.
func FilterProducts(products []types.Product, f Filter) []types.Product {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	size := strings.TrimSpace(f.Size)

	matched := make([]types.Product, 0, len(products))
	for _, product := range products {
		if query != "" && !strings.Contains(strings.ToLower(product.Name), query) {
			continue
		}
		if size != "" && product.SizeValue() != size {
			continue
		}
		if f.MinPrice != nil && product.Price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && product.Price > *f.MaxPrice {
			continue
		}
		matched = append(matched, product)
	}
	return matched
}
