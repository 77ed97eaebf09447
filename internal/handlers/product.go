package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ryshoes/storefront/internal/services"
)

// ProductHandler serves the public catalog.
type ProductHandler struct {
	catalog *services.CatalogService
}

// NewProductHandler constructs a handler with the provided catalog.
func NewProductHandler(catalog *services.CatalogService) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// ProductRouter registers catalog routes on the given router.
func ProductRouter(r chi.Router, catalog *services.CatalogService) {
	handler := NewProductHandler(catalog)

	r.Get("/", handler.ListProducts)
	r.Get("/{productID}", handler.GetProduct)
}

// ListProducts returns the catalog newest first, narrowed by the optional
// q, size, minPrice and maxPrice query parameters.
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	products, err := h.catalog.Search(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err, "product not found", "failed to list products")
		return
	}

	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "productID", "Invalid product ID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "Product not found", "failed to fetch product")
		return
	}

	writeJSON(w, http.StatusOK, product)
}

func parseFilter(r *http.Request) (services.Filter, error) {
	query := r.URL.Query()
	filter := services.Filter{
		Query: strings.TrimSpace(query.Get("q")),
		Size:  strings.TrimSpace(query.Get("size")),
	}

	var err error
	if filter.MinPrice, err = parseOptionalPrice(query.Get("minPrice")); err != nil {
		return services.Filter{}, err
	}
	if filter.MaxPrice, err = parseOptionalPrice(query.Get("maxPrice")); err != nil {
		return services.Filter{}, err
	}
	return filter, nil
}

func parseOptionalPrice(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return nil, errInvalidPrice
	}
	return &value, nil
}
