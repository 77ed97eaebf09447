package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ryshoes/storefront/internal/services"
	"github.com/ryshoes/storefront/internal/session"
	"github.com/ryshoes/storefront/types"
)

const (
	maxMultipartMemory    = 8 << 20
	defaultMaxUploadBytes = 32 << 20
	formFieldName         = "name"
	formFieldPrice        = "price"
	formFieldDesc         = "description"
	formFieldSize         = "size"
	formFieldCatalogImage = "catalogImage"
	formFieldDetailImages = "detailImages"
	formFieldFile         = "file"
)

var (
	errInvalidMultipart = errors.New("invalid multipart form")
	errUploadTooLarge   = errors.New("upload too large")
)

// AdminHandler provides the back-office endpoints. Every route requires an
// ADMIN session.
type AdminHandler struct {
	products       *services.ProductService
	orders         *services.OrderService
	maxUploadBytes int64
}

// NewAdminHandler constructs a handler with the provided services.
func NewAdminHandler(products *services.ProductService, orders *services.OrderService, maxUploadBytes int64) *AdminHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &AdminHandler{
		products:       products,
		orders:         orders,
		maxUploadBytes: maxUploadBytes,
	}
}

// AdminRouter registers admin routes on the given router. PUT and DELETE
// have POST aliases for plain HTML forms.
func AdminRouter(
	r chi.Router,
	auth *services.AuthService,
	products *services.ProductService,
	orders *services.OrderService,
	maxUploadBytes int64,
) {
	handler := NewAdminHandler(products, orders, maxUploadBytes)

	r.Use(RequireAdmin(auth))
	r.Route("/products", func(r chi.Router) {
		r.Get("/", handler.ListProducts)
		r.Post("/", handler.CreateProduct)
		r.Route("/{productID}", func(r chi.Router) {
			r.Put("/", handler.UpdateProduct)
			r.Post("/", handler.UpdateProduct)
			r.Delete("/", handler.DeleteProduct)
			r.Post("/delete", handler.DeleteProduct)
			r.Get("/orders", handler.ListProductOrders)
		})
	})
	r.Get("/orders", handler.ListOrders)
	r.Patch("/orders/{orderID}/status", handler.UpdateOrderStatus)
	r.Post("/uploads", handler.UploadImage)
}

func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "product not found", "failed to list products")
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	input, err := h.parseProductForm(w, r)
	if err != nil {
		writeFormError(w, err)
		return
	}

	created, err := h.products.Create(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, err, "product not found", "failed to create product")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "productID", "Invalid product ID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	input, err := h.parseProductForm(w, r)
	if err != nil {
		writeFormError(w, err)
		return
	}

	updated, err := h.products.Update(r.Context(), id, input)
	if err != nil {
		writeServiceError(w, r, err, "Product not found", "failed to update product")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "productID", "Invalid product ID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.products.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "Product not found", "failed to delete product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListProductOrders(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "productID", "Invalid product ID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeProductOrders(w, r, id)
}

// ListOrders lists the orders of the product named by ?productId=. A missing
// productId lists nothing and reports the product as not found.
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	var id int
	if raw := strings.TrimSpace(r.URL.Query().Get("productId")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid product ID")
			return
		}
		id = parsed
	}
	h.writeProductOrders(w, r, id)
}

func (h *AdminHandler) writeProductOrders(w http.ResponseWriter, r *http.Request, productID int) {
	orders, err := h.orders.ListForProduct(r.Context(), session.FromContext(r.Context()), productID)
	if err != nil {
		writeServiceError(w, r, err, "Product not found", "failed to list orders")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *AdminHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "orderID", "Invalid order ID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateOrderStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.orders.UpdateStatus(r.Context(), session.FromContext(r.Context()), id, req.Status)
	if err != nil {
		writeServiceError(w, r, err, "Order not found", "failed to update order")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// UploadImage stores one image and returns its public reference.
func (h *AdminHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		writeFormError(w, err)
		return
	}

	files, err := readUploads(r.MultipartForm, formFieldFile, h.maxUploadBytes)
	if err != nil {
		writeFormError(w, err)
		return
	}
	var file services.Upload
	if len(files) > 0 {
		file = files[0]
	}

	url, err := h.products.UploadImage(r.Context(), file)
	if err != nil {
		writeServiceError(w, r, err, "", "Upload failed")
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{PublicURL: url})
}

// UpdateOrderStatusRequest is the order status change payload.
type UpdateOrderStatusRequest struct {
	Status types.OrderStatus `json:"status"`
}

// UploadResponse carries the reference of an uploaded image.
type UploadResponse struct {
	PublicURL string `json:"publicUrl"`
}

func (h *AdminHandler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	if r.ContentLength > h.maxUploadBytes {
		return errUploadTooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errUploadTooLarge
		}
		return errInvalidMultipart
	}
	return nil
}

func (h *AdminHandler) parseProductForm(w http.ResponseWriter, r *http.Request) (services.ProductInput, error) {
	if err := h.parseMultipart(w, r); err != nil {
		return services.ProductInput{}, err
	}

	catalog, err := readUploads(r.MultipartForm, formFieldCatalogImage, h.maxUploadBytes)
	if err != nil {
		return services.ProductInput{}, err
	}
	details, err := readUploads(r.MultipartForm, formFieldDetailImages, h.maxUploadBytes)
	if err != nil {
		return services.ProductInput{}, err
	}

	input := services.ProductInput{
		Name:         r.FormValue(formFieldName),
		Price:        r.FormValue(formFieldPrice),
		Description:  r.FormValue(formFieldDesc),
		Size:         r.FormValue(formFieldSize),
		DetailImages: details,
	}
	if len(catalog) > 0 {
		input.CatalogImage = catalog[0]
	}
	return input, nil
}

// readUploads always returns the files of field as a sequence, whether the
// form sent zero, one or many.
func readUploads(form *multipart.Form, field string, limit int64) ([]services.Upload, error) {
	if form == nil {
		return nil, nil
	}

	headers := form.File[field]
	uploads := make([]services.Upload, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", field, err)
		}
		data, err := readFileLimited(file, limit)
		_ = file.Close()
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, services.Upload{Filename: header.Filename, Data: data})
	}
	return uploads, nil
}

func writeFormError(w http.ResponseWriter, err error) {
	if errors.Is(err, errUploadTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}
