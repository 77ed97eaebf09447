package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ryshoes/storefront/internal/services"
	"github.com/ryshoes/storefront/internal/session"
)

// OrderHandler provides checkout and order history for logged-in users.
type OrderHandler struct {
	orders *services.OrderService
}

func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// OrderRouter registers order routes on the given router.
func OrderRouter(r chi.Router, orders *services.OrderService) {
	handler := NewOrderHandler(orders)

	r.Use(RequireSession)
	r.Get("/", handler.ListOrders)
	r.Post("/", handler.CreateOrder)
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListForUser(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, "order not found", "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req services.CreateOrderInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.orders.Create(r.Context(), session.FromContext(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, err, "Product not found", "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusCreated, CreateOrderResponse{OrderID: order.ID})
}

type CreateOrderResponse struct {
	OrderID int `json:"orderId"`
}
