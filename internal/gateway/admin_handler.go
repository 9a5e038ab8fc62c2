package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

// AdminHandler backs the console. Routes are mounted behind RequireRole.
type AdminHandler struct {
	timeout time.Duration
}

func NewAdminHandler(timeout time.Duration) *AdminHandler {
	return &AdminHandler{timeout: timeout}
}

type OrderStatusRequestDTO struct {
	Status domain.OrderStatus `json:"status"`
	Note   string             `json:"note,omitempty"`
}

func (h *AdminHandler) Orders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	page, err := optionalInt(r.URL.Query().Get("page"))
	if err != nil || page < 0 {
		respondError(w, http.StatusBadRequest, "invalid_argument", "page must be a positive integer")
		return
	}

	list, err := v.Client.AdminOrders(ctx, r.URL.Query().Get("status"), page)
	if err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, list)
}

func (h *AdminHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	var req OrderStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if !knownStatus(req.Status) {
		respondError(w, http.StatusBadRequest, "invalid_status", "unknown order status")
		return
	}

	order, err := v.Client.UpdateOrderStatus(ctx, chi.URLParam(r, "id"), req.Status, req.Note)
	if err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, order)
}

func (h *AdminHandler) Customers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	page, err := optionalInt(r.URL.Query().Get("page"))
	if err != nil || page < 0 {
		respondError(w, http.StatusBadRequest, "invalid_argument", "page must be a positive integer")
		return
	}

	list, err := v.Client.AdminCustomers(ctx, r.URL.Query().Get("search"), page)
	if err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, list)
}

func (h *AdminHandler) AdjustInventory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	var req api.InventoryAdjustment
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Stock < 0 {
		respondError(w, http.StatusBadRequest, "invalid_argument", "stock cannot be negative")
		return
	}

	product, err := v.Client.AdjustInventory(ctx, chi.URLParam(r, "id"), req)
	if err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, product)
}

func knownStatus(s domain.OrderStatus) bool {
	switch s {
	case domain.OrderStatusPending, domain.OrderStatusConfirmed, domain.OrderStatusProcessing,
		domain.OrderStatusShipped, domain.OrderStatusDelivered, domain.OrderStatusCancelled:
		return true
	}
	return false
}
