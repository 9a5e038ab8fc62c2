package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type OrdersHandler struct {
	timeout time.Duration
}

func NewOrdersHandler(timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{timeout: timeout}
}

type CancelOrderRequestDTO struct {
	Reason string `json:"reason,omitempty"`
}

func (h *OrdersHandler) MyOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	orders, err := v.Client.MyOrders(ctx)
	if err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, orders)
}

func (h *OrdersHandler) Tracking(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	tracking, err := v.Client.OrderTracking(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, tracking)
}

func (h *OrdersHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	var req CancelOrderRequestDTO
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	order, err := v.Client.CancelOrder(ctx, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, order)
}
