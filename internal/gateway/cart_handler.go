package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

const maxLineQuantity = 99

type CartHandler struct {
	timeout time.Duration
}

func NewCartHandler(timeout time.Duration) *CartHandler {
	return &CartHandler{timeout: timeout}
}

// AddItemRequestDTO names the product either by slug, in which case the catalog is
// asked for its current price, or by the reference the page already holds.
type AddItemRequestDTO struct {
	Slug      string             `json:"slug,omitempty"`
	Product   *domain.ProductRef `json:"product,omitempty"`
	VariantID string             `json:"variantId,omitempty"`
	Quantity  int                `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CouponRequestDTO struct {
	Code string `json:"code"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	respond(w, v, http.StatusOK, v.Cart.Snapshot())
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity <= 0 || req.Quantity > maxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	var ref domain.ProductRef
	switch {
	case req.Slug != "":
		product, err := v.Client.GetProduct(ctx, req.Slug)
		if err != nil {
			handleError(w, v, err)
			return
		}
		ref = product.Ref(req.VariantID)
	case req.Product != nil && strings.TrimSpace(req.Product.ID) != "":
		ref = *req.Product
	default:
		respondError(w, http.StatusBadRequest, "invalid_product", "slug or product is required")
		return
	}

	if err := v.Cart.AddItem(ctx, ref, req.Quantity, req.VariantID); err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusCreated, v.Cart.Snapshot())
}

// UpdateQuantity sets a line's quantity; anything below one removes the line.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity > maxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
		return
	}

	if err := v.Cart.UpdateItemQuantity(ctx, chi.URLParam(r, "lineID"), req.Quantity); err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, v.Cart.Snapshot())
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	if err := v.Cart.RemoveItem(ctx, chi.URLParam(r, "lineID")); err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, v.Cart.Snapshot())
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	if err := v.Cart.Clear(ctx); err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, v.Cart.Snapshot())
}

func (h *CartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	var req CouponRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := v.Cart.ApplyCoupon(ctx, req.Code); err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, v.Cart.Snapshot())
}

func (h *CartHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	if err := v.Cart.RemoveCoupon(ctx); err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, v.Cart.Snapshot())
}
