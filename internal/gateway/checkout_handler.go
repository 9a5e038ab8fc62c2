package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type CheckoutHandler struct {
	timeout time.Duration
}

func NewCheckoutHandler(timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{timeout: timeout}
}

// StartRequestDTO carries the checkout page URL as the browser sees it, including the
// reference a payment gateway appends on the way back.
type StartRequestDTO struct {
	URL string `json:"url"`
}

type AddressRequestDTO struct {
	Address domain.Address `json:"address"`
	Notes   string         `json:"notes,omitempty"`
}

type ShippingRequestDTO struct {
	ShippingMethod string `json:"shippingMethod"`
}

type PaymentRequestDTO struct {
	PaymentMethod string `json:"paymentMethod"`
}

// Get shows the current step. A cart emptied mid-checkout sends the buyer back to it.
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	v.Checkout.Guard()
	respond(w, v, http.StatusOK, v.Checkout.Snapshot())
}

func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	var req StartRequestDTO
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}
	var pageURL *url.URL
	if req.URL != "" {
		u, err := url.Parse(req.URL)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_argument", "url is not valid")
			return
		}
		pageURL = u
	}

	if err := v.Checkout.Start(ctx, pageURL); err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, v.Checkout.Snapshot())
}

// SetAddress stores the address and, once it names a new state, fetches the shipping
// options for it.
func (h *CheckoutHandler) SetAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	var req AddressRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	before := v.Checkout.Snapshot()
	v.Checkout.SetNotes(req.Notes)
	if err := v.Checkout.SetAddress(req.Address); err != nil {
		handleError(w, v, err)
		return
	}
	after := v.Checkout.Snapshot()
	if after.Address.State != before.Address.State || len(after.ShippingMethods) == 0 {
		if err := v.Checkout.LoadShippingRates(ctx, ""); err != nil {
			handleError(w, v, err)
			return
		}
	}
	respond(w, v, http.StatusOK, v.Checkout.Snapshot())
}

func (h *CheckoutHandler) ShippingRates(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	if err := v.Checkout.LoadShippingRates(ctx, r.URL.Query().Get("state")); err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, v.Checkout.Snapshot())
}

func (h *CheckoutHandler) SelectShipping(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())

	var req ShippingRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := v.Checkout.SelectShippingMethod(req.ShippingMethod); err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, v.Checkout.Snapshot())
}

func (h *CheckoutHandler) Continue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	if err := v.Checkout.ContinueToPayment(ctx); err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, v.Checkout.Snapshot())
}

func (h *CheckoutHandler) SelectPayment(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())

	var req PaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := v.Checkout.SelectPaymentMethod(req.PaymentMethod); err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, v.Checkout.Snapshot())
}

func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())

	if err := v.Checkout.Back(); err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, v.Checkout.Snapshot())
}

func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	if _, err := v.Checkout.PlaceOrder(ctx); err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusCreated, v.Checkout.Snapshot())
}
