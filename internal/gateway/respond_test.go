package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"empty cart", checkout.ErrEmptyCart, http.StatusConflict, "empty_cart"},
		{"illegal transition", fmt.Errorf("place: %w", checkout.IllegalTransitionError), http.StatusConflict, "illegal_transition"},
		{"no shipping", checkout.ErrNoShippingMethod, http.StatusBadRequest, "no_shipping_method"},
		{"address", checkout.ErrAddressIncomplete, http.StatusBadRequest, "address_incomplete"},
		{"login required", cart.ErrLoginRequired, http.StatusUnauthorized, "login_required"},
		{"missing line", cart.ErrLineNotFound, http.StatusNotFound, "not_found"},
		{"not staff", session.ErrNotStaff, http.StatusForbidden, "permission_denied"},
		{"upstream 400", &api.Error{Status: http.StatusBadRequest, Message: "bad"}, http.StatusBadRequest, "invalid_argument"},
		{"upstream 409", &api.Error{Status: http.StatusConflict}, http.StatusConflict, "already_exists"},
		{"upstream 500", fmt.Errorf("cart add failed: %w", &api.Error{Status: http.StatusInternalServerError}), http.StatusBadGateway, "upstream_error"},
		{"breaker open", &api.Error{Status: http.StatusServiceUnavailable}, http.StatusServiceUnavailable, "service_unavailable"},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestErrorMessage_HidesInternals(t *testing.T) {
	err := errors.New("dial tcp 10.0.0.3:5432: connection refused")
	status, _ := classify(err)
	assert.NotContains(t, errorMessage(err, status), "10.0.0.3")

	assert.Equal(t, "Out of stock", errorMessage(&api.Error{Status: http.StatusConflict, Message: "Out of stock"}, http.StatusConflict))
	assert.Equal(t, cart.ErrLoginRequired.Error(), errorMessage(cart.ErrLoginRequired, http.StatusUnauthorized))
}
