package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/navigation"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/rs/zerolog/log"
)

// Response carries the operation result plus whatever the core asked the page to show
// or where it asked the page to go.
type Response struct {
	Data          any                   `json:"data"`
	Notifications []notify.Notification `json:"notifications"`
	Navigation    *navigation.Action    `json:"navigation,omitempty"`
}

type ErrorResponse struct {
	Error         string                `json:"error"`
	Code          string                `json:"code,omitempty"`
	Details       string                `json:"details,omitempty"`
	Notifications []notify.Notification `json:"notifications,omitempty"`
	Navigation    *navigation.Action    `json:"navigation,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// respond writes data in the visitor envelope and hands over pending notifications
// and navigation.
func respond(w http.ResponseWriter, v *Visitor, status int, data any) {
	resp := Response{Data: data, Notifications: []notify.Notification{}}
	if v != nil {
		if n := v.Notifications.Drain(); len(n) > 0 {
			resp.Notifications = n
		}
		resp.Navigation = v.Nav.Take()
	}
	respondJSON(w, status, resp)
}

// handleError maps core and upstream errors onto HTTP statuses, keeping the
// notifications the failed operation produced.
func handleError(w http.ResponseWriter, v *Visitor, err error) {
	status, code := classify(err)
	resp := ErrorResponse{Error: errorMessage(err, status), Code: code}
	if v != nil {
		resp.Notifications = v.Notifications.Drain()
		resp.Navigation = v.Nav.Take()
	}
	respondJSON(w, status, resp)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, checkout.IllegalTransitionError):
		return http.StatusConflict, "illegal_transition"
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusConflict, "empty_cart"
	case errors.Is(err, checkout.ErrOrderInProgress):
		return http.StatusConflict, "order_in_progress"
	case errors.Is(err, checkout.ErrNoShippingMethod):
		return http.StatusBadRequest, "no_shipping_method"
	case errors.Is(err, checkout.ErrNoPaymentMethod):
		return http.StatusBadRequest, "no_payment_method"
	case errors.Is(err, checkout.ErrAddressIncomplete):
		return http.StatusBadRequest, "address_incomplete"
	case errors.Is(err, checkout.ErrUnknownShipping),
		errors.Is(err, checkout.ErrUnknownPayment),
		errors.Is(err, checkout.ErrNoReference),
		errors.Is(err, cart.ErrCouponRequired):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, cart.ErrInvalidQuantity):
		return http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, cart.ErrLineNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, cart.ErrLoginRequired):
		return http.StatusUnauthorized, "login_required"
	case errors.Is(err, session.ErrNotAuthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, session.ErrNotStaff):
		return http.StatusForbidden, "permission_denied"
	}

	if status := api.StatusOf(err); status != 0 {
		switch {
		case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
			return http.StatusBadRequest, "invalid_argument"
		case status == http.StatusUnauthorized:
			return http.StatusUnauthorized, "unauthenticated"
		case status == http.StatusForbidden:
			return http.StatusForbidden, "permission_denied"
		case status == http.StatusNotFound:
			return http.StatusNotFound, "not_found"
		case status == http.StatusConflict:
			return http.StatusConflict, "already_exists"
		case status == http.StatusTooManyRequests:
			return http.StatusTooManyRequests, "rate_limit_exceeded"
		case status == http.StatusServiceUnavailable:
			return http.StatusServiceUnavailable, "service_unavailable"
		case status == http.StatusGatewayTimeout:
			return http.StatusGatewayTimeout, "timeout"
		case status >= http.StatusInternalServerError:
			return http.StatusBadGateway, "upstream_error"
		default:
			return status, "upstream_error"
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal_error"
}

func errorMessage(err error, status int) string {
	if api.StatusOf(err) != 0 {
		return api.Message(err, "")
	}
	if status == http.StatusInternalServerError || status == http.StatusGatewayTimeout {
		return api.Message(err, "")
	}
	return err.Error()
}
