package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// CreateOrder submits the order. idempotencyKey makes a retried submission return the
// order created by the first one.
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest, idempotencyKey string) (*domain.Order, error) {
	var order domain.Order
	r := request{method: http.MethodPost, path: "/orders", body: req}
	if idempotencyKey != "" {
		r.headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}
	if _, err := c.do(ctx, r, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) ShippingRates(ctx context.Context, state string) ([]domain.ShippingMethod, error) {
	var methods []domain.ShippingMethod
	q := url.Values{"state": []string{state}}
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/orders/shipping-rates", query: q}, &methods); err != nil {
		return nil, err
	}
	return methods, nil
}

func (c *Client) PaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	var methods []domain.PaymentMethod
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/orders/payment-methods"}, &methods); err != nil {
		return nil, err
	}
	return methods, nil
}

func (c *Client) InitializePayment(ctx context.Context, orderID, callbackURL string) (*domain.PaymentInit, error) {
	var init domain.PaymentInit
	r := request{
		method: http.MethodPost,
		path:   "/orders/" + url.PathEscape(orderID) + "/initialize-payment",
		body:   map[string]string{"callbackUrl": callbackURL},
	}
	if _, err := c.do(ctx, r, &init); err != nil {
		return nil, err
	}
	return &init, nil
}

func (c *Client) VerifyPayment(ctx context.Context, reference string) (*domain.Order, error) {
	var order domain.Order
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/orders/verify-payment/" + url.PathEscape(reference)}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) MyOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/orders/myorders"}, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) OrderTracking(ctx context.Context, orderID string) (*domain.OrderTracking, error) {
	var tracking domain.OrderTracking
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/orders/" + url.PathEscape(orderID) + "/tracking"}, &tracking); err != nil {
		return nil, err
	}
	return &tracking, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID, reason string) (*domain.Order, error) {
	var order domain.Order
	r := request{
		method: http.MethodPost,
		path:   "/orders/" + url.PathEscape(orderID) + "/cancel",
		body:   map[string]string{"reason": reason},
	}
	if _, err := c.do(ctx, r, &order); err != nil {
		return nil, err
	}
	return &order, nil
}
