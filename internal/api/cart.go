package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type addToCartRequest struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity"`
}

func (c *Client) cartCall(ctx context.Context, req request) (*domain.Cart, error) {
	var cart domain.Cart
	if _, err := c.do(ctx, req, &cart); err != nil {
		return nil, err
	}
	if cart.Items == nil {
		cart.Items = []domain.CartLine{}
	}
	return &cart, nil
}

func (c *Client) GetCart(ctx context.Context) (*domain.Cart, error) {
	return c.cartCall(ctx, request{method: http.MethodGet, path: "/cart"})
}

func (c *Client) AddToCart(ctx context.Context, productID, variantID string, quantity int) (*domain.Cart, error) {
	return c.cartCall(ctx, request{
		method: http.MethodPost,
		path:   "/cart/items",
		body:   addToCartRequest{ProductID: productID, VariantID: variantID, Quantity: quantity},
	})
}

func (c *Client) UpdateCartItem(ctx context.Context, lineID string, quantity int) (*domain.Cart, error) {
	return c.cartCall(ctx, request{
		method: http.MethodPut,
		path:   "/cart/items/" + url.PathEscape(lineID),
		body:   map[string]int{"quantity": quantity},
	})
}

func (c *Client) RemoveCartItem(ctx context.Context, lineID string) (*domain.Cart, error) {
	return c.cartCall(ctx, request{method: http.MethodDelete, path: "/cart/items/" + url.PathEscape(lineID)})
}

func (c *Client) ClearCart(ctx context.Context) error {
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/cart"}, nil)
	return err
}

func (c *Client) ApplyCoupon(ctx context.Context, code string) (*domain.Cart, error) {
	return c.cartCall(ctx, request{method: http.MethodPost, path: "/cart/coupon", body: map[string]string{"code": code}})
}

func (c *Client) RemoveCoupon(ctx context.Context) (*domain.Cart, error) {
	return c.cartCall(ctx, request{method: http.MethodDelete, path: "/cart/coupon"})
}
