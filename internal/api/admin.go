package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type AdminOrderList struct {
	Orders     []domain.Order `json:"orders"`
	Pagination domain.Page    `json:"pagination"`
}

type AdminCustomerList struct {
	Customers  []domain.Customer `json:"customers"`
	Pagination domain.Page       `json:"pagination"`
}

type InventoryAdjustment struct {
	VariantID string `json:"variantId,omitempty"`
	Stock     int    `json:"stock"`
}

func pageQuery(page int, extra map[string]string) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	for k, v := range extra {
		if v != "" {
			q.Set(k, v)
		}
	}
	return q
}

func (c *Client) AdminOrders(ctx context.Context, status string, page int) (*AdminOrderList, error) {
	var list AdminOrderList
	q := pageQuery(page, map[string]string{"status": status})
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/admin/orders", query: q}, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, note string) (*domain.Order, error) {
	var order domain.Order
	r := request{
		method: http.MethodPut,
		path:   "/admin/orders/" + url.PathEscape(orderID) + "/status",
		body:   map[string]string{"status": string(status), "note": note},
	}
	if _, err := c.do(ctx, r, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) AdminCustomers(ctx context.Context, search string, page int) (*AdminCustomerList, error) {
	var list AdminCustomerList
	q := pageQuery(page, map[string]string{"search": search})
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/admin/customers", query: q}, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) AdjustInventory(ctx context.Context, productID string, adj InventoryAdjustment) (*domain.Product, error) {
	var p domain.Product
	r := request{
		method: http.MethodPut,
		path:   "/admin/products/" + url.PathEscape(productID) + "/inventory",
		body:   adj,
	}
	if _, err := c.do(ctx, r, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
