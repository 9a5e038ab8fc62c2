package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

func (c *Client) ListProducts(ctx context.Context, q domain.ProductQuery) (*domain.ProductList, error) {
	values := url.Values{}
	if q.Category != "" {
		values.Set("category", q.Category)
	}
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	if q.Sort != "" {
		values.Set("sort", q.Sort)
	}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}

	var list domain.ProductList
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/products", query: values}, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) GetProduct(ctx context.Context, slug string) (*domain.Product, error) {
	var p domain.Product
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/products/" + url.PathEscape(slug)}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) FeaturedProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/products/featured"}, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/categories"}, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}
