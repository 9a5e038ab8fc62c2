package gateway

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

const maxPageLimit = 100

type CatalogHandler struct {
	timeout time.Duration
}

func NewCatalogHandler(timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{timeout: timeout}
}

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	q := r.URL.Query()
	page, err := optionalInt(q.Get("page"))
	if err != nil || page < 0 {
		respondError(w, http.StatusBadRequest, "invalid_argument", "page must be a positive integer")
		return
	}
	limit, err := optionalInt(q.Get("limit"))
	if err != nil || limit < 0 || limit > maxPageLimit {
		respondError(w, http.StatusBadRequest, "invalid_argument", "limit must be between 1 and 100")
		return
	}

	list, err := v.Client.ListProducts(ctx, domain.ProductQuery{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Sort:     q.Get("sort"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, list)
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	product, err := v.Client.GetProduct(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, product)
}

func (h *CatalogHandler) Featured(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	products, err := v.Client.FeaturedProducts(ctx)
	if err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, products)
}

func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFrom(r.Context())

	categories, err := v.Client.Categories(ctx)
	if err != nil {
		handleError(w, v, err)
		return
	}
	respond(w, v, http.StatusOK, categories)
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
