package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storage"
)

type Mode string

const (
	ModeGuest  Mode = "guest"
	ModeServer Mode = "server"
)

// CartAPI is the server-authoritative cart of a logged-in user.
type CartAPI interface {
	GetCart(ctx context.Context) (*domain.Cart, error)
	AddToCart(ctx context.Context, productID, variantID string, quantity int) (*domain.Cart, error)
	UpdateCartItem(ctx context.Context, lineID string, quantity int) (*domain.Cart, error)
	RemoveCartItem(ctx context.Context, lineID string) (*domain.Cart, error)
	ClearCart(ctx context.Context) error
	ApplyCoupon(ctx context.Context, code string) (*domain.Cart, error)
	RemoveCoupon(ctx context.Context) (*domain.Cart, error)
}

// backend is either *guestBackend or *serverBackend. The store switches on the
// concrete type; each mutation is written once per variant.
type backend interface {
	mode() Mode
	load(ctx context.Context) (domain.Cart, error)
}

// guestBackend keeps the whole cart under one storage key and rewrites it after every
// mutation.
type guestBackend struct {
	store storage.Store
}

func (g *guestBackend) mode() Mode { return ModeGuest }

// load returns an empty cart when nothing is stored. An unreadable snapshot is
// reported alongside an empty cart.
func (g *guestBackend) load(ctx context.Context) (domain.Cart, error) {
	var c domain.Cart
	err := storage.GetJSON(ctx, g.store, storage.KeyGuestCart, &c)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.EmptyCart(), nil
	}
	if err != nil {
		return domain.EmptyCart(), fmt.Errorf("failed to load guest cart: %w", err)
	}
	return normalize(c), nil
}

func (g *guestBackend) save(ctx context.Context, c domain.Cart) error {
	if err := storage.SetJSON(ctx, g.store, storage.KeyGuestCart, c); err != nil {
		return fmt.Errorf("failed to save guest cart: %w", err)
	}
	return nil
}

func (g *guestBackend) discard(ctx context.Context) error {
	if err := g.store.Delete(ctx, storage.KeyGuestCart); err != nil {
		return fmt.Errorf("failed to discard guest cart: %w", err)
	}
	return nil
}

type serverBackend struct {
	api CartAPI
}

func (s *serverBackend) mode() Mode { return ModeServer }

func (s *serverBackend) load(ctx context.Context) (domain.Cart, error) {
	c, err := s.api.GetCart(ctx)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("failed to fetch cart: %w", err)
	}
	return normalize(*c), nil
}
