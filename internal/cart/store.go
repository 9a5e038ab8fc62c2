// Package cart keeps one logical cart per visitor. Guests get a cart persisted in local
// storage; logged-in users get the server's cart, mutated optimistically.
package cart

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/rs/zerolog"
)

const (
	opSync         = "sync"
	opAdd          = "add"
	opUpdate       = "update"
	opRemove       = "remove"
	opClear        = "clear"
	opApplyCoupon  = "apply_coupon"
	opRemoveCoupon = "remove_coupon"
	opMerge        = "merge"
)

// Snapshot is a consistent copy of the store's state.
type Snapshot struct {
	Cart    domain.Cart `json:"cart"`
	Mode    Mode        `json:"mode"`
	Loading bool        `json:"loading"`
	Error   string      `json:"error,omitempty"`
}

type Store struct {
	mu   sync.Mutex
	cart domain.Cart
	// committed is the last cart the server confirmed
	committed domain.Cart
	backend   backend
	owner     string // user id while in server mode
	version   uint64 // bumped by every mutation and sync
	pending   int
	err       error

	guest    *guestBackend
	server   *serverBackend
	notifier notify.Notifier
	metrics  *metrics.Metrics
	events   events.Publisher
	log      zerolog.Logger
}

// NewStore starts in guest mode with an empty cart; call Sync to load the real one.
func NewStore(cartAPI CartAPI, persisted storage.Store, notifier notify.Notifier, m *metrics.Metrics, pub events.Publisher, log zerolog.Logger) *Store {
	if pub == nil {
		pub = events.Nop
	}
	guest := &guestBackend{store: persisted}
	return &Store{
		cart:      domain.EmptyCart(),
		committed: domain.EmptyCart(),
		backend:   guest,
		guest:     guest,
		server:    &serverBackend{api: cartAPI},
		notifier:  notifier,
		metrics:   m,
		events:    pub,
		log:       logger.Component(log, "cart"),
	}
}

// SetAPI replaces the server cart client. Used when the client is built after the store.
func (s *Store) SetAPI(cartAPI CartAPI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.server.api = cartAPI
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{Cart: s.cart.Clone(), Mode: s.backend.mode(), Loading: s.pending > 0}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

func (s *Store) Cart() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

func (s *Store) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.mode()
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending > 0
}

// Err is the error of the last operation, nil if it succeeded.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Sync picks the backend from the authentication state and reloads the cart from it.
func (s *Store) Sync(ctx context.Context, authenticated bool) error {
	s.mu.Lock()
	var b backend = s.guest
	if authenticated {
		b = s.server
	}
	if s.backend.mode() != b.mode() {
		s.cart = domain.EmptyCart()
		s.committed = domain.EmptyCart()
	}
	s.backend = b
	s.version++
	s.pending++
	s.err = nil
	s.mu.Unlock()

	c, err := b.load(ctx)

	s.mu.Lock()
	s.pending--
	current := s.backend.mode() == b.mode()
	if current {
		s.err = err
		if err == nil || b.mode() == ModeGuest {
			s.cart = c
			s.committed = c.Clone()
		}
	}
	s.mu.Unlock()

	s.metrics.CartOperation(opSync, string(b.mode()), err)
	if err != nil {
		logger.FromContext(ctx, s.log).Warn().Err(err).Str("mode", string(b.mode())).Msg("cart sync failed")
		if b.mode() == ModeServer {
			s.notifier.Notify(notify.LevelError, api.Message(err, "Could not load your cart."))
		}
		return err
	}
	return nil
}

// HandleAuthChange follows the session: logging in merges a non-empty guest cart into the
// account, logging out falls back to the guest cart, switching users reloads.
func (s *Store) HandleAuthChange(ctx context.Context, prev, cur *domain.Identity) {
	log := logger.FromContext(ctx, s.log)
	switch {
	case prev == nil && cur != nil:
		s.setOwner(cur.User.ID)
		guest, err := s.guest.load(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("unreadable guest cart, skipping merge")
		}
		if err == nil && !guest.IsEmpty() {
			if _, err := s.MergeGuestIntoServer(ctx); err != nil {
				log.Warn().Err(err).Msg("guest cart merge incomplete")
			}
			return
		}
		_ = s.Sync(ctx, true)
	case prev != nil && cur == nil:
		s.setOwner("")
		_ = s.Sync(ctx, false)
	case prev != nil && cur != nil && prev.User.ID != cur.User.ID:
		s.setOwner(cur.User.ID)
		_ = s.Sync(ctx, true)
	}
}

func (s *Store) setOwner(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = userID
}

func (s *Store) AddItem(ctx context.Context, product domain.ProductRef, quantity int, variantID string) error {
	if quantity < 1 {
		return s.reject(opAdd, ErrInvalidQuantity)
	}
	return s.mutate(ctx, mutation{
		op: opAdd,
		local: func(c domain.Cart) (domain.Cart, error) {
			return addLine(c, product, variantID, quantity), nil
		},
		remote: func(ctx context.Context, a CartAPI) (*domain.Cart, error) {
			return a.AddToCart(ctx, product.ID, variantID, quantity)
		},
		success: fmt.Sprintf("%s added to cart", product.Name),
		failure: "Could not add the item to your cart.",
	})
}

// UpdateItemQuantity sets a line's quantity. Anything below 1 removes the line.
func (s *Store) UpdateItemQuantity(ctx context.Context, lineID string, quantity int) error {
	if quantity < 1 {
		return s.RemoveItem(ctx, lineID)
	}
	return s.mutate(ctx, mutation{
		op: opUpdate,
		local: func(c domain.Cart) (domain.Cart, error) {
			return setQuantity(c, lineID, quantity)
		},
		remote: func(ctx context.Context, a CartAPI) (*domain.Cart, error) {
			return a.UpdateCartItem(ctx, lineID, quantity)
		},
		success: "Cart updated",
		failure: "Could not update your cart.",
	})
}

func (s *Store) RemoveItem(ctx context.Context, lineID string) error {
	return s.mutate(ctx, mutation{
		op: opRemove,
		local: func(c domain.Cart) (domain.Cart, error) {
			return removeLine(c, lineID)
		},
		remote: func(ctx context.Context, a CartAPI) (*domain.Cart, error) {
			return a.RemoveCartItem(ctx, lineID)
		},
		success: "Item removed from cart",
		failure: "Could not remove the item.",
	})
}

// Clear empties the cart. Checkout calls it after a successful order.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, mutation{
		op: opClear,
		local: func(domain.Cart) (domain.Cart, error) {
			return domain.EmptyCart(), nil
		},
		remote: func(ctx context.Context, a CartAPI) (*domain.Cart, error) {
			if err := a.ClearCart(ctx); err != nil {
				return nil, err
			}
			empty := domain.EmptyCart()
			return &empty, nil
		},
		success: "Cart cleared",
		failure: "Could not clear your cart.",
	})
}

// ApplyCoupon needs an account: a guest cart rejects it and stays as it is.
func (s *Store) ApplyCoupon(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return s.reject(opApplyCoupon, ErrCouponRequired)
	}
	if s.Mode() == ModeGuest {
		return s.reject(opApplyCoupon, ErrLoginRequired)
	}
	return s.mutate(ctx, mutation{
		op: opApplyCoupon,
		remote: func(ctx context.Context, a CartAPI) (*domain.Cart, error) {
			return a.ApplyCoupon(ctx, code)
		},
		success: "Coupon applied",
		failure: "Could not apply the coupon.",
	})
}

// RemoveCoupon on a guest cart only resets the discount.
func (s *Store) RemoveCoupon(ctx context.Context) error {
	return s.mutate(ctx, mutation{
		op: opRemoveCoupon,
		local: func(c domain.Cart) (domain.Cart, error) {
			return dropCoupon(c), nil
		},
		remote: func(ctx context.Context, a CartAPI) (*domain.Cart, error) {
			return a.RemoveCoupon(ctx)
		},
		success: "Coupon removed",
		failure: "Could not remove the coupon.",
	})
}

type mutation struct {
	op string
	// local computes the new cart without the network. For the server cart it is the
	// optimistic draft; nil means there is no sensible draft.
	local  func(domain.Cart) (domain.Cart, error)
	remote func(context.Context, CartAPI) (*domain.Cart, error)

	success string
	failure string
}

func (s *Store) mutate(ctx context.Context, m mutation) error {
	s.mu.Lock()
	switch b := s.backend.(type) {
	case *guestBackend:
		defer s.mu.Unlock()
		return s.mutateGuest(ctx, b, m)
	case *serverBackend:
		s.mu.Unlock()
		return s.mutateServer(ctx, b, m)
	default:
		s.mu.Unlock()
		return fmt.Errorf("unknown cart backend %T", b)
	}
}

// mutateGuest runs under s.mu. Guest writes are local and never interleave.
func (s *Store) mutateGuest(ctx context.Context, b *guestBackend, m mutation) error {
	if m.local == nil {
		s.err = ErrLoginRequired
		s.notifier.Notify(notify.LevelError, errorMessage(ErrLoginRequired))
		return ErrLoginRequired
	}
	next, err := m.local(s.cart)
	if err == nil {
		err = b.save(ctx, next)
	}
	s.version++
	s.err = err
	if err == nil {
		s.cart = next
	}

	s.metrics.CartOperation(m.op, string(ModeGuest), err)
	if err != nil {
		logger.FromContext(ctx, s.log).Warn().Err(err).Str("op", m.op).Msg("guest cart mutation failed")
		s.notifier.Notify(notify.LevelError, m.failure)
		return err
	}
	s.notifier.Notify(notify.LevelSuccess, m.success)
	return nil
}

// mutateServer shows the draft right away and swaps in the server's snapshot when it
// answers, last response wins. A failure restores the pre-mutation cart unless a newer
// mutation already moved it; once nothing is in flight it falls back to the last
// confirmed cart so no failed draft lingers.
func (s *Store) mutateServer(ctx context.Context, b *serverBackend, m mutation) error {
	s.mu.Lock()
	prev := s.cart.Clone()
	if m.local != nil {
		draft, err := m.local(prev)
		if err != nil {
			s.err = err
			s.mu.Unlock()
			s.metrics.CartOperation(m.op, string(ModeServer), err)
			s.notifier.Notify(notify.LevelError, m.failure)
			return err
		}
		s.cart = draft
	}
	s.version++
	version := s.version
	s.pending++
	s.err = nil
	cartAPI := b.api
	s.mu.Unlock()

	next, err := m.remote(ctx, cartAPI)

	s.mu.Lock()
	s.pending--
	if s.backend.mode() != ModeServer {
		// logged out while the call was in flight
		s.mu.Unlock()
		return err
	}
	switch {
	case err == nil:
		s.cart = normalize(*next)
		s.committed = s.cart.Clone()
	case s.pending == 0:
		s.cart = s.committed.Clone()
		s.err = err
	case s.version == version:
		s.cart = prev
		s.err = err
	default:
		s.err = err
	}
	s.mu.Unlock()

	s.metrics.CartOperation(m.op, string(ModeServer), err)
	if err != nil {
		logger.FromContext(ctx, s.log).Warn().Err(err).Str("op", m.op).Msg("server cart mutation failed")
		s.notifier.Notify(notify.LevelError, api.Message(err, m.failure))
		return fmt.Errorf("cart %s failed: %w", m.op, err)
	}
	s.notifier.Notify(notify.LevelSuccess, m.success)
	return nil
}

// reject records a validation failure that never reaches a backend.
func (s *Store) reject(op string, err error) error {
	s.mu.Lock()
	s.err = err
	mode := s.backend.mode()
	s.mu.Unlock()

	s.metrics.CartOperation(op, string(mode), err)
	s.notifier.Notify(notify.LevelError, errorMessage(err))
	return err
}

func errorMessage(err error) string {
	msg := err.Error()
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}
