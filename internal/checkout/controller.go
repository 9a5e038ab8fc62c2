// Package checkout drives the checkout steps: shipping, payment and confirmation, with
// a verifying step for buyers returning from the payment gateway.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/navigation"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	ReferenceParam = "reference"
	PathCart       = "/cart"
	PathCheckout   = "/checkout"
)

type OrdersAPI interface {
	ShippingRates(ctx context.Context, state string) ([]domain.ShippingMethod, error)
	PaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error)
	CreateOrder(ctx context.Context, req domain.OrderRequest, idempotencyKey string) (*domain.Order, error)
	InitializePayment(ctx context.Context, orderID, callbackURL string) (*domain.PaymentInit, error)
	VerifyPayment(ctx context.Context, reference string) (*domain.Order, error)
}

// CartSource is the cart being checked out.
type CartSource interface {
	Cart() domain.Cart
	Clear(ctx context.Context) error
}

type Config struct {
	TaxRate decimal.Decimal
	// RedirectGateway names the payment method that sends the buyer to an external page.
	RedirectGateway string
	// CallbackURL is where the gateway sends the buyer back, with ?reference= appended.
	CallbackURL string
}

func DefaultConfig() Config {
	return Config{
		TaxRate:         DefaultTaxRate,
		RedirectGateway: "paystack",
		CallbackURL:     PathCheckout,
	}
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	Step             Step                    `json:"step"`
	Address          domain.Address          `json:"address"`
	ShippingMethods  []domain.ShippingMethod `json:"shippingMethods"`
	PaymentMethods   []domain.PaymentMethod  `json:"paymentMethods"`
	ShippingMethodID string                  `json:"shippingMethod,omitempty"`
	PaymentMethod    string                  `json:"paymentMethod,omitempty"`
	Notes            string                  `json:"notes,omitempty"`
	Totals           Totals                  `json:"totals"`
	Order            *domain.Order           `json:"order,omitempty"`
	Loading          bool                    `json:"loading"`
	Error            string                  `json:"error,omitempty"`
}

type Controller struct {
	mu              sync.Mutex
	step            Step
	address         domain.Address
	shippingMethods []domain.ShippingMethod
	paymentMethods  []domain.PaymentMethod
	shippingID      string
	paymentMethod   string
	notes           string
	order           *domain.Order
	idempotencyKey  string
	placing         bool
	pending         int
	err             error
	pageURL         *url.URL

	orders   OrdersAPI
	cart     CartSource
	nav      navigation.Navigator
	notifier notify.Notifier
	metrics  *metrics.Metrics
	events   events.Publisher
	cfg      Config
	log      zerolog.Logger
}

func NewController(orders OrdersAPI, cart CartSource, nav navigation.Navigator, notifier notify.Notifier, m *metrics.Metrics, pub events.Publisher, cfg Config, log zerolog.Logger) *Controller {
	if pub == nil {
		pub = events.Nop
	}
	if cfg.TaxRate.IsZero() {
		cfg.TaxRate = DefaultTaxRate
	}
	return &Controller{
		step:     StepShipping,
		orders:   orders,
		cart:     cart,
		nav:      nav,
		notifier: notifier,
		metrics:  m,
		events:   pub,
		cfg:      cfg,
		log:      logger.Component(log, "checkout"),
	}
}

// Start is the checkout page load. A reference parameter means the gateway sent the
// buyer back: verification runs straight away whatever the cart holds. Otherwise the
// flow restarts at shipping, which needs a non-empty cart.
func (c *Controller) Start(ctx context.Context, pageURL *url.URL) error {
	if pageURL != nil {
		if ref := strings.TrimSpace(pageURL.Query().Get(ReferenceParam)); ref != "" {
			c.mu.Lock()
			c.pageURL = pageURL
			c.mu.Unlock()
			_, err := c.Verify(ctx, ref)
			return err
		}
	}

	c.mu.Lock()
	c.pageURL = pageURL
	c.order = nil
	c.err = nil
	c.transitionLocked(StepShipping)
	c.mu.Unlock()

	if !c.Guard() {
		return ErrEmptyCart
	}
	if err := c.LoadPaymentMethods(ctx); err != nil {
		logger.FromContext(ctx, c.log).Debug().Err(err).Msg("payment methods not loaded on start")
	}
	return nil
}

// Guard sends the buyer back to the cart when there is nothing to check out. It never
// fires on the confirmation or verifying steps.
func (c *Controller) Guard() bool {
	c.mu.Lock()
	step := c.step
	c.mu.Unlock()
	if step.allowsEmptyCart() || !c.cartSnapshot().IsEmpty() {
		return true
	}
	c.nav.Navigate(PathCart)
	c.notifier.Notify(notify.LevelWarning, "Your cart is empty. Add something before checking out.")
	return false
}

func (c *Controller) SetAddress(addr domain.Address) error {
	addr = trimAddress(addr)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.address = addr
	if !addr.Complete() {
		c.err = ErrAddressIncomplete
		return ErrAddressIncomplete
	}
	c.err = nil
	return nil
}

func (c *Controller) SetNotes(notes string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = strings.TrimSpace(notes)
}

// LoadShippingRates fetches the methods for state, or for the address state when state
// is empty. A selection the new list does not offer is dropped.
func (c *Controller) LoadShippingRates(ctx context.Context, state string) error {
	c.mu.Lock()
	if state == "" {
		state = c.address.State
	}
	c.begin()
	c.mu.Unlock()

	if state == "" {
		c.finish(ErrAddressIncomplete)
		return ErrAddressIncomplete
	}

	methods, err := c.orders.ShippingRates(ctx, state)
	if err != nil {
		c.finish(err)
		c.fail(ctx, "load shipping rates", err, "Could not load shipping options.")
		return fmt.Errorf("failed to load shipping rates: %w", err)
	}

	c.mu.Lock()
	c.shippingMethods = methods
	if c.findShippingLocked(c.shippingID) == nil {
		c.shippingID = ""
	}
	c.mu.Unlock()
	c.finish(nil)
	return nil
}

func (c *Controller) LoadPaymentMethods(ctx context.Context) error {
	c.mu.Lock()
	c.begin()
	c.mu.Unlock()

	methods, err := c.orders.PaymentMethods(ctx)
	if err != nil {
		c.finish(err)
		c.fail(ctx, "load payment methods", err, "Could not load payment options.")
		return fmt.Errorf("failed to load payment methods: %w", err)
	}

	c.mu.Lock()
	c.paymentMethods = methods
	if !c.offersPaymentLocked(c.paymentMethod) {
		c.paymentMethod = ""
	}
	c.mu.Unlock()
	c.finish(nil)
	return nil
}

func (c *Controller) SelectShippingMethod(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.findShippingLocked(id) == nil {
		return ErrUnknownShipping
	}
	c.shippingID = id
	return nil
}

func (c *Controller) SelectPaymentMethod(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.offersPaymentLocked(name) {
		return ErrUnknownPayment
	}
	c.paymentMethod = name
	return nil
}

// ContinueToPayment leaves the shipping step. It needs a cart, a complete address and a
// shipping method, and checks them before anything goes over the network.
func (c *Controller) ContinueToPayment(ctx context.Context) error {
	c.mu.Lock()
	if c.step != StepShipping {
		c.mu.Unlock()
		return IllegalTransitionError
	}
	c.mu.Unlock()

	if !c.Guard() {
		return ErrEmptyCart
	}

	c.mu.Lock()
	var err error
	switch {
	case c.shippingID == "":
		err = ErrNoShippingMethod
	case !c.address.Complete():
		err = ErrAddressIncomplete
	}
	if err != nil {
		c.err = err
		c.mu.Unlock()
		c.notifier.Notify(notify.LevelWarning, capitalize(err.Error()))
		return err
	}
	c.err = nil
	c.transitionLocked(StepPayment)
	needMethods := len(c.paymentMethods) == 0
	c.mu.Unlock()

	if needMethods {
		_ = c.LoadPaymentMethods(ctx)
	}
	return nil
}

// Back returns from payment to shipping. Shipping stays put.
func (c *Controller) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.step {
	case StepPayment:
		c.transitionLocked(StepShipping)
		return nil
	case StepShipping:
		return nil
	default:
		return IllegalTransitionError
	}
}

// PlaceOrder creates the order. For the redirect gateway it then asks for a payment page
// and sends the buyer there; the flow resumes in Start with the returned reference. Any
// other method confirms at once and clears the cart.
func (c *Controller) PlaceOrder(ctx context.Context) (*domain.Order, error) {
	c.mu.Lock()
	if c.step != StepPayment {
		c.mu.Unlock()
		return nil, IllegalTransitionError
	}
	if err := c.readyToPlaceLocked(); err != nil {
		c.err = err
		c.mu.Unlock()
		c.notifier.Notify(notify.LevelWarning, capitalize(err.Error()))
		return nil, err
	}
	if c.placing {
		c.mu.Unlock()
		return nil, ErrOrderInProgress
	}
	c.mu.Unlock()

	if !c.Guard() {
		return nil, ErrEmptyCart
	}
	cart := c.cartSnapshot()

	c.mu.Lock()
	if c.idempotencyKey == "" {
		c.idempotencyKey = uuid.NewString()
	}
	req := domain.OrderRequest{
		Items:           domain.OrderItemsFromCart(cart),
		ShippingAddress: c.address,
		ShippingMethod:  c.shippingID,
		PaymentMethod:   c.paymentMethod,
		Notes:           c.notes,
	}
	if cart.Coupon != nil {
		req.CouponCode = cart.Coupon.Code
	}
	key := c.idempotencyKey
	redirect := c.paymentMethod == c.cfg.RedirectGateway
	c.placing = true
	c.begin()
	c.mu.Unlock()

	order, err := c.orders.CreateOrder(ctx, req, key)
	if err != nil {
		c.endPlacing(err)
		c.fail(ctx, "create order", err, "Could not place your order. Please try again.")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	c.publish(ctx, events.TypeOrderPlaced, order)

	if redirect {
		pay, err := c.orders.InitializePayment(ctx, order.ID, c.cfg.CallbackURL)
		if err != nil {
			c.mu.Lock()
			c.order = order
			c.mu.Unlock()
			c.endPlacing(err)
			c.fail(ctx, "initialize payment", err, "Could not start the payment. Please try again.")
			return order, fmt.Errorf("failed to initialize payment: %w", err)
		}
		c.mu.Lock()
		c.order = order
		c.mu.Unlock()
		c.endPlacing(nil)
		c.nav.Redirect(pay.AuthorizationURL)
		return order, nil
	}

	c.mu.Lock()
	c.order = order
	c.idempotencyKey = ""
	c.transitionLocked(StepConfirmation)
	c.mu.Unlock()
	c.endPlacing(nil)

	c.clearCart(ctx)
	c.notifier.Notify(notify.LevelSuccess, fmt.Sprintf("Order %s placed!", order.OrderNumber))
	return order, nil
}

// Verify confirms a gateway payment. The reference is dropped from the page URL either
// way so a refresh does not verify twice. Failure goes back to the payment step, or to
// shipping when this controller holds no shipping method or address to pay for.
func (c *Controller) Verify(ctx context.Context, reference string) (*domain.Order, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrNoReference
	}

	c.mu.Lock()
	c.transitionLocked(StepVerifying)
	c.err = nil
	pageURL := c.pageURL
	c.begin()
	c.mu.Unlock()

	order, err := c.orders.VerifyPayment(ctx, reference)

	// a rejected token has already sent the buyer to the login page
	if pageURL != nil && !api.IsUnauthorized(err) {
		c.nav.ReplaceURL(navigation.WithoutQuery(pageURL, ReferenceParam))
	}

	if err != nil {
		c.mu.Lock()
		if c.shippingID == "" || !c.address.Complete() {
			c.transitionLocked(StepShipping)
		} else {
			c.transitionLocked(StepPayment)
		}
		c.mu.Unlock()
		c.finish(err)
		c.fail(ctx, "verify payment", err, "Payment verification failed. Please try again.")
		if len(c.Snapshot().PaymentMethods) == 0 {
			_ = c.LoadPaymentMethods(ctx)
		}
		return nil, fmt.Errorf("failed to verify payment: %w", err)
	}

	c.mu.Lock()
	c.order = order
	c.idempotencyKey = ""
	c.transitionLocked(StepConfirmation)
	c.mu.Unlock()
	c.finish(nil)

	c.publish(ctx, events.TypePaymentVerified, order)
	c.clearCart(ctx)
	c.notifier.Notify(notify.LevelSuccess, "Payment confirmed. Thank you for your order!")
	return order, nil
}

// Totals are derived from the current cart and the selected shipping method.
func (c *Controller) Totals() Totals {
	cart := c.cartSnapshot()
	c.mu.Lock()
	defer c.mu.Unlock()
	return ComputeTotals(cart.Subtotal, c.findShippingLocked(c.shippingID), c.cfg.TaxRate)
}

func (c *Controller) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

func (c *Controller) Snapshot() Snapshot {
	totals := c.Totals()
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		Step:             c.step,
		Address:          c.address,
		ShippingMethods:  append([]domain.ShippingMethod{}, c.shippingMethods...),
		PaymentMethods:   append([]domain.PaymentMethod{}, c.paymentMethods...),
		ShippingMethodID: c.shippingID,
		PaymentMethod:    c.paymentMethod,
		Notes:            c.notes,
		Totals:           totals,
		Loading:          c.pending > 0,
	}
	if c.order != nil {
		o := *c.order
		snap.Order = &o
	}
	if c.err != nil {
		snap.Error = c.err.Error()
	}
	return snap
}

func (c *Controller) cartSnapshot() domain.Cart {
	if c.cart == nil {
		return domain.EmptyCart()
	}
	return c.cart.Cart()
}

func (c *Controller) clearCart(ctx context.Context) {
	if c.cart == nil {
		return
	}
	if err := c.cart.Clear(ctx); err != nil {
		logger.FromContext(ctx, c.log).Warn().Err(err).Msg("failed to clear cart after order")
	}
}

func (c *Controller) publish(ctx context.Context, eventType string, o *domain.Order) {
	ev := events.New(eventType, o.ID, o)
	if err := c.events.Publish(ctx, ev); err != nil {
		logger.FromContext(ctx, c.log).Warn().Err(err).Str("event_type", eventType).Msg("failed to publish checkout event")
	}
}

// fail reports a server error as a notification. The flow itself never errors out.
func (c *Controller) fail(ctx context.Context, what string, err error, fallback string) {
	logger.FromContext(ctx, c.log).Warn().Err(err).Msg(what + " failed")
	if api.IsUnauthorized(err) {
		return
	}
	c.notifier.Notify(notify.LevelError, api.Message(err, fallback))
}

// begin must be called with c.mu held.
func (c *Controller) begin() {
	c.pending++
}

func (c *Controller) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending--
	c.err = err
}

func (c *Controller) endPlacing(err error) {
	c.mu.Lock()
	c.placing = false
	c.mu.Unlock()
	c.finish(err)
}

// transitionLocked must be called with c.mu held.
func (c *Controller) transitionLocked(to Step) {
	if c.step == to {
		return
	}
	c.metrics.CheckoutTransition(c.step.String(), to.String())
	c.log.Debug().Str("from", c.step.String()).Str("to", to.String()).Msg("checkout step")
	c.step = to
}

// readyToPlaceLocked must be called with c.mu held.
func (c *Controller) readyToPlaceLocked() error {
	switch {
	case c.shippingID == "":
		return ErrNoShippingMethod
	case !c.address.Complete():
		return ErrAddressIncomplete
	case c.paymentMethod == "":
		return ErrNoPaymentMethod
	}
	return nil
}

func (c *Controller) findShippingLocked(id string) *domain.ShippingMethod {
	if id == "" {
		return nil
	}
	for i := range c.shippingMethods {
		if c.shippingMethods[i].ID == id {
			m := c.shippingMethods[i]
			return &m
		}
	}
	return nil
}

func (c *Controller) offersPaymentLocked(name string) bool {
	if name == "" {
		return false
	}
	for _, m := range c.paymentMethods {
		if m.Name == name {
			return true
		}
	}
	return false
}

func trimAddress(a domain.Address) domain.Address {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Street = strings.TrimSpace(a.Street)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.Country = strings.TrimSpace(a.Country)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	return a
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:] + "."
}

// IsValidation reports whether err was raised locally before any network call.
func IsValidation(err error) bool {
	for _, target := range []error{ErrEmptyCart, ErrNoShippingMethod, ErrNoPaymentMethod, ErrAddressIncomplete, ErrUnknownShipping, ErrUnknownPayment, ErrNoReference, ErrOrderInProgress, IllegalTransitionError} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
