package checkout

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/apitest"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/navigation"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token(context.Context) string { return string(s) }

type fixture struct {
	srv    *apitest.Server
	user   domain.User
	client *api.Client
	cart   *cart.Store
	nav    *navigation.Recorder
	toasts *notify.Queue
	events *events.Recorder
	ctrl   *Controller
}

var address = domain.Address{
	FullName: "Ada Obi",
	Phone:    "08030000000",
	Street:   "12 Marina Road",
	City:     "Lagos",
	State:    "Lagos",
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	srv := apitest.New(t)
	user := srv.AddUser("ada@example.com", "secret", domain.RoleCustomer)
	client := api.NewClient(api.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, zerolog.Nop()).
		WithTokens(staticToken(srv.IssueToken("ada@example.com")), nil)

	f := fixture{
		srv:    srv,
		user:   user,
		client: client,
		nav:    navigation.NewRecorder(),
		toasts: notify.NewQueue(0, zerolog.Nop()),
		events: &events.Recorder{},
	}
	f.cart = cart.NewStore(client, storage.NewMemoryStore(), notify.Discard, nil, nil, zerolog.Nop())
	require.NoError(t, f.cart.Sync(context.Background(), true))

	cfg := DefaultConfig()
	cfg.CallbackURL = "https://shop.test/checkout"
	f.ctrl = NewController(client, f.cart, f.nav, f.toasts, nil, f.events, cfg, zerolog.Nop())
	return f
}

// fillCart puts 2 x 10000 in the server cart.
func (f fixture) fillCart(t *testing.T) {
	t.Helper()
	p := f.srv.AddProduct(domain.Product{Name: "Oud Candle", Price: decimal.NewFromInt(10000), Stock: 5})
	require.NoError(t, f.cart.AddItem(context.Background(), p.Ref(""), 2, ""))
}

func checkoutURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

// toPayment walks a filled cart to the payment step with standard shipping.
func (f fixture) toPayment(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.ctrl.Start(ctx, checkoutURL(t, "https://shop.test/checkout")))
	require.NoError(t, f.ctrl.SetAddress(address))
	require.NoError(t, f.ctrl.LoadShippingRates(ctx, ""))
	require.NoError(t, f.ctrl.SelectShippingMethod("standard"))
	require.NoError(t, f.ctrl.ContinueToPayment(ctx))
	require.Equal(t, StepPayment, f.ctrl.Step())
}

func levels(q *notify.Queue) []notify.Level {
	var out []notify.Level
	for _, n := range q.Drain() {
		out = append(out, n.Level)
	}
	return out
}

func TestStart_EmptyCartRedirectsToCart(t *testing.T) {
	f := newFixture(t)

	err := f.ctrl.Start(context.Background(), checkoutURL(t, "https://shop.test/checkout"))
	assert.ErrorIs(t, err, ErrEmptyCart)

	a := f.nav.Take()
	require.NotNil(t, a)
	assert.Equal(t, navigation.KindNavigate, a.Kind)
	assert.Equal(t, PathCart, a.URL)
	assert.Equal(t, []notify.Level{notify.LevelWarning}, levels(f.toasts))
	assert.Zero(t, f.srv.CountCalls("GET /orders/payment-methods"))
}

func TestStart_LoadsPaymentMethods(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)

	require.NoError(t, f.ctrl.Start(context.Background(), checkoutURL(t, "https://shop.test/checkout")))

	snap := f.ctrl.Snapshot()
	assert.Equal(t, StepShipping, snap.Step)
	assert.Len(t, snap.PaymentMethods, 2)
	assert.Nil(t, f.nav.Take())
}

func TestContinueToPayment_RequiresShippingMethod(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Start(ctx, checkoutURL(t, "https://shop.test/checkout")))
	require.NoError(t, f.ctrl.SetAddress(address))
	calls := len(f.srv.Calls())

	err := f.ctrl.ContinueToPayment(ctx)
	assert.ErrorIs(t, err, ErrNoShippingMethod)
	assert.Equal(t, StepShipping, f.ctrl.Step())
	assert.Len(t, f.srv.Calls(), calls, "validation never reaches the network")
}

func TestContinueToPayment_RequiresAddress(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Start(ctx, checkoutURL(t, "https://shop.test/checkout")))
	require.NoError(t, f.ctrl.LoadShippingRates(ctx, "Lagos"))
	require.NoError(t, f.ctrl.SelectShippingMethod("express"))

	assert.ErrorIs(t, f.ctrl.SetAddress(domain.Address{FullName: "Ada"}), ErrAddressIncomplete)
	assert.ErrorIs(t, f.ctrl.ContinueToPayment(ctx), ErrAddressIncomplete)
	assert.Equal(t, StepShipping, f.ctrl.Step())
}

func TestSelectUnknownMethods(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.ctrl.SelectShippingMethod("standard"), ErrUnknownShipping)
	assert.ErrorIs(t, f.ctrl.SelectPaymentMethod("paystack"), ErrUnknownPayment)
}

func TestTotalsFollowSelection(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.LoadShippingRates(ctx, "Lagos"))

	totals := f.ctrl.Totals()
	assert.True(t, decimal.NewFromInt(21000).Equal(totals.TotalAmount))

	require.NoError(t, f.ctrl.SelectShippingMethod("express"))
	totals = f.ctrl.Totals()
	assert.True(t, decimal.NewFromInt(2500).Equal(totals.ShippingFee))
	assert.True(t, decimal.NewFromInt(23500).Equal(totals.TotalAmount))

	require.NoError(t, f.ctrl.SelectShippingMethod("standard"))
	totals = f.ctrl.Totals()
	assert.True(t, totals.ShippingFee.IsZero())
	assert.True(t, decimal.NewFromInt(1000).Equal(totals.TaxAmount))
	assert.True(t, decimal.NewFromInt(21000).Equal(totals.TotalAmount))
}

func TestPlaceOrder_RequiresPaymentMethod(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	f.toPayment(t)

	_, err := f.ctrl.PlaceOrder(context.Background())
	assert.ErrorIs(t, err, ErrNoPaymentMethod)
	assert.Zero(t, f.srv.CountCalls("POST /orders"))
	assert.Equal(t, StepPayment, f.ctrl.Step())
}

func TestPlaceOrder_WrongStep(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.PlaceOrder(context.Background())
	assert.ErrorIs(t, err, IllegalTransitionError)
}

func TestPlaceOrder_DirectPaymentConfirms(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	f.toPayment(t)
	require.NoError(t, f.ctrl.SelectPaymentMethod("bank_transfer"))
	f.toasts.Drain()

	order, err := f.ctrl.PlaceOrder(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StepConfirmation, f.ctrl.Step())
	assert.True(t, decimal.NewFromInt(21000).Equal(order.TotalAmount))
	assert.Equal(t, "standard", order.ShippingMethod)
	assert.Equal(t, address, order.ShippingAddress)
	assert.True(t, f.cart.Cart().IsEmpty())
	assert.True(t, f.srv.CartOf(f.user.ID).IsEmpty())
	assert.Nil(t, f.nav.Take())
	assert.Equal(t, []notify.Level{notify.LevelSuccess}, levels(f.toasts))

	placed := f.events.OfType(events.TypeOrderPlaced)
	require.Len(t, placed, 1)
	assert.Equal(t, order.ID, placed[0].Key)

	// an empty cart does not evict the buyer from the confirmation
	assert.True(t, f.ctrl.Guard())
	assert.Nil(t, f.nav.Take())
}

func TestPlaceOrder_RedirectGateway(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	f.toPayment(t)
	require.NoError(t, f.ctrl.SelectPaymentMethod("paystack"))

	order, err := f.ctrl.PlaceOrder(context.Background())
	require.NoError(t, err)

	a := f.nav.Take()
	require.NotNil(t, a)
	assert.Equal(t, navigation.KindRedirect, a.Kind)
	assert.Equal(t, "https://checkout.paystack.test/"+f.srv.ReferenceFor(order.ID), a.URL)
	assert.Equal(t, "https://shop.test/checkout", f.srv.CallbackFor(order.ID))

	// the flow is suspended until the gateway sends the buyer back
	assert.Equal(t, StepPayment, f.ctrl.Step())
	assert.False(t, f.cart.Cart().IsEmpty())
}

func TestPlaceOrder_RetryReusesIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	f.toPayment(t)
	require.NoError(t, f.ctrl.SelectPaymentMethod("paystack"))
	ctx := context.Background()

	_, err := f.ctrl.PlaceOrder(ctx)
	require.NoError(t, err)
	// the buyer came back without paying and tries again
	_, err = f.ctrl.PlaceOrder(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, f.srv.CountCalls("POST /orders"))
	assert.Len(t, f.srv.Orders(), 1)
}

func TestPlaceOrder_CreateFailureStaysOnPayment(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	f.toPayment(t)
	require.NoError(t, f.ctrl.SelectPaymentMethod("bank_transfer"))
	f.srv.Fail(http.MethodPost, "/orders", http.StatusBadRequest, "Insufficient stock for Oud Candle", 1)
	f.toasts.Drain()

	_, err := f.ctrl.PlaceOrder(context.Background())
	require.Error(t, err)

	assert.Equal(t, StepPayment, f.ctrl.Step())
	toasts := f.toasts.Drain()
	require.Len(t, toasts, 1)
	assert.Equal(t, "Insufficient stock for Oud Candle", toasts[0].Message)
	assert.False(t, f.cart.Cart().IsEmpty())
	assert.False(t, f.ctrl.Snapshot().Loading)
}

func (f fixture) pendingPaystackOrder(t *testing.T) *domain.Order {
	t.Helper()
	ctx := context.Background()
	p := f.srv.AddProduct(domain.Product{Name: "Amber", Price: decimal.NewFromInt(20000), Stock: 1})
	order, err := f.client.CreateOrder(ctx, domain.OrderRequest{
		Items:           []domain.OrderItem{{ProductID: p.ID, Name: p.Name, Quantity: 1, Price: p.Price}},
		ShippingAddress: address,
		ShippingMethod:  "standard",
		PaymentMethod:   "paystack",
	}, "key-1")
	require.NoError(t, err)
	_, err = f.client.InitializePayment(ctx, order.ID, "https://shop.test/checkout")
	require.NoError(t, err)
	return order
}

func TestStart_ReferenceVerifiesEvenWithEmptyCart(t *testing.T) {
	f := newFixture(t)
	order := f.pendingPaystackOrder(t)
	ref := f.srv.ReferenceFor(order.ID)
	require.True(t, f.cart.Cart().IsEmpty())

	err := f.ctrl.Start(context.Background(), checkoutURL(t, "https://shop.test/checkout?reference="+ref+"&utm=mail"))
	require.NoError(t, err)

	snap := f.ctrl.Snapshot()
	assert.Equal(t, StepConfirmation, snap.Step)
	require.NotNil(t, snap.Order)
	assert.Equal(t, domain.PaymentStatusPaid, snap.Order.PaymentStatus)

	a := f.nav.Take()
	require.NotNil(t, a)
	assert.Equal(t, navigation.KindReplace, a.Kind)
	assert.Equal(t, "https://shop.test/checkout?utm=mail", a.URL)
	assert.Equal(t, 1, f.srv.CountCalls("GET /orders/verify-payment/"+ref))
	assert.Len(t, f.events.OfType(events.TypePaymentVerified), 1)
}

func TestVerify_ClearsCart(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	order := f.pendingPaystackOrder(t)

	_, err := f.ctrl.Verify(context.Background(), f.srv.ReferenceFor(order.ID))
	require.NoError(t, err)

	assert.True(t, f.cart.Cart().IsEmpty())
	assert.True(t, f.srv.CartOf(f.user.ID).IsEmpty())
}

func TestVerify_FailureReturnsToPayment(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	f.toPayment(t)
	order := f.pendingPaystackOrder(t)
	ref := f.srv.ReferenceFor(order.ID)
	f.srv.FailVerification(ref)
	f.toasts.Drain()

	err := f.ctrl.Start(context.Background(), checkoutURL(t, "https://shop.test/checkout?reference="+ref))
	require.Error(t, err)

	assert.Equal(t, StepPayment, f.ctrl.Step())
	a := f.nav.Take()
	require.NotNil(t, a)
	assert.Equal(t, "https://shop.test/checkout", a.URL)

	toasts := f.toasts.Drain()
	require.NotEmpty(t, toasts)
	assert.Equal(t, notify.LevelError, toasts[0].Level)
	assert.Equal(t, "Payment verification failed", toasts[0].Message)

	assert.False(t, f.cart.Cart().IsEmpty(), "a failed payment keeps the cart")
	assert.Len(t, f.ctrl.Snapshot().PaymentMethods, 2)
}

func TestVerify_FailureWithoutShippingDetailsGoesToShipping(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	order := f.pendingPaystackOrder(t)
	ref := f.srv.ReferenceFor(order.ID)
	f.srv.FailVerification(ref)
	ctx := context.Background()

	err := f.ctrl.Start(ctx, checkoutURL(t, "https://shop.test/checkout?reference="+ref))
	require.Error(t, err)
	assert.Equal(t, StepShipping, f.ctrl.Step())

	require.NoError(t, f.ctrl.SelectPaymentMethod("bank_transfer"))
	orders := f.srv.CountCalls("POST /orders")
	_, err = f.ctrl.PlaceOrder(ctx)
	assert.ErrorIs(t, err, IllegalTransitionError)
	assert.Equal(t, orders, f.srv.CountCalls("POST /orders"))
}

func TestVerify_RejectedTokenKeepsReference(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	order := f.pendingPaystackOrder(t)
	ref := f.srv.ReferenceFor(order.ID)
	f.srv.Fail(http.MethodGet, "/orders/verify-payment/"+ref, http.StatusUnauthorized, "Not authorized", 1)
	f.toasts.Drain()

	err := f.ctrl.Start(context.Background(), checkoutURL(t, "https://shop.test/checkout?reference="+ref))
	require.Error(t, err)

	assert.Nil(t, f.nav.Take(), "the login redirect is left to the session")
	assert.Empty(t, f.toasts.Drain())
}

// noRatesIn drops every shipping method for one state.
type noRatesIn struct {
	*api.Client
	state string
}

func (n noRatesIn) ShippingRates(ctx context.Context, state string) ([]domain.ShippingMethod, error) {
	if state == n.state {
		return nil, nil
	}
	return n.Client.ShippingRates(ctx, state)
}

func TestPlaceOrder_RechecksShippingDetails(t *testing.T) {
	f := newFixture(t)
	f.ctrl = NewController(noRatesIn{Client: f.client, state: "Borno"}, f.cart, f.nav, f.toasts, nil, f.events, DefaultConfig(), zerolog.Nop())
	f.fillCart(t)
	f.toPayment(t)
	require.NoError(t, f.ctrl.SelectPaymentMethod("bank_transfer"))
	ctx := context.Background()

	assert.ErrorIs(t, f.ctrl.SetAddress(domain.Address{FullName: "Ada"}), ErrAddressIncomplete)
	_, err := f.ctrl.PlaceOrder(ctx)
	assert.ErrorIs(t, err, ErrAddressIncomplete)

	require.NoError(t, f.ctrl.SetAddress(address))
	require.NoError(t, f.ctrl.LoadShippingRates(ctx, "Borno"))
	require.Empty(t, f.ctrl.Snapshot().ShippingMethodID)
	_, err = f.ctrl.PlaceOrder(ctx)
	assert.ErrorIs(t, err, ErrNoShippingMethod)

	assert.Zero(t, f.srv.CountCalls("POST /orders"))
	assert.Equal(t, StepPayment, f.ctrl.Step())
}

func TestStart_ReloadKeepsIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	f.toPayment(t)
	require.NoError(t, f.ctrl.SelectPaymentMethod("paystack"))
	ctx := context.Background()

	_, err := f.ctrl.PlaceOrder(ctx)
	require.NoError(t, err)

	// the buyer reloads checkout before paying and places the order again
	require.NoError(t, f.ctrl.Start(ctx, checkoutURL(t, "https://shop.test/checkout")))
	require.NoError(t, f.ctrl.ContinueToPayment(ctx))
	require.NoError(t, f.ctrl.SelectPaymentMethod("paystack"))
	_, err = f.ctrl.PlaceOrder(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, f.srv.CountCalls("POST /orders"))
	assert.Len(t, f.srv.Orders(), 1)
}

func TestVerify_EmptyReference(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.Verify(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNoReference)
	assert.Equal(t, StepShipping, f.ctrl.Step())
}

func TestBack(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	f.toPayment(t)

	require.NoError(t, f.ctrl.Back())
	assert.Equal(t, StepShipping, f.ctrl.Step())
	require.NoError(t, f.ctrl.Back())
	assert.Equal(t, StepShipping, f.ctrl.Step())
	assert.Equal(t, "standard", f.ctrl.Snapshot().ShippingMethodID, "selection survives going back")
}

func TestLoadShippingRates_Failure(t *testing.T) {
	f := newFixture(t)
	f.srv.Fail(http.MethodGet, "/orders/shipping-rates", http.StatusInternalServerError, "", 1)

	err := f.ctrl.LoadShippingRates(context.Background(), "Lagos")
	require.Error(t, err)

	toasts := f.toasts.Drain()
	require.Len(t, toasts, 1)
	assert.Equal(t, "Could not load shipping options.", toasts[0].Message)
	assert.Empty(t, f.ctrl.Snapshot().ShippingMethods)
	assert.False(t, f.ctrl.Snapshot().Loading)
}

func TestLoadShippingRates_NeedsState(t *testing.T) {
	f := newFixture(t)
	err := f.ctrl.LoadShippingRates(context.Background(), "")
	assert.ErrorIs(t, err, ErrAddressIncomplete)
	assert.Zero(t, f.srv.CountCalls("GET /orders/shipping-rates"))
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(ErrNoShippingMethod))
	assert.False(t, IsValidation(&api.Error{Status: http.StatusBadRequest}))
}
