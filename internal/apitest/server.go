// Package apitest runs an in-memory storefront REST API on httptest for tests.
package apitest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const TaxRate = "0.05"

type account struct {
	user     domain.User
	password string
}

type failure struct {
	status  int
	message string
	times   int // <= 0 means forever
}

type Server struct {
	*httptest.Server

	mu             sync.Mutex
	accounts       map[string]*account // email -> account
	tokens         map[string]string   // token -> email
	products       map[string]domain.Product
	categories     []domain.Category
	carts          map[string]*domain.Cart // userID -> cart
	coupons        map[string]decimal.Decimal
	orders         map[string]*domain.Order
	idempotency    map[string]string // key -> orderID
	references     map[string]string // payment reference -> orderID
	failingRefs    map[string]bool
	callbackURLs   map[string]string // orderID -> callback
	shipping       []domain.ShippingMethod
	paymentMethods []domain.PaymentMethod
	failures       map[string]*failure
	calls          []string
	orderSeq       int
}

// New starts a server seeded with shipping and payment methods. It is closed when the
// test ends.
func New(t testing.TB) *Server {
	s := &Server{
		accounts:     make(map[string]*account),
		tokens:       make(map[string]string),
		products:     make(map[string]domain.Product),
		carts:        make(map[string]*domain.Cart),
		coupons:      make(map[string]decimal.Decimal),
		orders:       make(map[string]*domain.Order),
		idempotency:  make(map[string]string),
		references:   make(map[string]string),
		failingRefs:  make(map[string]bool),
		callbackURLs: make(map[string]string),
		failures:     make(map[string]*failure),
	}
	threshold := decimal.NewFromInt(10000)
	s.shipping = []domain.ShippingMethod{
		{ID: "standard", Name: "Standard", Description: "3-5 days", Price: decimal.NewFromInt(1000), FreeShippingThreshold: &threshold},
		{ID: "express", Name: "Express", Description: "Next day", Price: decimal.NewFromInt(2500)},
	}
	s.paymentMethods = []domain.PaymentMethod{
		{Name: "paystack", DisplayName: "Card (Paystack)", Description: "Pay securely with your card"},
		{Name: "bank_transfer", DisplayName: "Bank transfer", Description: "Pay into our account"},
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Post("/auth/login", s.login(false))
	r.Post("/auth/admin/login", s.login(true))
	r.Post("/auth/register", s.register)
	r.Post("/auth/forgotpassword", s.ok)
	r.Post("/auth/resetpassword", s.ok)

	r.Get("/products", s.listProducts)
	r.Get("/products/featured", s.featured)
	r.Get("/products/{slug}", s.getProduct)
	r.Get("/categories", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		writeData(w, http.StatusOK, s.categories)
	})
	r.Get("/orders/shipping-rates", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if r.URL.Query().Get("state") == "" {
			writeError(w, http.StatusBadRequest, "state is required")
			return
		}
		writeData(w, http.StatusOK, s.shipping)
	})
	r.Get("/orders/payment-methods", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		writeData(w, http.StatusOK, s.paymentMethods)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
			writeData(w, http.StatusOK, userFrom(r))
		})
		r.Put("/auth/updatedetails", s.updateDetails)
		r.Put("/auth/updatepassword", s.updatePassword)
		r.Get("/auth/logout", s.ok)

		r.Get("/cart", s.getCart)
		r.Post("/cart/items", s.addToCart)
		r.Put("/cart/items/{id}", s.updateCartItem)
		r.Delete("/cart/items/{id}", s.removeCartItem)
		r.Delete("/cart", s.clearCart)
		r.Post("/cart/coupon", s.applyCoupon)
		r.Delete("/cart/coupon", s.removeCoupon)

		r.Post("/orders", s.createOrder)
		r.Get("/orders/myorders", s.myOrders)
		r.Post("/orders/{id}/initialize-payment", s.initializePayment)
		r.Get("/orders/verify-payment/{reference}", s.verifyPayment)
		r.Get("/orders/{id}/tracking", s.tracking)
		r.Post("/orders/{id}/cancel", s.cancelOrder)

		r.Group(func(r chi.Router) {
			r.Use(requireStaff)
			r.Get("/admin/orders", s.adminOrders)
			r.Put("/admin/orders/{id}/status", s.adminOrderStatus)
			r.Get("/admin/customers", s.adminCustomers)
			r.Put("/admin/products/{id}/inventory", s.adminInventory)
		})
	})
	return r
}

// ---- seeding and inspection ----

func (s *Server) AddUser(email, password string, role domain.Role) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := domain.User{ID: uuid.NewString(), Role: role, Email: email, Name: strings.Split(email, "@")[0]}
	s.accounts[email] = &account{user: u, password: password}
	return u
}

// IssueToken returns a valid token for email without a login round trip.
func (s *Server) IssueToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueTokenLocked(email)
}

func (s *Server) issueTokenLocked(email string) string {
	tok := "tok-" + uuid.NewString()
	s.tokens[tok] = email
	return tok
}

func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]string)
}

func (s *Server) AddProduct(p domain.Product) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Slug == "" {
		p.Slug = strings.ToLower(strings.ReplaceAll(p.Name, " ", "-"))
	}
	s.products[p.ID] = p
	return p
}

func (s *Server) AddCategory(c domain.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = append(s.categories, c)
}

// AddCoupon registers a fixed-amount coupon.
func (s *Server) AddCoupon(code string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupons[code] = amount
}

// Fail makes the next `times` requests to method+path answer status; times <= 0 fails
// until ClearFailures.
func (s *Server) Fail(method, path string, status int, message string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = &failure{status: status, message: message, times: times}
}

func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]*failure)
}

// FailVerification makes verify-payment reject reference.
func (s *Server) FailVerification(reference string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failingRefs[reference] = true
}

func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *Server) CountCalls(call string) int {
	n := 0
	for _, c := range s.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (s *Server) CartOf(userID string) domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.carts[userID]; ok {
		return c.Clone()
	}
	return domain.EmptyCart()
}

// SetCart replaces the server cart of a user.
func (s *Server) SetCart(userID string, c domain.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Recalculate()
	s.carts[userID] = &c
}

func (s *Server) Orders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return out
}

func (s *Server) ReferenceFor(orderID string) string {
	return "ref-" + orderID
}

func (s *Server) CallbackFor(orderID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callbackURLs[orderID]
}

// ---- middleware ----

type ctxKey struct{}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.calls = append(s.calls, key)
		f, ok := s.failures[key]
		if ok {
			if f.times > 0 {
				f.times--
				if f.times == 0 {
					delete(s.failures, key)
				}
			}
		}
		s.mu.Unlock()

		if ok {
			writeError(w, f.status, f.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		email, ok := s.tokens[tok]
		var acc *account
		if ok {
			acc = s.accounts[email]
		}
		s.mu.Unlock()
		if !ok || acc == nil {
			writeError(w, http.StatusUnauthorized, "Not authorized to access this route")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r, acc.user)))
	})
}

func requireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !userFrom(r).Role.IsStaff() {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ---- auth ----

func (s *Server) login(admin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		acc, ok := s.accounts[creds.Email]
		if !ok || acc.password != creds.Password {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		if admin && !acc.user.Role.IsStaff() {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": s.issueTokenLocked(creds.Email), "data": acc.user})
	}
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[req.Email]; exists {
		writeError(w, http.StatusBadRequest, "User already exists")
		return
	}
	u := domain.User{ID: uuid.NewString(), Role: domain.RoleCustomer, Email: req.Email, Name: req.Name, Phone: req.Phone}
	s.accounts[req.Email] = &account{user: u, password: req.Password}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "token": s.issueTokenLocked(req.Email), "data": u})
}

func (s *Server) updateDetails(w http.ResponseWriter, r *http.Request) {
	var upd struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	u := userFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[u.Email]
	if upd.Name != "" {
		acc.user.Name = upd.Name
	}
	if upd.Phone != "" {
		acc.user.Phone = upd.Phone
	}
	writeData(w, http.StatusOK, acc.user)
}

func (s *Server) updatePassword(w http.ResponseWriter, r *http.Request) {
	var upd struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	u := userFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[u.Email]
	if acc.password != upd.CurrentPassword {
		writeError(w, http.StatusUnauthorized, "Password is incorrect")
		return
	}
	acc.password = upd.NewPassword
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": s.issueTokenLocked(u.Email)})
}

func (s *Server) ok(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ---- catalog ----

func (s *Server) sortedProducts() []domain.Product {
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	category := r.URL.Query().Get("category")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if limit <= 0 {
		limit = 12
	}
	if page <= 0 {
		page = 1
	}

	var matched []domain.Product
	for _, p := range s.sortedProducts() {
		if category == "" || p.Category == category {
			matched = append(matched, p)
		}
	}
	start := (page - 1) * limit
	end := start + limit
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}
	pages := (len(matched) + limit - 1) / limit
	writeData(w, http.StatusOK, domain.ProductList{
		Products:   matched[start:end],
		Pagination: domain.Page{Page: page, Pages: pages, Total: len(matched)},
	})
}

func (s *Server) featured(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Product{}
	for _, p := range s.sortedProducts() {
		if p.Featured {
			out = append(out, p)
		}
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slug := chi.URLParam(r, "slug")
	for _, p := range s.products {
		if p.Slug == slug {
			writeData(w, http.StatusOK, p)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Product not found")
}

// ---- cart ----

func (s *Server) cartLocked(userID string) *domain.Cart {
	c, ok := s.carts[userID]
	if !ok {
		empty := domain.EmptyCart()
		c = &empty
		s.carts[userID] = c
	}
	return c
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeData(w, http.StatusOK, s.cartLocked(userFrom(r).ID))
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"productId"`
		VariantID string `json:"variantId"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[req.ProductID]
	if !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	if req.Quantity < 1 {
		writeError(w, http.StatusBadRequest, "Quantity must be at least 1")
		return
	}
	c := s.cartLocked(userFrom(r).ID)
	id := domain.LineID(p.ID, req.VariantID)
	if i := c.FindLine(id); i >= 0 {
		c.Items[i].Quantity += req.Quantity
	} else {
		c.Items = append(c.Items, domain.NewCartLine(p.Ref(req.VariantID), req.VariantID, req.Quantity))
	}
	s.recalculateLocked(c)
	writeData(w, http.StatusOK, c)
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cartLocked(userFrom(r).ID)
	i := c.FindLine(chi.URLParam(r, "id"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "Item not found in cart")
		return
	}
	if req.Quantity < 1 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	} else {
		c.Items[i].Quantity = req.Quantity
	}
	s.recalculateLocked(c)
	writeData(w, http.StatusOK, c)
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cartLocked(userFrom(r).ID)
	i := c.FindLine(chi.URLParam(r, "id"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "Item not found in cart")
		return
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	s.recalculateLocked(c)
	writeData(w, http.StatusOK, c)
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	empty := domain.EmptyCart()
	s.carts[userFrom(r).ID] = &empty
	writeData(w, http.StatusOK, empty)
}

func (s *Server) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	amount, ok := s.coupons[req.Code]
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid or expired coupon")
		return
	}
	c := s.cartLocked(userFrom(r).ID)
	c.Coupon = &domain.Coupon{Code: req.Code, DiscountType: "fixed", DiscountValue: amount}
	s.recalculateLocked(c)
	writeData(w, http.StatusOK, c)
}

func (s *Server) removeCoupon(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cartLocked(userFrom(r).ID)
	c.Coupon = nil
	s.recalculateLocked(c)
	writeData(w, http.StatusOK, c)
}

func (s *Server) recalculateLocked(c *domain.Cart) {
	c.Discount = decimal.Zero
	c.Recalculate()
	if c.Coupon != nil {
		c.Discount = decimal.Min(c.Coupon.DiscountValue, c.Subtotal)
		c.Recalculate()
	}
}

// ---- orders ----

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	key := r.Header.Get("Idempotency-Key")

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.idempotency[key]; key != "" && ok {
		writeData(w, http.StatusOK, s.orders[id])
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "No order items")
		return
	}

	var method *domain.ShippingMethod
	for i := range s.shipping {
		if s.shipping[i].ID == req.ShippingMethod {
			method = &s.shipping[i]
		}
	}
	if method == nil {
		writeError(w, http.StatusBadRequest, "Invalid shipping method")
		return
	}

	subtotal := decimal.Zero
	for _, it := range req.Items {
		subtotal = subtotal.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	fee := method.Price
	if method.FreeShippingThreshold != nil && subtotal.GreaterThanOrEqual(*method.FreeShippingThreshold) {
		fee = decimal.Zero
	}
	tax := subtotal.Mul(decimal.RequireFromString(TaxRate))

	s.orderSeq++
	o := &domain.Order{
		ID:              uuid.NewString(),
		OrderNumber:     fmt.Sprintf("ORD-%05d", s.orderSeq),
		Items:           req.Items,
		Subtotal:        subtotal,
		ShippingFee:     fee,
		TaxAmount:       tax,
		TotalAmount:     subtotal.Add(fee).Add(tax),
		ShippingAddress: req.ShippingAddress,
		ShippingMethod:  req.ShippingMethod,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   domain.PaymentStatusPending,
		Status:          domain.OrderStatusPending,
		CreatedAt:       time.Now().UTC(),
	}
	s.orders[o.ID] = o
	if key != "" {
		s.idempotency[key] = o.ID
	}
	writeData(w, http.StatusCreated, o)
}

func (s *Server) myOrders(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) initializePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CallbackURL string `json:"callbackUrl"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	defer s.mu.Unlock()
	id := chi.URLParam(r, "id")
	if _, ok := s.orders[id]; !ok {
		writeError(w, http.StatusNotFound, "Order not found")
		return
	}
	ref := s.ReferenceFor(id)
	s.references[ref] = id
	s.callbackURLs[id] = req.CallbackURL
	writeData(w, http.StatusOK, domain.PaymentInit{
		AuthorizationURL: "https://checkout.paystack.test/" + ref,
		Reference:        ref,
	})
}

func (s *Server) verifyPayment(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := chi.URLParam(r, "reference")
	id, ok := s.references[ref]
	if !ok || s.failingRefs[ref] {
		writeError(w, http.StatusBadRequest, "Payment verification failed")
		return
	}
	o := s.orders[id]
	o.PaymentStatus = domain.PaymentStatusPaid
	o.Status = domain.OrderStatusConfirmed
	writeData(w, http.StatusOK, o)
}

func (s *Server) tracking(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Order not found")
		return
	}
	writeData(w, http.StatusOK, domain.OrderTracking{
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		History:     []domain.TrackingEvent{{Status: o.Status, Timestamp: o.CreatedAt}},
	})
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Order not found")
		return
	}
	if o.Status != domain.OrderStatusPending {
		writeError(w, http.StatusBadRequest, "Only pending orders can be cancelled")
		return
	}
	o.Status = domain.OrderStatusCancelled
	writeData(w, http.StatusOK, o)
}

// ---- admin ----

func (s *Server) adminOrders(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := r.URL.Query().Get("status")
	out := []domain.Order{}
	for _, o := range s.orders {
		if status == "" || string(o.Status) == status {
			out = append(out, *o)
		}
	}
	writeData(w, http.StatusOK, map[string]any{"orders": out, "pagination": domain.Page{Page: 1, Pages: 1, Total: len(out)}})
}

func (s *Server) adminOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Order not found")
		return
	}
	o.Status = domain.OrderStatus(req.Status)
	writeData(w, http.StatusOK, o)
}

func (s *Server) adminCustomers(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Customer{}
	for _, acc := range s.accounts {
		if acc.user.Role == domain.RoleCustomer {
			out = append(out, domain.Customer{User: acc.user, TotalSpent: decimal.Zero})
		}
	}
	writeData(w, http.StatusOK, map[string]any{"customers": out, "pagination": domain.Page{Page: 1, Pages: 1, Total: len(out)}})
}

func (s *Server) adminInventory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VariantID string `json:"variantId"`
		Stock     int    `json:"stock"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	if req.VariantID == "" {
		p.Stock = req.Stock
	} else {
		for i := range p.Variants {
			if p.Variants[i].ID == req.VariantID {
				p.Variants[i].Stock = req.Stock
			}
		}
	}
	s.products[p.ID] = p
	writeData(w, http.StatusOK, p)
}

// ---- helpers ----

func withUser(r *http.Request, u domain.User) context.Context {
	return context.WithValue(r.Context(), ctxKey{}, u)
}

func userFrom(r *http.Request) domain.User {
	if v, ok := r.Context().Value(ctxKey{}).(domain.User); ok {
		return v
	}
	return domain.User{}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}
