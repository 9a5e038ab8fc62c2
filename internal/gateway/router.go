package gateway

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

// NewRouter mounts the storefront API under /api/v1 next to /health and /metrics.
func NewRouter(reg *Registry, cookies sessions.Store, m *metrics.Metrics, h *Health, cfg RouterConfig, log zerolog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxRequestBodySize <= 0 {
		cfg.MaxRequestBodySize = 1 << 20 // 1MB
	}

	sessionHandler := NewSessionHandler(cfg.RequestTimeout)
	catalogHandler := NewCatalogHandler(cfg.RequestTimeout)
	cartHandler := NewCartHandler(cfg.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(cfg.RequestTimeout)
	ordersHandler := NewOrdersHandler(cfg.RequestTimeout)
	adminHandler := NewAdminHandler(cfg.RequestTimeout)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(ObserveMiddleware(m, log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))

	r.Method(http.MethodGet, "/health", h)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(VisitorMiddleware(reg, cookies, log))

		r.Route("/session", func(r chi.Router) {
			r.Get("/", sessionHandler.Get)
			r.Post("/login", sessionHandler.Login(false))
			r.Post("/admin/login", sessionHandler.Login(true))
			r.Post("/register", sessionHandler.Register)
			r.Post("/logout", sessionHandler.Logout)
			r.Put("/details", sessionHandler.UpdateDetails)
			r.Put("/password", sessionHandler.UpdatePassword)
			r.Post("/forgot-password", sessionHandler.ForgotPassword)
			r.Post("/reset-password", sessionHandler.ResetPassword)
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/products", catalogHandler.ListProducts)
			r.Get("/products/{slug}", catalogHandler.GetProduct)
			r.Get("/featured", catalogHandler.Featured)
			r.Get("/categories", catalogHandler.Categories)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{lineID}", cartHandler.UpdateQuantity)
			r.Delete("/items/{lineID}", cartHandler.RemoveItem)
			r.Post("/coupon", cartHandler.ApplyCoupon)
			r.Delete("/coupon", cartHandler.RemoveCoupon)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", checkoutHandler.Get)
			r.Post("/start", checkoutHandler.Start)
			r.Put("/address", checkoutHandler.SetAddress)
			r.Get("/shipping-rates", checkoutHandler.ShippingRates)
			r.Put("/shipping", checkoutHandler.SelectShipping)
			r.Post("/continue", checkoutHandler.Continue)
			r.Put("/payment", checkoutHandler.SelectPayment)
			r.Post("/back", checkoutHandler.Back)
			r.Post("/place-order", checkoutHandler.PlaceOrder)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(RequireLogin)
			r.Get("/", ordersHandler.MyOrders)
			r.Get("/{id}/tracking", ordersHandler.Tracking)
			r.Post("/{id}/cancel", ordersHandler.Cancel)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin))
			r.Get("/orders", adminHandler.Orders)
			r.Put("/orders/{id}/status", adminHandler.UpdateOrderStatus)
			r.Get("/customers", adminHandler.Customers)
			r.Put("/products/{id}/inventory", adminHandler.AdjustInventory)
		})
	})

	return otelhttp.NewHandler(r, "storefront-gateway")
}
