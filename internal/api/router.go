package api

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/parfum-commerce/internal/api/middleware"
	"github.com/example/parfum-commerce/internal/auth"
)

type RouterConfig struct {
	Handlers   *Handlers
	JWTService *auth.JWTService
	// Events serves the admin push channel; nil disables it
	Events http.Handler
	WebDir string
}

func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handlers
	mux := http.NewServeMux()

	optional := middleware.OptionalAuthMiddleware(cfg.JWTService)
	authed := middleware.AuthMiddleware(cfg.JWTService)
	requireAdmin := middleware.RequireRole(auth.RoleAdmin)

	public := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, optional(fn))
	}
	customer := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, authed(fn))
	}
	admin := func(pattern string, fn http.Handler) {
		mux.Handle(pattern, authed(requireAdmin(fn)))
	}

	// Static files (web UI)
	if cfg.WebDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(cfg.WebDir)))
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Storefront
	public("GET /products", h.GetProducts)
	public("GET /products/{id}", h.GetProduct)
	public("POST /promos/validate", h.ValidatePromo)
	public("POST /inventory/availability", h.CheckAvailability)

	// Analytics tracking
	public("POST /analytics/sessions", h.StartSession)
	public("POST /analytics/sessions/{id}/pageviews", h.TrackPageView())
	public("POST /analytics/sessions/{id}/pageviews/exit", h.TrackPageExit())
	public("POST /analytics/sessions/{id}/productviews", h.TrackProductView())
	public("POST /analytics/sessions/{id}/productviews/exit", h.TrackProductExit())
	public("POST /analytics/sessions/{id}/clicks", h.TrackClick())
	public("POST /analytics/sessions/{id}/end", h.EndSession())

	// Cart
	customer("GET /cart", h.GetCart)
	customer("POST /cart/items", h.AddToCart)
	customer("DELETE /cart/items/{productId}", h.RemoveFromCart)
	customer("DELETE /cart", h.ClearCart)

	// Orders
	customer("POST /orders", h.PlaceOrder)
	customer("GET /orders", h.GetOrders)
	customer("GET /orders/{id}", h.GetOrder)

	// Admin: catalog
	admin("POST /admin/products", http.HandlerFunc(h.CreateProduct))
	admin("PUT /admin/products/{id}", http.HandlerFunc(h.UpdateProduct))
	admin("DELETE /admin/products/{id}", http.HandlerFunc(h.DeleteProduct))

	// Admin: inventory
	admin("GET /admin/inventory", http.HandlerFunc(h.ListStock))
	admin("GET /admin/inventory/{id}", http.HandlerFunc(h.GetStock))
	admin("PUT /admin/inventory/{id}/stock", http.HandlerFunc(h.SetStock))
	admin("POST /admin/inventory/{id}/restock", http.HandlerFunc(h.Restock))
	admin("PUT /admin/inventory/{id}/velocity", http.HandlerFunc(h.SetVelocity))
	admin("POST /admin/inventory/decrement", http.HandlerFunc(h.DecrementStock))

	// Admin: promos
	admin("GET /admin/promos", http.HandlerFunc(h.ListPromos))
	admin("POST /admin/promos", http.HandlerFunc(h.CreatePromo))
	admin("PUT /admin/promos/{code}", http.HandlerFunc(h.UpdatePromo))
	admin("PUT /admin/promos/{code}/active", http.HandlerFunc(h.SetPromoActive))
	admin("DELETE /admin/promos/{code}", http.HandlerFunc(h.DeletePromo))
	admin("POST /admin/promos/{code}/apply", http.HandlerFunc(h.ApplyPromo))
	admin("POST /admin/promos/{code}/usage", http.HandlerFunc(h.IncrementPromoUsage))

	// Admin: orders
	admin("GET /admin/orders", http.HandlerFunc(h.ListAllOrders))
	admin("PUT /admin/orders/{id}/status", http.HandlerFunc(h.UpdateOrderStatus))
	admin("DELETE /admin/orders/{id}", http.HandlerFunc(h.DeleteOrder))

	// Admin: abandoned carts
	admin("GET /admin/carts", http.HandlerFunc(h.ListAbandonedCarts))
	admin("GET /admin/carts/stats", http.HandlerFunc(h.AbandonedCartStats))
	admin("GET /admin/carts/{id}", http.HandlerFunc(h.GetAbandonedCart))
	admin("POST /admin/carts/{id}/recovery-email", http.HandlerFunc(h.SendRecoveryEmail))
	admin("POST /admin/carts/{id}/recovered", http.HandlerFunc(h.MarkCartRecovered))

	// Admin: analytics and push channel
	admin("GET /admin/analytics", http.HandlerFunc(h.AnalyticsStats))
	if cfg.Events != nil {
		admin("GET /admin/events", cfg.Events)
	}

	return withLogging(middleware.Metrics(mux))
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[API] %s %s (%s)", r.Method, r.URL.Path, time.Since(start).Round(time.Microsecond))
	})
}
