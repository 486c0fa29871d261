package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/parfum-commerce/internal/auth"
	"github.com/example/parfum-commerce/internal/command"
	"github.com/example/parfum-commerce/internal/domain/analytics"
	"github.com/example/parfum-commerce/internal/domain/cart"
	"github.com/example/parfum-commerce/internal/domain/inventory"
	"github.com/example/parfum-commerce/internal/domain/order"
	"github.com/example/parfum-commerce/internal/domain/product"
	"github.com/example/parfum-commerce/internal/domain/promotion"
	"github.com/example/parfum-commerce/internal/domain/recovery"
	"github.com/example/parfum-commerce/internal/infrastructure/store/mocks"
)

const testSecret = "test-secret-key-at-least-32-characters"

var (
	adminID    = auth.Identity{UserID: "admin-1", Email: "admin@parfum.test", Username: "admin", Role: auth.RoleAdmin}
	customerID = auth.Identity{UserID: "user-1", Email: "alice@parfum.test", Username: "alice", Role: auth.RoleCustomer}
	otherID    = auth.Identity{UserID: "user-2", Email: "bob@parfum.test", Username: "bob", Role: auth.RoleCustomer}
)

type testServer struct {
	router   http.Handler
	jwt      *auth.JWTService
	services Services
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	eventStore := mocks.NewMockEventStore()

	productSvc := product.NewService(eventStore)
	cartSvc := cart.NewService(eventStore)
	inventorySvc := inventory.NewService(inventory.NewMemoryStore(), eventStore)
	promoSvc := promotion.NewService().WithEventStore(eventStore)
	orderSvc := order.NewService(eventStore, inventorySvc, promoSvc, order.DefaultConfig())

	services := Services{
		Commands:  command.NewHandler(productSvc, cartSvc, orderSvc, inventorySvc),
		Products:  productSvc,
		Carts:     cartSvc,
		Orders:    orderSvc,
		Inventory: inventorySvc,
		Promos:    promoSvc,
		Recovery:  recovery.NewEngine(recovery.DefaultConfig(), nil).WithEventStore(eventStore),
		Analytics: analytics.NewEngine("/checkout"),
	}
	jwtService := auth.NewJWTService(testSecret, "", 15*time.Minute)

	return &testServer{
		router:   NewRouter(RouterConfig{Handlers: NewHandlers(services), JWTService: jwtService}),
		jwt:      jwtService,
		services: services,
	}
}

func (s *testServer) token(t *testing.T, id auth.Identity) string {
	t.Helper()
	token, _, err := s.jwt.GenerateAccessToken(id)
	require.NoError(t, err)
	return token
}

// do sends a request as the given identity; a zero identity is anonymous
func (s *testServer) do(t *testing.T, method, path string, body any, as auth.Identity) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if as.UserID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, as))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) createProduct(t *testing.T, stock int) product.Product {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/admin/products", map[string]any{
		"name":          "Oud Royal",
		"brand":         "Maison Test",
		"volume_ml":     50,
		"price":         "80",
		"initial_stock": stock,
	}, adminID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[product.Product](t, rec)
}

func (s *testServer) addToCart(t *testing.T, as auth.Identity, productID string, qty int) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/cart/items", map[string]any{"product_id": productID, "quantity": qty}, as)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

type cartResponse struct {
	Items []cart.CartItem `json:"items"`
	Total decimal.Decimal `json:"total"`
}

var testAddress = order.Address{
	FullName:   "Alice Martin",
	Street:     "12 Rue des Fleurs",
	City:       "Grasse",
	PostalCode: "06130",
	Country:    "FR",
}

// ============================================
// Routing and Auth Tests
// ============================================

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil, auth.Identity{})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_AdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/admin/inventory", nil, auth.Identity{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/inventory", nil, customerID)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/inventory", nil, adminID)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_CartRequiresLogin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/cart", nil, auth.Identity{})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPatch, "/products", nil, auth.Identity{})

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_MalformedBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/promos/validate", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ============================================
// Catalog and Inventory Tests
// ============================================

func TestHandlers_CreateAndGetProduct(t *testing.T) {
	s := newTestServer(t)
	p := s.createProduct(t, 5)

	rec := s.do(t, http.MethodGet, "/products/"+p.ID, nil, auth.Identity{})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[product.Product](t, rec)
	assert.Equal(t, "Oud Royal", got.Name)
	assert.True(t, decimal.NewFromInt(80).Equal(got.Price))

	rec = s.do(t, http.MethodGet, "/admin/inventory/"+p.ID, nil, adminID)
	require.Equal(t, http.StatusOK, rec.Code)
	stock := decodeBody[stockResponse](t, rec)
	assert.Equal(t, 5, stock.CurrentStock)
	assert.True(t, stock.Projection.Unbounded)
}

func TestHandlers_CreateProduct_Invalid(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/admin/products", map[string]any{"name": "", "price": "80", "volume_ml": 50}, adminID)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_GetProduct_NotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/products/missing", nil, auth.Identity{})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_DeleteProduct_RemovesStock(t *testing.T) {
	s := newTestServer(t)
	p := s.createProduct(t, 5)

	rec := s.do(t, http.MethodDelete, "/admin/products/"+p.ID, nil, adminID)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/inventory/"+p.ID, nil, adminID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_StockAdministration(t *testing.T) {
	s := newTestServer(t)
	p := s.createProduct(t, 5)
	base := "/admin/inventory/" + p.ID

	rec := s.do(t, http.MethodPost, base+"/restock", map[string]int{"amount": 10}, adminID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 15, decodeBody[stockResponse](t, rec).CurrentStock)

	rec = s.do(t, http.MethodPut, base+"/stock", map[string]int{"stock": 14}, adminID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 14, decodeBody[stockResponse](t, rec).CurrentStock)

	rec = s.do(t, http.MethodPut, base+"/velocity", map[string]float64{"weekly_velocity": 7, "monthly_velocity": 30}, adminID)
	require.Equal(t, http.StatusOK, rec.Code)
	stock := decodeBody[stockResponse](t, rec)
	assert.False(t, stock.Projection.Unbounded)
	assert.Equal(t, 14, stock.Projection.DaysUntilStockout)

	rec = s.do(t, http.MethodPut, base+"/stock", map[string]int{"stock": -1}, adminID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/restock", map[string]int{"amount": 0}, adminID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_DecrementStock_AllOrNothing(t *testing.T) {
	s := newTestServer(t)
	a := s.createProduct(t, 5)
	b := s.createProduct(t, 1)

	rec := s.do(t, http.MethodPost, "/admin/inventory/decrement", map[string]any{
		"reference": "store-sale-1",
		"lines": []inventory.Line{
			{ProductID: a.ID, Quantity: 2},
			{ProductID: b.ID, Quantity: 2},
		},
	}, adminID)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/inventory/"+a.ID, nil, adminID)
	assert.Equal(t, 5, decodeBody[stockResponse](t, rec).CurrentStock)

	rec = s.do(t, http.MethodPost, "/inventory/availability", map[string]any{
		"lines": []inventory.Line{{ProductID: a.ID, Quantity: 5}},
	}, auth.Identity{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"available":true}`, rec.Body.String())
}

// ============================================
// Checkout Tests
// ============================================

func TestHandlers_Checkout(t *testing.T) {
	s := newTestServer(t)
	p := s.createProduct(t, 5)
	s.addToCart(t, customerID, p.ID, 2)

	rec := s.do(t, http.MethodGet, "/cart", nil, customerID)
	require.Equal(t, http.StatusOK, rec.Code)
	c := decodeBody[cartResponse](t, rec)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "50ml", c.Items[0].Volume)
	assert.True(t, decimal.NewFromInt(160).Equal(c.Total))

	rec = s.do(t, http.MethodPost, "/orders", map[string]any{"shipping_address": testAddress}, customerID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := decodeBody[order.Order](t, rec)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, customerID.UserID, o.UserID)
	assert.Equal(t, customerID.Email, o.UserEmail)
	assert.True(t, decimal.NewFromInt(160).Equal(o.TotalAmount))

	rec = s.do(t, http.MethodGet, "/admin/inventory/"+p.ID, nil, adminID)
	assert.Equal(t, 3, decodeBody[stockResponse](t, rec).CurrentStock)

	rec = s.do(t, http.MethodGet, "/cart", nil, customerID)
	c = decodeBody[cartResponse](t, rec)
	assert.Empty(t, c.Items)

	rec = s.do(t, http.MethodGet, "/orders", nil, customerID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]order.Order](t, rec), 1)
}

func TestHandlers_Checkout_EmptyCart(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/orders", map[string]any{"shipping_address": testAddress}, customerID)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_Checkout_InsufficientStock(t *testing.T) {
	s := newTestServer(t)
	p := s.createProduct(t, 1)
	s.addToCart(t, customerID, p.ID, 2)

	rec := s.do(t, http.MethodPost, "/orders", map[string]any{"shipping_address": testAddress}, customerID)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlers_Checkout_InvalidPromo(t *testing.T) {
	s := newTestServer(t)
	p := s.createProduct(t, 5)
	s.addToCart(t, customerID, p.ID, 1)

	rec := s.do(t, http.MethodPost, "/orders", map[string]any{
		"shipping_address": testAddress,
		"promo_code":       "NOPE",
	}, customerID)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/inventory/"+p.ID, nil, adminID)
	assert.Equal(t, 5, decodeBody[stockResponse](t, rec).CurrentStock)
}

func TestHandlers_GetOrder_Ownership(t *testing.T) {
	s := newTestServer(t)
	p := s.createProduct(t, 5)
	s.addToCart(t, customerID, p.ID, 1)
	rec := s.do(t, http.MethodPost, "/orders", map[string]any{"shipping_address": testAddress}, customerID)
	require.Equal(t, http.StatusCreated, rec.Code)
	o := decodeBody[order.Order](t, rec)

	rec = s.do(t, http.MethodGet, "/orders/"+o.ID, nil, customerID)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/orders/"+o.ID, nil, otherID)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/orders/"+o.ID, nil, adminID)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/orders/missing", nil, customerID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_OrderStatusAdministration(t *testing.T) {
	s := newTestServer(t)
	p := s.createProduct(t, 5)
	s.addToCart(t, customerID, p.ID, 1)
	rec := s.do(t, http.MethodPost, "/orders", map[string]any{"shipping_address": testAddress}, customerID)
	require.Equal(t, http.StatusCreated, rec.Code)
	o := decodeBody[order.Order](t, rec)
	statusURL := "/admin/orders/" + o.ID + "/status"

	rec = s.do(t, http.MethodPut, statusURL, map[string]string{"status": "delivered"}, adminID)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPut, statusURL, map[string]string{"status": "lost"}, adminID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, statusURL, map[string]string{"status": "confirmed"}, adminID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, order.StatusConfirmed, decodeBody[order.Order](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/admin/orders?status=confirmed", nil, adminID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]order.Order](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/admin/orders?status=pending", nil, adminID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]order.Order](t, rec))

	rec = s.do(t, http.MethodDelete, "/admin/orders/"+o.ID, nil, adminID)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/orders/"+o.ID, nil, customerID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================
// Promo Tests
// ============================================

func TestHandlers_PromoAdministration(t *testing.T) {
	s := newTestServer(t)
	spring := map[string]any{"code": "spring10", "discount_percent": "10", "active": true}

	rec := s.do(t, http.MethodPost, "/admin/promos", spring, adminID)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "SPRING10", decodeBody[promotion.PromoCode](t, rec).Code)

	rec = s.do(t, http.MethodPost, "/admin/promos", spring, adminID)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/admin/promos", map[string]any{"code": "BIG", "discount_percent": "150"}, adminID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/admin/promos/UNKNOWN", map[string]any{"discount_percent": "5"}, adminID)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/promos/validate", map[string]string{"code": "spring10"}, auth.Identity{})
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeBody[promotion.Validation](t, rec)
	assert.True(t, v.OK)
	assert.True(t, decimal.NewFromInt(10).Equal(v.DiscountPercent))

	rec = s.do(t, http.MethodPut, "/admin/promos/SPRING10/active", map[string]bool{"active": false}, adminID)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/promos/validate", map[string]string{"code": "SPRING10"}, auth.Identity{})
	v = decodeBody[promotion.Validation](t, rec)
	assert.False(t, v.OK)
	assert.Equal(t, promotion.ReasonInactive, v.Reason)

	rec = s.do(t, http.MethodPost, "/admin/promos/SPRING10/apply", nil, adminID)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodDelete, "/admin/promos/SPRING10", nil, adminID)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, "/admin/promos/SPRING10", nil, adminID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_PromoUsage(t *testing.T) {
	s := newTestServer(t)
	limit := 1
	_, err := s.services.Promos.Create(context.Background(), promotion.Input{
		Code:            "ONCE",
		DiscountPercent: decimal.NewFromInt(20),
		Active:          true,
		UsageLimit:      &limit,
	})
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/admin/promos/ONCE/usage", nil, adminID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[promotion.PromoCode](t, rec).UsageCount)

	rec = s.do(t, http.MethodPost, "/admin/promos/ONCE/usage", nil, adminID)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// ============================================
// Abandoned Cart Tests
// ============================================

func trackAbandoned(s *testServer, cartID string, inactive time.Duration) {
	s.services.Recovery.Track(recovery.Cart{
		CartID: cartID,
		UserID: "user-9",
		Email:  "carol@parfum.test",
		Items: map[string]recovery.Item{
			"p1": {ProductID: "p1", ProductName: "Ambre Nuit", Quantity: 1, Price: decimal.NewFromInt(50)},
		},
		LastActivityAt: time.Now().Add(-inactive),
	})
}

func TestHandlers_AbandonedCarts(t *testing.T) {
	s := newTestServer(t)
	trackAbandoned(s, "cart-user-9", 2*time.Hour)
	trackAbandoned(s, "cart-user-10", 5*time.Minute)

	rec := s.do(t, http.MethodGet, "/admin/carts?filter=pending", nil, adminID)
	require.Equal(t, http.StatusOK, rec.Code)
	carts := decodeBody[[]recovery.CartView](t, rec)
	require.Len(t, carts, 1)
	assert.Equal(t, "cart-user-9", carts[0].CartID)

	rec = s.do(t, http.MethodGet, "/admin/carts?filter=urgent", nil, adminID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/admin/carts?filter=stale", nil, adminID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/admin/carts/cart-user-9/recovery-email", nil, adminID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[recovery.CartView](t, rec).AttemptsSent)

	rec = s.do(t, http.MethodPost, "/admin/carts/cart-user-9/recovered", map[string]string{"order_id": "order-1"}, adminID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, recovery.StatusRecovered, decodeBody[recovery.CartView](t, rec).Status)

	rec = s.do(t, http.MethodPost, "/admin/carts/cart-user-9/recovery-email", nil, adminID)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/carts/stats", nil, adminID)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[recovery.Statistics](t, rec)
	assert.Equal(t, 1, stats.TotalCarts)
	assert.Equal(t, 1, stats.Recovered)
	assert.Equal(t, float64(100), stats.RecoveryRate)

	rec = s.do(t, http.MethodGet, "/admin/carts/unknown", nil, adminID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================
// Analytics Tests
// ============================================

func TestHandlers_AnalyticsTracking(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/analytics/sessions", bytes.NewBufferString(`{"viewport_width":390}`))
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	session := decodeBody[analytics.Session](t, rec)
	assert.Equal(t, analytics.DeviceMobile, session.Device)
	base := "/analytics/sessions/" + session.SessionID

	rec = s.do(t, http.MethodPost, base+"/pageviews", map[string]string{"path": "/", "title": "Home"}, auth.Identity{})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodPost, base+"/clicks", nil, auth.Identity{})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodPost, base+"/productviews", map[string]string{"product_id": "p1", "product_name": "Oud Royal"}, auth.Identity{})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodPost, base+"/productviews/exit", map[string]string{"product_id": "p1"}, auth.Identity{})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodPost, base+"/pageviews/exit", map[string]string{"path": "/"}, auth.Identity{})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodPost, base+"/end", nil, auth.Identity{})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	got, err := s.services.Analytics.Get(session.SessionID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, 1, got.TotalClicks)
	require.Len(t, got.ProductViews, 1)
	assert.NotNil(t, got.ProductViews[0].ExitTime)

	rec = s.do(t, http.MethodGet, "/admin/analytics", nil, adminID)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[analytics.Stats](t, rec)
	assert.Equal(t, 1, stats.TotalSessions)
	assert.Equal(t, float64(100), stats.BounceRate)
}

func TestHandlers_AnalyticsTracking_FailuresStillAnswerNoContent(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/analytics/sessions/unknown/pageviews", map[string]string{"path": "/"}, auth.Identity{})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPost, "/analytics/sessions/unknown/end", nil, auth.Identity{})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandlers_AnalyticsSession_CarriesUser(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/analytics/sessions", nil, customerID)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, customerID.UserID, decodeBody[analytics.Session](t, rec).UserID)
}
