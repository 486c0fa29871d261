package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/example/parfum-commerce/internal/api/middleware"
	"github.com/example/parfum-commerce/internal/command"
	"github.com/example/parfum-commerce/internal/domain/analytics"
	"github.com/example/parfum-commerce/internal/domain/cart"
	"github.com/example/parfum-commerce/internal/domain/inventory"
	"github.com/example/parfum-commerce/internal/domain/order"
	"github.com/example/parfum-commerce/internal/domain/product"
	"github.com/example/parfum-commerce/internal/domain/promotion"
	"github.com/example/parfum-commerce/internal/domain/recovery"
)

// Services are the engines the HTTP layer exposes
type Services struct {
	Commands  *command.Handler
	Products  *product.Service
	Carts     *cart.Service
	Orders    *order.Service
	Inventory *inventory.Service
	Promos    *promotion.Service
	Recovery  *recovery.Engine
	Analytics *analytics.Engine
}

type Handlers struct {
	Services
	now func() time.Time
}

func NewHandlers(s Services) *Handlers {
	return &Handlers{Services: s, now: time.Now}
}

// Product Handlers

func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Products.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Products.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Promo Handlers

func (h *Handlers) ValidatePromo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decode(w, r, &req) {
		return
	}
	respondJSON(w, http.StatusOK, h.Promos.Validate(req.Code))
}

// Inventory Handlers

func (h *Handlers) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lines []inventory.Line `json:"lines"`
	}
	if !decode(w, r, &req) {
		return
	}
	ok, err := h.Inventory.CheckAvailability(r.Context(), req.Lines)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"available": ok})
}

// Cart Handlers

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.Carts.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":         c.ID,
		"user_id":    c.UserID,
		"items":      c.SortedItems(),
		"total":      c.Total(),
		"updated_at": c.UpdatedAt,
	})
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if !decode(w, r, &req) {
		return
	}

	id := middleware.GetIdentity(r.Context())
	cmd := command.AddToCart{
		UserID:    id.UserID,
		Email:     id.Email,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	}
	if err := h.Commands.AddToCart(r.Context(), cmd); err != nil {
		respondError(w, r, err)
		return
	}
	h.GetCart(w, r)
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	cmd := command.RemoveFromCart{
		UserID:    middleware.GetUserID(r.Context()),
		ProductID: r.PathValue("productId"),
	}
	if err := h.Commands.RemoveFromCart(r.Context(), cmd); err != nil {
		respondError(w, r, err)
		return
	}
	h.GetCart(w, r)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	cmd := command.ClearCart{UserID: middleware.GetUserID(r.Context())}
	if err := h.Commands.ClearCart(r.Context(), cmd); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Order Handlers

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShippingAddress order.Address `json:"shipping_address"`
		PromoCode       string        `json:"promo_code"`
	}
	if !decode(w, r, &req) {
		return
	}

	id := middleware.GetIdentity(r.Context())
	cmd := command.PlaceOrder{
		UserID:          id.UserID,
		UserName:        id.Username,
		UserEmail:       id.Email,
		ShippingAddress: req.ShippingAddress,
		PromoCode:       req.PromoCode,
	}
	o, err := h.Commands.PlaceOrder(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.List(r.Context(), order.ListFilter{UserID: middleware.GetUserID(r.Context())})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	// customers only see their own orders
	id := middleware.GetIdentity(r.Context())
	if o.UserID != id.UserID && !id.IsAdmin() {
		respondJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decode reads the JSON body into v, answering 400 on failure
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": errBadRequest.Error()})
		return false
	}
	return true
}
