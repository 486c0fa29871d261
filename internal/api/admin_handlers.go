package api

import (
	"errors"
	"net/http"

	"github.com/example/parfum-commerce/internal/command"
	"github.com/example/parfum-commerce/internal/domain/inventory"
	"github.com/example/parfum-commerce/internal/domain/order"
	"github.com/example/parfum-commerce/internal/domain/promotion"
	"github.com/example/parfum-commerce/internal/domain/recovery"
	"github.com/shopspring/decimal"
)

// Product admin

func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateProduct
	if !decode(w, r, &cmd) {
		return
	}
	p, err := h.Commands.CreateProduct(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var cmd command.UpdateProduct
	if !decode(w, r, &cmd) {
		return
	}
	cmd.ProductID = r.PathValue("id")

	p, err := h.Commands.UpdateProduct(r.Context(), cmd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	cmd := command.DeleteProduct{ProductID: r.PathValue("id")}
	if err := h.Commands.DeleteProduct(r.Context(), cmd); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Inventory admin

type stockResponse struct {
	inventory.Stock
	Projection inventory.Projection `json:"projection"`
}

func withProjection(s inventory.Stock) stockResponse {
	return stockResponse{Stock: s, Projection: s.Projection()}
}

func (h *Handlers) ListStock(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.Inventory.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	result := make([]stockResponse, 0, len(stocks))
	for _, s := range stocks {
		result = append(result, withProjection(s))
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handlers) GetStock(w http.ResponseWriter, r *http.Request) {
	s, err := h.Inventory.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, withProjection(*s))
}

func (h *Handlers) SetStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stock int `json:"stock"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.respondStock(w, r)(h.Inventory.SetStock(r.Context(), r.PathValue("id"), req.Stock))
}

func (h *Handlers) Restock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.respondStock(w, r)(h.Inventory.IncrementStock(r.Context(), r.PathValue("id"), req.Amount))
}

func (h *Handlers) SetVelocity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Weekly  float64 `json:"weekly_velocity"`
		Monthly float64 `json:"monthly_velocity"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.respondStock(w, r)(h.Inventory.SetVelocity(r.Context(), r.PathValue("id"), req.Weekly, req.Monthly))
}

func (h *Handlers) respondStock(w http.ResponseWriter, r *http.Request) func(*inventory.Stock, error) {
	return func(s *inventory.Stock, err error) {
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, withProjection(*s))
	}
}

// DecrementStock takes stock for a batch of lines outside of checkout, e.g.
// for in-store sales. Nothing is taken unless every line can be served.
func (h *Handlers) DecrementStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reference string           `json:"reference"`
		Lines     []inventory.Line `json:"lines"`
	}
	if !decode(w, r, &req) {
		return
	}
	ok, err := h.Inventory.DecrementStock(r.Context(), req.Reference, req.Lines)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !ok {
		respondError(w, r, inventory.ErrInsufficientStock)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"decremented": true})
}

// Promo admin

type promoRequest struct {
	Code            string          `json:"code"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Active          bool            `json:"active"`
	UsageLimit      *int            `json:"usage_limit"`
}

func (p promoRequest) input() promotion.Input {
	return promotion.Input{
		Code:            p.Code,
		DiscountPercent: p.DiscountPercent,
		Active:          p.Active,
		UsageLimit:      p.UsageLimit,
	}
}

// respondPromoError reports an unknown code as 404 rather than as a failed
// validation.
func respondPromoError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, promotion.ErrNotFound) {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	respondError(w, r, err)
}

func (h *Handlers) ListPromos(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Promos.List())
}

func (h *Handlers) CreatePromo(w http.ResponseWriter, r *http.Request) {
	var req promoRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Promos.Create(r.Context(), req.input())
	if err != nil {
		respondPromoError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *Handlers) UpdatePromo(w http.ResponseWriter, r *http.Request) {
	var req promoRequest
	if !decode(w, r, &req) {
		return
	}
	req.Code = r.PathValue("code")
	p, err := h.Promos.Update(r.Context(), req.input())
	if err != nil {
		respondPromoError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) SetPromoActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Promos.SetActive(r.Context(), r.PathValue("code"), req.Active)
	if err != nil {
		respondPromoError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) DeletePromo(w http.ResponseWriter, r *http.Request) {
	if err := h.Promos.Delete(r.Context(), r.PathValue("code")); err != nil {
		respondPromoError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyPromo returns the discount a code would grant without metering it
func (h *Handlers) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	percent, err := h.Promos.Apply(r.PathValue("code"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]decimal.Decimal{"discount_percent": percent})
}

func (h *Handlers) IncrementPromoUsage(w http.ResponseWriter, r *http.Request) {
	p, err := h.Promos.IncrementUsage(r.Context(), r.PathValue("code"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Order admin

func (h *Handlers) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	filter := order.ListFilter{UserID: r.URL.Query().Get("user_id")}
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := order.ParseStatus(s)
		if err != nil {
			respondError(w, r, err)
			return
		}
		filter.Status = status
	}

	orders, err := h.Orders.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if !decode(w, r, &req) {
		return
	}
	o, err := h.Commands.UpdateOrderStatus(r.Context(), command.UpdateOrderStatus{
		OrderID: r.PathValue("id"),
		Status:  req.Status,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.Orders.DeleteOrder(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Abandoned cart admin

func (h *Handlers) ListAbandonedCarts(w http.ResponseWriter, r *http.Request) {
	filter, ok := recovery.ParseFilter(r.URL.Query().Get("filter"))
	if !ok {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown filter"})
		return
	}
	carts := h.Recovery.GetFilteredCarts(filter, h.now())
	if carts == nil {
		carts = []recovery.CartView{}
	}
	respondJSON(w, http.StatusOK, carts)
}

func (h *Handlers) GetAbandonedCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.Recovery.Get(r.PathValue("id"), h.now())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (h *Handlers) AbandonedCartStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Recovery.GetStatistics(h.now()))
}

func (h *Handlers) SendRecoveryEmail(w http.ResponseWriter, r *http.Request) {
	v, err := h.Recovery.SendRecoveryEmail(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (h *Handlers) MarkCartRecovered(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string `json:"order_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	v, err := h.Recovery.MarkRecovered(r.Context(), r.PathValue("id"), req.OrderID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// Analytics admin

func (h *Handlers) AnalyticsStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Analytics.GetAnalyticsStats())
}
