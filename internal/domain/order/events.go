package order

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderDeleted       = "OrderDeleted"
)

// OrderPlaced carries the full order so consumers (mail, cart recovery,
// dashboards) need no second lookup.
type OrderPlaced struct {
	OrderID         string          `json:"order_id"`
	Reference       string          `json:"reference"`
	UserID          string          `json:"user_id"`
	UserName        string          `json:"user_name,omitempty"`
	UserEmail       string          `json:"user_email,omitempty"`
	CartID          string          `json:"cart_id,omitempty"`
	Items           []OrderItem     `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	ShippingCost    decimal.Decimal `json:"shipping_cost"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress Address         `json:"shipping_address"`
	PromoCode       string          `json:"promo_code,omitempty"`
	PromoDiscount   decimal.Decimal `json:"promo_discount"`
	PlacedAt        time.Time       `json:"placed_at"`
}

type OrderStatusChanged struct {
	OrderID   string    `json:"order_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Restocked bool      `json:"restocked,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

type OrderDeleted struct {
	OrderID   string    `json:"order_id"`
	DeletedAt time.Time `json:"deleted_at"`
}
