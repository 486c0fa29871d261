package order

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/parfum-commerce/internal/domain/inventory"
	"github.com/example/parfum-commerce/internal/infrastructure/store"
	"github.com/shopspring/decimal"
)

const AggregateType = "Order"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyOrder        = errors.New("order must have at least one item")
	ErrInvalidItem       = errors.New("order item needs a product, a positive quantity and a non-negative price")
	ErrInvalidStatus     = errors.New("unknown order status")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrInsufficientStock = inventory.ErrInsufficientStock
)

// validTransitions defines allowed state transitions
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered, StatusCancelled},
	StatusDelivered: {},              // terminal state
	StatusCancelled: {StatusPending}, // reactivation only
}

// ParseStatus validates a status name
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := validTransitions[status]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[o.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

func (o *Order) transitionError(target Status) error {
	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, o.Status, target)
}

type OrderItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Volume      string          `json:"volume,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// LineTotal is price times quantity
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Address struct {
	FullName   string `json:"full_name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// StatusChange is one entry of the append-only status history
type StatusChange struct {
	From Status    `json:"from,omitempty"`
	To   Status    `json:"to"`
	At   time.Time `json:"at"`
}

type Order struct {
	ID              string          `json:"id"`
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
	Status          Status          `json:"status"`
	PendingAt       *time.Time      `json:"pending_at,omitempty"`
	ConfirmedAt     *time.Time      `json:"confirmed_at,omitempty"`
	ShippedAt       *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	History         []StatusChange  `json:"history"`
	Deleted         bool            `json:"deleted,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"` // Current event version
}

// Aggregate interface implementation
func (o *Order) GetID() string    { return o.ID }
func (o *Order) GetVersion() int  { return o.Version }
func (o *Order) SetVersion(v int) { o.Version = v }

// Lines returns the stock lines of the order
func (o *Order) Lines() []inventory.Line {
	lines := make([]inventory.Line, len(o.Items))
	for i, item := range o.Items {
		lines[i] = inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return lines
}

// stamp sets the timestamp of status. Other status timestamps are left alone.
func (o *Order) stamp(status Status, at time.Time) {
	t := at
	switch status {
	case StatusPending:
		o.PendingAt = &t
	case StatusConfirmed:
		o.ConfirmedAt = &t
	case StatusShipped:
		o.ShippedAt = &t
	case StatusDelivered:
		o.DeliveredAt = &t
	case StatusCancelled:
		o.CancelledAt = &t
	}
}

// ApplyEvent applies a single event to the order state (implements aggregate.Aggregate)
func (o *Order) ApplyEvent(event store.Event) error {
	switch event.EventType {
	case EventOrderPlaced:
		var data OrderPlaced
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.ID = data.OrderID
		o.Reference = data.Reference
		o.UserID = data.UserID
		o.UserName = data.UserName
		o.UserEmail = data.UserEmail
		o.CartID = data.CartID
		o.Items = data.Items
		o.Subtotal = data.Subtotal
		o.DiscountAmount = data.DiscountAmount
		o.ShippingCost = data.ShippingCost
		o.TotalAmount = data.TotalAmount
		o.ShippingAddress = data.ShippingAddress
		o.PromoCode = data.PromoCode
		o.PromoDiscount = data.PromoDiscount
		o.Status = StatusPending
		o.stamp(StatusPending, data.PlacedAt)
		o.History = append(o.History, StatusChange{To: StatusPending, At: data.PlacedAt})
		o.CreatedAt = data.PlacedAt
		o.UpdatedAt = data.PlacedAt
	case EventOrderStatusChanged:
		var data OrderStatusChanged
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Status = data.To
		o.stamp(data.To, data.ChangedAt)
		o.History = append(o.History, StatusChange{From: data.From, To: data.To, At: data.ChangedAt})
		o.UpdatedAt = data.ChangedAt
	case EventOrderDeleted:
		var data OrderDeleted
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		o.Deleted = true
		o.UpdatedAt = data.DeletedAt
	}
	o.Version = event.Version
	return nil
}
