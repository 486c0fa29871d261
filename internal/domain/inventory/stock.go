package inventory

import (
	"context"
	"errors"
	"math"
	"time"
)

const AggregateType = "Inventory"

// StreamID is the event stream of a product's stock record. It is kept apart
// from the product's own catalog stream.
func StreamID(productID string) string {
	return "stock-" + productID
}

var (
	ErrNotFound          = errors.New("stock record not found")
	ErrAlreadyExists     = errors.New("stock record already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrNegativeStock     = errors.New("stock cannot be negative")
	ErrInvalidVelocity   = errors.New("velocity cannot be negative")
	ErrInvalidProduct    = errors.New("product_id is required")
)

// Stock is the stock record of one product
type Stock struct {
	ProductID       string    `json:"product_id"`
	CurrentStock    int       `json:"current_stock"`
	WeeklyVelocity  float64   `json:"weekly_velocity"`
	MonthlyVelocity float64   `json:"monthly_velocity"`
	LastUpdated     time.Time `json:"last_updated"`
}

// Projection is the estimated time left before a product sells out
type Projection struct {
	DaysUntilStockout int  `json:"days_until_stockout"`
	Unbounded         bool `json:"unbounded"`
}

// Projection derives the stockout estimate from weekly velocity.
// Velocity is advisory only and never gates a decrement.
func (s Stock) Projection() Projection {
	if s.WeeklyVelocity <= 0 {
		return Projection{Unbounded: true}
	}
	days := math.Ceil(float64(s.CurrentStock) / s.WeeklyVelocity * 7)
	return Projection{DaysUntilStockout: int(days)}
}

// Line is a requested quantity of one product
type Line struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Store persists stock records. DecrementAll must be all-or-nothing: it
// returns false without touching any record when one line cannot be served.
type Store interface {
	Get(ctx context.Context, productID string) (*Stock, error)
	List(ctx context.Context) ([]Stock, error)
	Create(ctx context.Context, stock Stock) error
	Delete(ctx context.Context, productID string) error
	DecrementAll(ctx context.Context, lines []Line) (bool, error)
	Adjust(ctx context.Context, productID string, delta int) (*Stock, error)
	Set(ctx context.Context, productID string, value int) (*Stock, error)
	SetVelocity(ctx context.Context, productID string, weekly, monthly float64) (*Stock, error)
}

// NormalizeLines validates lines and merges duplicate products, keeping the
// order of first appearance.
func NormalizeLines(lines []Line) ([]Line, error) {
	merged := make([]Line, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		if l.ProductID == "" {
			return nil, ErrInvalidProduct
		}
		if l.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if i, ok := index[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(merged)
		merged = append(merged, l)
	}
	return merged, nil
}
