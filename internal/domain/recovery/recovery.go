// Package recovery tracks abandoned carts and drives the recovery mail
// sequence.
//
// Carts enter tracking from cart events and leave it when they are emptied.
// A cart whose order is placed after it was abandoned is kept and flagged
// recovered so that recovery statistics can count it. Classification is
// never stored: it is derived from the clock on every read.
package recovery

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound         = errors.New("cart not tracked")
	ErrAlreadyRecovered = errors.New("cart already recovered")
)

type Status string

const (
	// StatusActive carts are still inside the grace window and not abandoned
	StatusActive    Status = "active"
	StatusPending   Status = "pending"
	StatusUrgent    Status = "urgent"
	StatusRecovered Status = "recovered"
)

type Filter string

const (
	FilterAll       Filter = "all"
	FilterPending   Filter = "pending"
	FilterUrgent    Filter = "urgent"
	FilterRecovered Filter = "recovered"
)

// ParseFilter accepts an empty string as FilterAll
func ParseFilter(s string) (Filter, bool) {
	switch f := Filter(s); f {
	case "":
		return FilterAll, true
	case FilterAll, FilterPending, FilterUrgent, FilterRecovered:
		return f, true
	}
	return "", false
}

type Item struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Volume      string          `json:"volume,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type Cart struct {
	CartID         string          `json:"cart_id"`
	UserID         string          `json:"user_id"`
	Email          string          `json:"email,omitempty"`
	Items          map[string]Item `json:"items"`
	TotalValue     decimal.Decimal `json:"total_value"`
	LastActivityAt time.Time       `json:"last_activity_at"`
	AttemptsSent   int             `json:"attempts_sent"`
	Attempts       []time.Time     `json:"attempts,omitempty"`
	Recovered      bool            `json:"recovered"`
	RecoveredAt    *time.Time      `json:"recovered_at,omitempty"`
	OrderID        string          `json:"order_id,omitempty"`
}

func (c *Cart) recalculate() {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	c.TotalValue = total
}

func (c *Cart) clone() Cart {
	cp := *c
	cp.Items = make(map[string]Item, len(c.Items))
	for k, v := range c.Items {
		cp.Items[k] = v
	}
	cp.Attempts = append([]time.Time(nil), c.Attempts...)
	if c.RecoveredAt != nil {
		t := *c.RecoveredAt
		cp.RecoveredAt = &t
	}
	return cp
}

// CartView is a cart with its classification at a given instant
type CartView struct {
	Cart
	Status      Status        `json:"status"`
	InactiveFor time.Duration `json:"inactive_for_ns"`
}

type Statistics struct {
	TotalCarts      int             `json:"total_carts"`
	Abandoned       int             `json:"abandoned"`
	Pending         int             `json:"pending"`
	Urgent          int             `json:"urgent"`
	Recovered       int             `json:"recovered"`
	TotalValue      decimal.Decimal `json:"total_value"`
	RecoveredValue  decimal.Decimal `json:"recovered_value"`
	AverageAttempts float64         `json:"average_attempts"`
	RecoveryRate    float64         `json:"recovery_rate"`
}

type Config struct {
	// GraceWindow is the inactivity after which a non-empty cart is abandoned
	GraceWindow time.Duration
	// UrgentAge, UrgentAttempts and HighValue each make a cart urgent
	UrgentAge      time.Duration
	UrgentAttempts int
	HighValue      decimal.Decimal
	// Stages are the inactivity durations at which mail n is due
	Stages []time.Duration
}

func DefaultConfig() Config {
	return Config{
		GraceWindow:    time.Hour,
		UrgentAge:      72 * time.Hour,
		UrgentAttempts: 2,
		HighValue:      decimal.NewFromInt(200),
		Stages:         []time.Duration{time.Hour, 24 * time.Hour, 72 * time.Hour},
	}
}

// Classify derives the status of a cart at now. It has no side effects.
func (cfg Config) Classify(c Cart, now time.Time) Status {
	if c.Recovered {
		return StatusRecovered
	}
	inactive := now.Sub(c.LastActivityAt)
	if inactive < cfg.GraceWindow {
		return StatusActive
	}
	if inactive >= cfg.UrgentAge ||
		c.AttemptsSent >= cfg.UrgentAttempts ||
		c.TotalValue.GreaterThanOrEqual(cfg.HighValue) {
		return StatusUrgent
	}
	return StatusPending
}
