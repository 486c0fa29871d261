package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventItemAdded   = "ItemAddedToCart"
	EventItemRemoved = "ItemRemovedFromCart"
	EventCartCleared = "CartCleared"
)

// Clear reasons
const (
	ReasonCheckout = "checkout"
	ReasonEmptied  = "emptied"
)

type ItemAddedToCart struct {
	CartID      string          `json:"cart_id"`
	UserID      string          `json:"user_id"`
	Email       string          `json:"email,omitempty"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Volume      string          `json:"volume,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	AddedAt     time.Time       `json:"added_at"`
}

type ItemRemovedFromCart struct {
	CartID    string    `json:"cart_id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	RemovedAt time.Time `json:"removed_at"`
}

type CartCleared struct {
	CartID    string    `json:"cart_id"`
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason"`
	ClearedAt time.Time `json:"cleared_at"`
}
