package recovery

import "time"

const (
	AggregateType = "Recovery"

	EventRecoveryEmailSent = "RecoveryEmailSent"
	EventCartRecovered     = "CartMarkedRecovered"
)

// StreamID is the event stream holding recovery actions for a cart
func StreamID(cartID string) string {
	return "recovery-" + cartID
}

type RecoveryEmailSent struct {
	CartID  string    `json:"cart_id"`
	Attempt int       `json:"attempt"`
	SentAt  time.Time `json:"sent_at"`
}

type CartMarkedRecovered struct {
	CartID      string    `json:"cart_id"`
	OrderID     string    `json:"order_id,omitempty"`
	RecoveredAt time.Time `json:"recovered_at"`
}
