package promotion

import "time"

const (
	AggregateType = "Promotion"

	EventPromoCreated          = "PromoCodeCreated"
	EventPromoUpdated          = "PromoCodeUpdated"
	EventPromoActiveChanged    = "PromoCodeActiveChanged"
	EventPromoUsageIncremented = "PromoCodeUsageIncremented"
	EventPromoDeleted          = "PromoCodeDeleted"
)

// StreamID is the event stream of one code
func StreamID(code string) string {
	return "promo-" + code
}

// Every event except PromoCodeDeleted carries the whole code after the change.

type PromoCodeDeleted struct {
	Code      string    `json:"code"`
	DeletedAt time.Time `json:"deleted_at"`
}
