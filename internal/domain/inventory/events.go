package inventory

import "time"

const (
	EventStockRecordCreated = "StockRecordCreated"
	EventStockRecordRemoved = "StockRecordRemoved"
	EventStockDecremented   = "StockDecremented"
	EventStockIncremented   = "StockIncremented"
	EventStockSet           = "StockSet"
	EventVelocityUpdated    = "VelocityUpdated"
)

type StockRecordCreated struct {
	ProductID    string    `json:"product_id"`
	InitialStock int       `json:"initial_stock"`
	CreatedAt    time.Time `json:"created_at"`
}

type StockRecordRemoved struct {
	ProductID string    `json:"product_id"`
	RemovedAt time.Time `json:"removed_at"`
}

type StockDecremented struct {
	ProductID     string    `json:"product_id"`
	Quantity      int       `json:"quantity"`
	CurrentStock  int       `json:"current_stock"`
	Reference     string    `json:"reference,omitempty"`
	DecrementedAt time.Time `json:"decremented_at"`
}

type StockIncremented struct {
	ProductID     string    `json:"product_id"`
	Quantity      int       `json:"quantity"`
	CurrentStock  int       `json:"current_stock"`
	Reason        string    `json:"reason"`
	IncrementedAt time.Time `json:"incremented_at"`
}

type StockSet struct {
	ProductID    string    `json:"product_id"`
	CurrentStock int       `json:"current_stock"`
	SetAt        time.Time `json:"set_at"`
}

type VelocityUpdated struct {
	ProductID       string    `json:"product_id"`
	WeeklyVelocity  float64   `json:"weekly_velocity"`
	MonthlyVelocity float64   `json:"monthly_velocity"`
	UpdatedAt       time.Time `json:"updated_at"`
}
