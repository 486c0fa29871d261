package command

import (
	"github.com/example/parfum-commerce/internal/domain/order"
	"github.com/shopspring/decimal"
)

// Product Commands
type CreateProduct struct {
	Name         string          `json:"name"`
	Brand        string          `json:"brand"`
	Description  string          `json:"description"`
	VolumeML     int             `json:"volume_ml"`
	Notes        []string        `json:"notes"`
	Price        decimal.Decimal `json:"price"`
	InitialStock int             `json:"initial_stock"`
}

type UpdateProduct struct {
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Description string          `json:"description"`
	VolumeML    int             `json:"volume_ml"`
	Notes       []string        `json:"notes"`
	Price       decimal.Decimal `json:"price"`
}

type DeleteProduct struct {
	ProductID string `json:"product_id"`
}

// Cart Commands
type AddToCart struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type RemoveFromCart struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
}

type ClearCart struct {
	UserID string `json:"user_id"`
}

// Order Commands
type PlaceOrder struct {
	UserID          string        `json:"user_id"`
	UserName        string        `json:"user_name"`
	UserEmail       string        `json:"user_email"`
	ShippingAddress order.Address `json:"shipping_address"`
	PromoCode       string        `json:"promo_code"`
}

type UpdateOrderStatus struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}
