package command

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/example/parfum-commerce/internal/domain/cart"
	"github.com/example/parfum-commerce/internal/domain/inventory"
	"github.com/example/parfum-commerce/internal/domain/order"
	"github.com/example/parfum-commerce/internal/domain/product"
	"github.com/example/parfum-commerce/internal/domain/promotion"
	"github.com/example/parfum-commerce/internal/metrics"
)

type Handler struct {
	productSvc   *product.Service
	cartSvc      *cart.Service
	orderSvc     *order.Service
	inventorySvc *inventory.Service
}

func NewHandler(
	productSvc *product.Service,
	cartSvc *cart.Service,
	orderSvc *order.Service,
	inventorySvc *inventory.Service,
) *Handler {
	return &Handler{
		productSvc:   productSvc,
		cartSvc:      cartSvc,
		orderSvc:     orderSvc,
		inventorySvc: inventorySvc,
	}
}

// CreateProduct lists a product and opens its stock record
func (h *Handler) CreateProduct(ctx context.Context, cmd CreateProduct) (*product.Product, error) {
	if cmd.InitialStock < 0 {
		return nil, inventory.ErrNegativeStock
	}

	// 1. Create product (emits ProductCreated event)
	p, err := h.productSvc.Create(ctx, product.Details{
		Name:        cmd.Name,
		Brand:       cmd.Brand,
		Description: cmd.Description,
		VolumeML:    cmd.VolumeML,
		Notes:       cmd.Notes,
		Price:       cmd.Price,
	})
	if err != nil {
		return nil, err
	}

	// 2. Open stock record (emits StockRecordCreated event)
	if _, err := h.inventorySvc.AddProduct(ctx, p.ID, cmd.InitialStock); err != nil {
		if derr := h.productSvc.Delete(ctx, p.ID); derr != nil {
			log.Printf("[Command] Failed to roll back product %s: %v", p.ID, derr)
		}
		return nil, err
	}

	return p, nil
}

func (h *Handler) UpdateProduct(ctx context.Context, cmd UpdateProduct) (*product.Product, error) {
	return h.productSvc.Update(ctx, cmd.ProductID, product.Details{
		Name:        cmd.Name,
		Brand:       cmd.Brand,
		Description: cmd.Description,
		VolumeML:    cmd.VolumeML,
		Notes:       cmd.Notes,
		Price:       cmd.Price,
	})
}

// DeleteProduct delists a product and destroys its stock record
func (h *Handler) DeleteProduct(ctx context.Context, cmd DeleteProduct) error {
	if err := h.productSvc.Delete(ctx, cmd.ProductID); err != nil {
		return err
	}
	if err := h.inventorySvc.RemoveProduct(ctx, cmd.ProductID); err != nil && !errors.Is(err, inventory.ErrNotFound) {
		return err
	}
	return nil
}

// AddToCart adds a catalog product to the user's cart at the current catalog price
func (h *Handler) AddToCart(ctx context.Context, cmd AddToCart) error {
	p, err := h.productSvc.Get(ctx, cmd.ProductID)
	if err != nil {
		return err
	}

	return h.cartSvc.AddItem(ctx, cmd.UserID, cmd.Email, cart.CartItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		Volume:      p.Volume(),
		Quantity:    cmd.Quantity,
		Price:       p.Price,
	})
}

func (h *Handler) RemoveFromCart(ctx context.Context, cmd RemoveFromCart) error {
	return h.cartSvc.RemoveItem(ctx, cmd.UserID, cmd.ProductID)
}

func (h *Handler) ClearCart(ctx context.Context, cmd ClearCart) error {
	return h.cartSvc.Clear(ctx, cmd.UserID, cart.ReasonEmptied)
}

// PlaceOrder checks out the user's cart. The cart is emptied only when the
// order was created.
func (h *Handler) PlaceOrder(ctx context.Context, cmd PlaceOrder) (*order.Order, error) {
	start := time.Now()
	defer func() {
		metrics.OrderCreationDuration.Observe(time.Since(start).Seconds())
	}()

	c, err := h.cartSvc.Get(ctx, cmd.UserID)
	if err != nil {
		metrics.OrdersRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}
	if len(c.Items) == 0 {
		metrics.OrdersRejectedTotal.WithLabelValues(rejectReason(order.ErrEmptyOrder)).Inc()
		return nil, order.ErrEmptyOrder
	}

	var items []order.OrderItem
	for _, item := range c.SortedItems() {
		items = append(items, order.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Volume:      item.Volume,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}

	email := cmd.UserEmail
	if email == "" {
		email = c.Email
	}

	// Create order (emits OrderPlaced event, takes stock, counts the promo)
	o, err := h.orderSvc.CreateOrder(ctx, order.CreateInput{
		UserID:          cmd.UserID,
		UserName:        cmd.UserName,
		UserEmail:       email,
		CartID:          c.ID,
		Items:           items,
		ShippingAddress: cmd.ShippingAddress,
		PromoCode:       cmd.PromoCode,
	})
	if err != nil {
		metrics.OrdersRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}
	metrics.OrdersCreatedTotal.Inc()

	// Clear cart (emits CartCleared event)
	if err := h.cartSvc.Clear(ctx, cmd.UserID, cart.ReasonCheckout); err != nil {
		log.Printf("[Command] Order %s created but cart %s was not cleared: %v", o.Reference, c.ID, err)
	}

	return o, nil
}

func (h *Handler) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatus) (*order.Order, error) {
	status, err := order.ParseStatus(cmd.Status)
	if err != nil {
		return nil, err
	}
	return h.orderSvc.UpdateStatus(ctx, cmd.OrderID, status)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, inventory.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, promotion.ErrPromoInvalid):
		return "promo_invalid"
	case errors.Is(err, order.ErrEmptyOrder), errors.Is(err, order.ErrInvalidItem):
		return "invalid"
	default:
		return "error"
	}
}
