package notification

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/parfum-commerce/internal/domain/order"
	"github.com/example/parfum-commerce/internal/email"
	"github.com/example/parfum-commerce/internal/infrastructure/store"
)

// Sender is the mail transport used by the notifier
type Sender interface {
	SendOrderConfirmation(ctx context.Context, to string, o email.OrderSummary) error
	SendCartReminder(ctx context.Context, to string, r email.CartReminder) error
}

// Handler processes events for sending notifications
type Handler struct {
	sender Sender
}

// NewHandler creates a new notification handler
func NewHandler(sender Sender) *Handler {
	return &Handler{sender: sender}
}

// HandleEvent processes an event from Kafka or the local bus
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		log.Printf("[Notifier] Failed to unmarshal event: %v", err)
		return err
	}

	// Only process OrderPlaced events
	if event.EventType == order.EventOrderPlaced {
		return h.handleOrderPlaced(ctx, event)
	}

	return nil
}

func (h *Handler) handleOrderPlaced(ctx context.Context, event store.Event) error {
	var e order.OrderPlaced
	if err := json.Unmarshal(event.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal OrderPlaced event: %v", err)
		return err
	}

	log.Printf("[Notifier] Processing OrderPlaced event for order %s, user %s", e.Reference, e.UserID)

	if e.UserEmail == "" {
		log.Printf("[Notifier] Order %s has no email address, skipping confirmation", e.Reference)
		return nil
	}

	summary := email.OrderSummary{
		Reference:    e.Reference,
		CustomerName: e.UserName,
		Items:        make([]email.OrderItem, len(e.Items)),
		Subtotal:     e.Subtotal,
		Discount:     e.DiscountAmount,
		Shipping:     e.ShippingCost,
		Total:        e.TotalAmount,
	}
	for i, item := range e.Items {
		summary.Items[i] = email.OrderItem{
			ProductID: item.ProductID,
			Name:      item.ProductName,
			Volume:    item.Volume,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
	}

	// Send order confirmation email
	if err := h.sender.SendOrderConfirmation(ctx, e.UserEmail, summary); err != nil {
		log.Printf("[Notifier] Failed to send email to %s: %v", e.UserEmail, err)
		return err
	}

	log.Printf("[Notifier] Order confirmation email sent to %s for order %s", e.UserEmail, e.Reference)
	return nil
}
