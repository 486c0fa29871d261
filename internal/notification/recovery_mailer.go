package notification

import (
	"context"
	"fmt"
	"sort"

	"github.com/example/parfum-commerce/internal/domain/recovery"
	"github.com/example/parfum-commerce/internal/email"
)

// RecoveryMailer renders abandoned cart reminders for the recovery engine
type RecoveryMailer struct {
	sender  Sender
	cartURL string
}

var _ recovery.Mailer = (*RecoveryMailer)(nil)

func NewRecoveryMailer(sender Sender, cartURL string) *RecoveryMailer {
	return &RecoveryMailer{sender: sender, cartURL: cartURL}
}

func (m *RecoveryMailer) SendRecoveryEmail(ctx context.Context, c recovery.Cart, stage int) error {
	if c.Email == "" {
		return fmt.Errorf("cart %s has no email address", c.CartID)
	}

	reminder := email.CartReminder{
		Stage:   stage,
		Total:   c.TotalValue,
		CartURL: m.cartURL,
	}
	for _, item := range c.Items {
		reminder.Items = append(reminder.Items, email.OrderItem{
			ProductID: item.ProductID,
			Name:      item.ProductName,
			Volume:    item.Volume,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	sort.Slice(reminder.Items, func(i, j int) bool {
		return reminder.Items[i].ProductID < reminder.Items[j].ProductID
	})

	return m.sender.SendCartReminder(ctx, c.Email, reminder)
}
