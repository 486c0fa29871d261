package cart

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/example/parfum-commerce/internal/domain/aggregate"
	"github.com/example/parfum-commerce/internal/infrastructure/store"
	"github.com/shopspring/decimal"
)

const AggregateType = "Cart"

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidProduct  = errors.New("product_id is required")
	ErrInvalidPrice    = errors.New("price cannot be negative")
	ErrEmptyCart       = errors.New("cart is empty")
)

type CartItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Volume      string          `json:"volume,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type Cart struct {
	ID        string              `json:"id"`
	UserID    string              `json:"user_id"`
	Email     string              `json:"email,omitempty"`
	Items     map[string]CartItem `json:"items"` // productID -> item
	UpdatedAt time.Time           `json:"updated_at"`
	Version   int                 `json:"version"`
}

// Aggregate interface implementation
func (c *Cart) GetID() string    { return c.ID }
func (c *Cart) GetVersion() int  { return c.Version }
func (c *Cart) SetVersion(v int) { c.Version = v }

// Total is the sum of all line totals
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// SortedItems returns the items ordered by product id
func (c *Cart) SortedItems() []CartItem {
	items := make([]CartItem, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	return items
}

type Service struct {
	eventStore store.EventStoreInterface
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es}
}

// GetCartID returns the cart ID for a user (using userID as cartID for simplicity)
func GetCartID(userID string) string {
	return "cart-" + userID
}

// ApplyEvent applies a single event to the cart state (implements aggregate.Aggregate)
func (c *Cart) ApplyEvent(event store.Event) error {
	if c.Items == nil {
		c.Items = make(map[string]CartItem)
	}
	switch event.EventType {
	case EventItemAdded:
		var data ItemAddedToCart
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		c.ID = data.CartID
		c.UserID = data.UserID
		if data.Email != "" {
			c.Email = data.Email
		}
		// Add or update item quantity
		item := c.Items[data.ProductID]
		item.ProductID = data.ProductID
		item.ProductName = data.ProductName
		item.Volume = data.Volume
		item.Quantity += data.Quantity
		item.Price = data.Price
		c.Items[data.ProductID] = item
		c.UpdatedAt = data.AddedAt
	case EventItemRemoved:
		var data ItemRemovedFromCart
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		delete(c.Items, data.ProductID)
		c.UpdatedAt = data.RemovedAt
	case EventCartCleared:
		var data CartCleared
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		c.Items = make(map[string]CartItem)
		c.UpdatedAt = data.ClearedAt
	}
	c.Version = event.Version
	return nil
}

func (s *Service) loadCart(ctx context.Context, userID string) (*Cart, error) {
	cartID := GetCartID(userID)
	cart, _, err := aggregate.LoadAggregate(ctx, s.eventStore, cartID, func() *Cart {
		return &Cart{Items: make(map[string]CartItem)}
	})
	if err != nil {
		return nil, err
	}
	cart.ID = cartID
	cart.UserID = userID
	return cart, nil
}

// Get returns the user's cart, empty if nothing was ever added
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	return s.loadCart(ctx, userID)
}

// append stores the event and snapshots the cart when due
func (s *Service) append(ctx context.Context, userID, eventType string, data any) error {
	cart, err := s.loadCart(ctx, userID)
	if err != nil {
		return err
	}

	storedEvent, err := s.eventStore.Append(ctx, cart.ID, AggregateType, eventType, data)
	if err != nil {
		return err
	}
	if storedEvent == nil {
		return nil
	}
	if err := cart.ApplyEvent(*storedEvent); err != nil {
		return err
	}

	// Check if we need to create a snapshot
	if err := aggregate.MaybeCreateSnapshot(ctx, s.eventStore, cart, AggregateType); err != nil {
		log.Printf("[Cart] Failed to create snapshot for cart %s: %v", cart.ID, err)
	}
	return nil
}

func (s *Service) AddItem(ctx context.Context, userID, email string, item CartItem) error {
	if item.ProductID == "" {
		return ErrInvalidProduct
	}
	if item.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if item.Price.IsNegative() {
		return ErrInvalidPrice
	}

	return s.append(ctx, userID, EventItemAdded, ItemAddedToCart{
		CartID:      GetCartID(userID),
		UserID:      userID,
		Email:       email,
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		Volume:      item.Volume,
		Quantity:    item.Quantity,
		Price:       item.Price,
		AddedAt:     time.Now(),
	})
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) error {
	if productID == "" {
		return ErrInvalidProduct
	}

	return s.append(ctx, userID, EventItemRemoved, ItemRemovedFromCart{
		CartID:    GetCartID(userID),
		UserID:    userID,
		ProductID: productID,
		RemovedAt: time.Now(),
	})
}

func (s *Service) Clear(ctx context.Context, userID, reason string) error {
	if reason == "" {
		reason = ReasonEmptied
	}

	return s.append(ctx, userID, EventCartCleared, CartCleared{
		CartID:    GetCartID(userID),
		UserID:    userID,
		Reason:    reason,
		ClearedAt: time.Now(),
	})
}
