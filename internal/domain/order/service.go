package order

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/parfum-commerce/internal/domain/aggregate"
	"github.com/example/parfum-commerce/internal/domain/inventory"
	"github.com/example/parfum-commerce/internal/domain/promotion"
	"github.com/example/parfum-commerce/internal/infrastructure/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockKeeper is the part of the inventory the engine writes to
type StockKeeper interface {
	DecrementStock(ctx context.Context, reference string, lines []inventory.Line) (bool, error)
	RestoreStock(ctx context.Context, reason string, lines []inventory.Line) error
}

// PromoRedeemer is the part of the promotion store the engine uses
type PromoRedeemer interface {
	Apply(code string) (decimal.Decimal, error)
	IncrementUsage(ctx context.Context, code string) (*promotion.PromoCode, error)
}

type Config struct {
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
	// RestockOnCancel returns stock on cancellation and takes it again on
	// reactivation.
	RestockOnCancel bool
}

func DefaultConfig() Config {
	return Config{
		FreeShippingThreshold: decimal.NewFromInt(100),
		ShippingFee:           decimal.RequireFromString("9.99"),
	}
}

type CreateInput struct {
	UserID          string
	UserName        string
	UserEmail       string
	CartID          string
	Items           []OrderItem
	ShippingAddress Address
	PromoCode       string
}

type ListFilter struct {
	UserID string
	Status Status
}

type Service struct {
	mu         sync.Mutex
	eventStore store.EventStoreInterface
	stock      StockKeeper
	promos     PromoRedeemer
	cfg        Config
	now        func() time.Time
}

func NewService(es store.EventStoreInterface, stock StockKeeper, promos PromoRedeemer, cfg Config) *Service {
	return &Service{
		eventStore: es,
		stock:      stock,
		promos:     promos,
		cfg:        cfg,
		now:        time.Now,
	}
}

// loadOrder loads an order by replaying events, using snapshot if available
func (s *Service) loadOrder(ctx context.Context, orderID string) (*Order, error) {
	order, found, err := aggregate.LoadAggregate(ctx, s.eventStore, orderID, func() *Order {
		return &Order{}
	})
	if err != nil {
		return nil, err
	}
	if !found || order.Deleted {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// Totals is the engine-computed price breakdown of an order
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// Price computes totals from the line items and the discount percent.
// Caller-supplied totals are never trusted.
func (s *Service) Price(items []OrderItem, discountPercent decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	subtotal = subtotal.Round(2)

	discount := subtotal.Mul(discountPercent).Div(decimal.NewFromInt(100)).Round(2)

	shipping := s.cfg.ShippingFee
	if subtotal.GreaterThanOrEqual(s.cfg.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	total := decimal.Max(decimal.Zero, subtotal.Sub(discount)).Add(shipping)
	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		ShippingCost:   shipping,
		TotalAmount:    total,
	}
}

func validateItems(items []OrderItem) error {
	if len(items) == 0 {
		return ErrEmptyOrder
	}
	for _, item := range items {
		if item.ProductID == "" || item.Quantity <= 0 || item.Price.IsNegative() {
			return fmt.Errorf("%w: %q", ErrInvalidItem, item.ProductID)
		}
	}
	return nil
}

func newReference(now time.Time) string {
	return fmt.Sprintf("PF-%s-%06d", now.Format("20060102"), rand.IntN(1000000))
}

// CreateOrder turns a checkout into a pending order. Stock is taken for every
// line or for none; the promo is counted only when the order was stored.
func (s *Service) CreateOrder(ctx context.Context, in CreateInput) (*Order, error) {
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	promoCode := strings.ToUpper(strings.TrimSpace(in.PromoCode))
	percent := decimal.Zero
	if promoCode != "" {
		p, err := s.promos.Apply(promoCode)
		if err != nil {
			return nil, err
		}
		percent = p
	}
	totals := s.Price(in.Items, percent)

	now := s.now()
	orderID := uuid.New().String()
	reference := newReference(now)

	order := &Order{
		ID:              orderID,
		Reference:       reference,
		UserID:          in.UserID,
		UserName:        in.UserName,
		UserEmail:       in.UserEmail,
		CartID:          in.CartID,
		Items:           in.Items,
		Subtotal:        totals.Subtotal,
		DiscountAmount:  totals.DiscountAmount,
		ShippingCost:    totals.ShippingCost,
		TotalAmount:     totals.TotalAmount,
		ShippingAddress: in.ShippingAddress,
		PromoCode:       promoCode,
		PromoDiscount:   percent,
	}

	ok, err := s.stock.DecrementStock(ctx, reference, order.Lines())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInsufficientStock
	}

	event := OrderPlaced{
		OrderID:         orderID,
		Reference:       reference,
		UserID:          order.UserID,
		UserName:        order.UserName,
		UserEmail:       order.UserEmail,
		CartID:          order.CartID,
		Items:           order.Items,
		Subtotal:        order.Subtotal,
		DiscountAmount:  order.DiscountAmount,
		ShippingCost:    order.ShippingCost,
		TotalAmount:     order.TotalAmount,
		ShippingAddress: order.ShippingAddress,
		PromoCode:       order.PromoCode,
		PromoDiscount:   order.PromoDiscount,
		PlacedAt:        now,
	}

	storedEvent, err := s.eventStore.Append(ctx, orderID, AggregateType, EventOrderPlaced, event)
	if err != nil {
		if rerr := s.stock.RestoreStock(ctx, "order write failed", order.Lines()); rerr != nil {
			log.Printf("[Order] Failed to restore stock for %s: %v", reference, rerr)
		}
		return nil, fmt.Errorf("failed to store order: %w", err)
	}

	if promoCode != "" {
		if _, err := s.promos.IncrementUsage(ctx, promoCode); err != nil {
			log.Printf("[Order] Failed to count promo %s for order %s: %v", promoCode, reference, err)
		}
	}

	order.Status = StatusPending
	order.stamp(StatusPending, now)
	order.History = []StatusChange{{To: StatusPending, At: now}}
	order.CreatedAt = now
	order.UpdatedAt = now
	if storedEvent != nil {
		order.Version = storedEvent.Version
	}

	// Check if we need to create a snapshot
	if err := aggregate.MaybeCreateSnapshot(ctx, s.eventStore, order, AggregateType); err != nil {
		log.Printf("[Order] Failed to create snapshot for order %s: %v", order.ID, err)
	}

	log.Printf("[Order] Created %s for user %s total=%s", reference, order.UserID, order.TotalAmount.StringFixed(2))
	return order, nil
}

// UpdateStatus moves an order along the status machine and stamps the new
// status' timestamp.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, target Status) (*Order, error) {
	if _, ok := validTransitions[target]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.CanTransitionTo(target) {
		return nil, order.transitionError(target)
	}

	restock := s.cfg.RestockOnCancel
	reactivating := order.Status == StatusCancelled && target == StatusPending
	if restock && reactivating {
		ok, err := s.stock.DecrementStock(ctx, order.Reference, order.Lines())
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrInsufficientStock
		}
	}

	event := OrderStatusChanged{
		OrderID:   orderID,
		From:      order.Status,
		To:        target,
		Restocked: restock && target == StatusCancelled,
		ChangedAt: s.now(),
	}

	storedEvent, err := s.eventStore.Append(ctx, orderID, AggregateType, EventOrderStatusChanged, event)
	if err != nil {
		if restock && reactivating {
			if rerr := s.stock.RestoreStock(ctx, "reactivation failed", order.Lines()); rerr != nil {
				log.Printf("[Order] Failed to restore stock for %s: %v", order.Reference, rerr)
			}
		}
		return nil, err
	}

	if event.Restocked {
		if err := s.stock.RestoreStock(ctx, "cancelled", order.Lines()); err != nil {
			log.Printf("[Order] Failed to restock cancelled order %s: %v", order.Reference, err)
		}
	}

	order.Status = target
	order.stamp(target, event.ChangedAt)
	order.History = append(order.History, StatusChange{From: event.From, To: target, At: event.ChangedAt})
	order.UpdatedAt = event.ChangedAt
	if storedEvent != nil {
		order.Version = storedEvent.Version
	}

	// Check if we need to create a snapshot
	if err := aggregate.MaybeCreateSnapshot(ctx, s.eventStore, order, AggregateType); err != nil {
		log.Printf("[Order] Failed to create snapshot for order %s: %v", order.ID, err)
	}

	return order, nil
}

// DeleteOrder removes an order for good. Stock is not returned.
func (s *Service) DeleteOrder(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.loadOrder(ctx, orderID); err != nil {
		return err
	}

	_, err := s.eventStore.Append(ctx, orderID, AggregateType, EventOrderDeleted, OrderDeleted{
		OrderID:   orderID,
		DeletedAt: s.now(),
	})
	return err
}

func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.loadOrder(ctx, orderID)
}

// List rebuilds every order from the event store, newest first
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	byID := make(map[string]*Order)
	var ids []string
	for _, event := range s.eventStore.GetEventsByType(AggregateType) {
		o, ok := byID[event.AggregateID]
		if !ok {
			o = &Order{}
			byID[event.AggregateID] = o
			ids = append(ids, event.AggregateID)
		}
		if err := o.ApplyEvent(event); err != nil {
			return nil, fmt.Errorf("failed to apply event: %w", err)
		}
	}

	result := make([]Order, 0, len(ids))
	for _, id := range ids {
		o := byID[id]
		if o.Deleted || o.ID == "" {
			continue
		}
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		result = append(result, *o)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

