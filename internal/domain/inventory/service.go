package inventory

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/example/parfum-commerce/internal/infrastructure/store"
)

// Service is the only writer of stock records. Every change is recorded in
// the event store, which also feeds the push channel.
type Service struct {
	stocks     Store
	eventStore store.EventStoreInterface
}

func NewService(stocks Store, es store.EventStoreInterface) *Service {
	return &Service{stocks: stocks, eventStore: es}
}

func (s *Service) record(ctx context.Context, productID, eventType string, data any) {
	if s.eventStore == nil {
		return
	}
	if _, err := s.eventStore.Append(ctx, StreamID(productID), AggregateType, eventType, data); err != nil {
		log.Printf("[Inventory] Failed to record %s for %s: %v", eventType, productID, err)
	}
}

func (s *Service) Get(ctx context.Context, productID string) (*Stock, error) {
	return s.stocks.Get(ctx, productID)
}

func (s *Service) List(ctx context.Context) ([]Stock, error) {
	return s.stocks.List(ctx)
}

// CheckAvailability reports whether every line can be served. It changes nothing.
func (s *Service) CheckAvailability(ctx context.Context, lines []Line) (bool, error) {
	lines, err := NormalizeLines(lines)
	if err != nil {
		return false, err
	}
	for _, l := range lines {
		stock, err := s.stocks.Get(ctx, l.ProductID)
		if err != nil {
			return false, err
		}
		if stock.CurrentStock < l.Quantity {
			return false, nil
		}
	}
	return true, nil
}

// DecrementStock removes every line from stock or nothing at all.
// It returns false, nil when at least one line is short.
func (s *Service) DecrementStock(ctx context.Context, reference string, lines []Line) (bool, error) {
	lines, err := NormalizeLines(lines)
	if err != nil {
		return false, err
	}
	if len(lines) == 0 {
		return false, ErrInvalidQuantity
	}

	ok, err := s.stocks.DecrementAll(ctx, lines)
	if err != nil || !ok {
		return false, err
	}

	now := time.Now()
	for _, l := range lines {
		current := -1
		if stock, err := s.stocks.Get(ctx, l.ProductID); err == nil {
			current = stock.CurrentStock
		}
		s.record(ctx, l.ProductID, EventStockDecremented, StockDecremented{
			ProductID:     l.ProductID,
			Quantity:      l.Quantity,
			CurrentStock:  current,
			Reference:     reference,
			DecrementedAt: now,
		})
	}
	return true, nil
}

// RestoreStock puts lines back into stock, e.g. after a failed order write or
// a cancellation. Records that disappeared in the meantime are skipped.
func (s *Service) RestoreStock(ctx context.Context, reason string, lines []Line) error {
	lines, err := NormalizeLines(lines)
	if err != nil {
		return err
	}

	var errs []error
	for _, l := range lines {
		stock, err := s.stocks.Adjust(ctx, l.ProductID, l.Quantity)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				log.Printf("[Inventory] Skipping restore of %s: record removed", l.ProductID)
				continue
			}
			errs = append(errs, err)
			continue
		}
		s.record(ctx, l.ProductID, EventStockIncremented, StockIncremented{
			ProductID:     l.ProductID,
			Quantity:      l.Quantity,
			CurrentStock:  stock.CurrentStock,
			Reason:        reason,
			IncrementedAt: time.Now(),
		})
	}
	return errors.Join(errs...)
}

// IncrementStock adjusts stock by amount (negative to write off). The
// resulting stock must not be negative.
func (s *Service) IncrementStock(ctx context.Context, productID string, amount int) (*Stock, error) {
	if amount == 0 {
		return nil, ErrInvalidQuantity
	}
	stock, err := s.stocks.Adjust(ctx, productID, amount)
	if err != nil {
		return nil, err
	}
	s.record(ctx, productID, EventStockIncremented, StockIncremented{
		ProductID:     productID,
		Quantity:      amount,
		CurrentStock:  stock.CurrentStock,
		Reason:        "restock",
		IncrementedAt: time.Now(),
	})
	return stock, nil
}

func (s *Service) SetStock(ctx context.Context, productID string, value int) (*Stock, error) {
	if value < 0 {
		return nil, ErrNegativeStock
	}
	stock, err := s.stocks.Set(ctx, productID, value)
	if err != nil {
		return nil, err
	}
	s.record(ctx, productID, EventStockSet, StockSet{
		ProductID:    productID,
		CurrentStock: stock.CurrentStock,
		SetAt:        time.Now(),
	})
	return stock, nil
}

func (s *Service) SetVelocity(ctx context.Context, productID string, weekly, monthly float64) (*Stock, error) {
	if weekly < 0 || monthly < 0 {
		return nil, ErrInvalidVelocity
	}
	stock, err := s.stocks.SetVelocity(ctx, productID, weekly, monthly)
	if err != nil {
		return nil, err
	}
	s.record(ctx, productID, EventVelocityUpdated, VelocityUpdated{
		ProductID:       productID,
		WeeklyVelocity:  weekly,
		MonthlyVelocity: monthly,
		UpdatedAt:       time.Now(),
	})
	return stock, nil
}

// AddProduct creates the stock record of a newly listed product
func (s *Service) AddProduct(ctx context.Context, productID string, initialStock int) (*Stock, error) {
	if productID == "" {
		return nil, ErrInvalidProduct
	}
	if initialStock < 0 {
		return nil, ErrNegativeStock
	}

	now := time.Now()
	stock := Stock{ProductID: productID, CurrentStock: initialStock, LastUpdated: now}
	if err := s.stocks.Create(ctx, stock); err != nil {
		return nil, err
	}
	s.record(ctx, productID, EventStockRecordCreated, StockRecordCreated{
		ProductID:    productID,
		InitialStock: initialStock,
		CreatedAt:    now,
	})
	return &stock, nil
}

// RemoveProduct destroys the stock record of a delisted product
func (s *Service) RemoveProduct(ctx context.Context, productID string) error {
	if err := s.stocks.Delete(ctx, productID); err != nil {
		return err
	}
	s.record(ctx, productID, EventStockRecordRemoved, StockRecordRemoved{
		ProductID: productID,
		RemovedAt: time.Now(),
	})
	return nil
}
