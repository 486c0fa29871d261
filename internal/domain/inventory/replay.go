package inventory

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/example/parfum-commerce/internal/infrastructure/store"
)

// RestoreMemoryStore rebuilds stock records from the inventory event history.
// Decrements and increments are applied as deltas so the result does not
// depend on the current_stock readings stored alongside them.
func RestoreMemoryStore(events []store.Event) (*MemoryStore, error) {
	m := NewMemoryStore()
	for _, event := range events {
		if event.AggregateType != AggregateType {
			continue
		}
		if err := m.apply(event); err != nil {
			return nil, fmt.Errorf("failed to replay %s %s: %w", event.EventType, event.ID, err)
		}
	}
	log.Printf("[Inventory] Restored %d stock records from %d events", len(m.stocks), len(events))
	return m, nil
}

func (m *MemoryStore) apply(event store.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch event.EventType {
	case EventStockRecordCreated:
		var data StockRecordCreated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		m.stocks[data.ProductID] = &Stock{
			ProductID:    data.ProductID,
			CurrentStock: data.InitialStock,
			LastUpdated:  event.Timestamp,
		}
	case EventStockRecordRemoved:
		var data StockRecordRemoved
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		delete(m.stocks, data.ProductID)
	case EventStockDecremented:
		var data StockDecremented
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		m.adjustReplayed(data.ProductID, -data.Quantity, event)
	case EventStockIncremented:
		var data StockIncremented
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		m.adjustReplayed(data.ProductID, data.Quantity, event)
	case EventStockSet:
		var data StockSet
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		if s, ok := m.lookupReplayed(data.ProductID, event); ok {
			s.CurrentStock = data.CurrentStock
			s.LastUpdated = event.Timestamp
		}
	case EventVelocityUpdated:
		var data VelocityUpdated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		if s, ok := m.lookupReplayed(data.ProductID, event); ok {
			s.WeeklyVelocity = data.WeeklyVelocity
			s.MonthlyVelocity = data.MonthlyVelocity
			s.LastUpdated = event.Timestamp
		}
	}
	return nil
}

func (m *MemoryStore) adjustReplayed(productID string, delta int, event store.Event) {
	if s, ok := m.lookupReplayed(productID, event); ok {
		s.CurrentStock += delta
		s.LastUpdated = event.Timestamp
	}
}

func (m *MemoryStore) lookupReplayed(productID string, event store.Event) (*Stock, bool) {
	s, ok := m.stocks[productID]
	if !ok {
		log.Printf("[Inventory] Skipping %s for unknown stock record %s", event.EventType, productID)
	}
	return s, ok
}
