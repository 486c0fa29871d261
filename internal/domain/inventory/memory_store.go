package inventory

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps stock records in process memory
type MemoryStore struct {
	mu     sync.Mutex
	stocks map[string]*Stock
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stocks: make(map[string]*Stock),
		now:    time.Now,
	}
}

func (m *MemoryStore) Get(ctx context.Context, productID string) (*Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stocks[productID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]Stock, 0, len(m.stocks))
	for _, s := range m.stocks {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ProductID < result[j].ProductID })
	return result, nil
}

func (m *MemoryStore) Create(ctx context.Context, stock Stock) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.stocks[stock.ProductID]; ok {
		return ErrAlreadyExists
	}
	if stock.LastUpdated.IsZero() {
		stock.LastUpdated = m.now()
	}
	m.stocks[stock.ProductID] = &stock
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.stocks[productID]; !ok {
		return ErrNotFound
	}
	delete(m.stocks, productID)
	return nil
}

// DecrementAll checks every line and only then applies them, both under the
// same lock.
func (m *MemoryStore) DecrementAll(ctx context.Context, lines []Line) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range lines {
		s, ok := m.stocks[l.ProductID]
		if !ok {
			return false, ErrNotFound
		}
		if s.CurrentStock < l.Quantity {
			return false, nil
		}
	}

	now := m.now()
	for _, l := range lines {
		s := m.stocks[l.ProductID]
		s.CurrentStock -= l.Quantity
		s.LastUpdated = now
	}
	return true, nil
}

func (m *MemoryStore) Adjust(ctx context.Context, productID string, delta int) (*Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stocks[productID]
	if !ok {
		return nil, ErrNotFound
	}
	if s.CurrentStock+delta < 0 {
		return nil, ErrNegativeStock
	}
	s.CurrentStock += delta
	s.LastUpdated = m.now()
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) Set(ctx context.Context, productID string, value int) (*Stock, error) {
	if value < 0 {
		return nil, ErrNegativeStock
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stocks[productID]
	if !ok {
		return nil, ErrNotFound
	}
	s.CurrentStock = value
	s.LastUpdated = m.now()
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) SetVelocity(ctx context.Context, productID string, weekly, monthly float64) (*Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stocks[productID]
	if !ok {
		return nil, ErrNotFound
	}
	s.WeeklyVelocity = weekly
	s.MonthlyVelocity = monthly
	s.LastUpdated = m.now()
	cp := *s
	return &cp, nil
}
