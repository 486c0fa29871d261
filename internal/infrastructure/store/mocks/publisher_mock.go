package mocks

import (
	"context"
	"sync"
)

// MockPublisher records published events
type MockPublisher struct {
	mu         sync.Mutex
	Published  []PublishCall
	PublishErr error
}

// PublishCall records parameters passed to Publish
type PublishCall struct {
	Key   string
	Event any
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, key string, event any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, PublishCall{Key: key, Event: event})
	return m.PublishErr
}

// Count returns the number of Publish calls
func (m *MockPublisher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Published)
}
