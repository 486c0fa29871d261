package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/parfum-commerce/internal/infrastructure/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const AggregateType = "Product"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidPrice    = errors.New("price must be positive")
	ErrInvalidName     = errors.New("name is required")
	ErrInvalidVolume   = errors.New("volume must be positive")
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Description string          `json:"description"`
	VolumeML    int             `json:"volume_ml"`
	Notes       []string        `json:"notes,omitempty"`
	Price       decimal.Decimal `json:"price"`
	IsDeleted   bool            `json:"is_deleted,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Volume renders the bottle size, e.g. "50ml"
func (p *Product) Volume() string {
	return fmt.Sprintf("%dml", p.VolumeML)
}

// Details are the editable catalog fields
type Details struct {
	Name        string
	Brand       string
	Description string
	VolumeML    int
	Notes       []string
	Price       decimal.Decimal
}

func (d Details) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrInvalidName
	}
	if !d.Price.IsPositive() {
		return ErrInvalidPrice
	}
	if d.VolumeML <= 0 {
		return ErrInvalidVolume
	}
	return nil
}

func (p *Product) applyEvent(event store.Event) error {
	switch event.EventType {
	case EventProductCreated:
		var data ProductCreated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.ID = data.ProductID
		p.Name = data.Name
		p.Brand = data.Brand
		p.Description = data.Description
		p.VolumeML = data.VolumeML
		p.Notes = data.Notes
		p.Price = data.Price
		p.CreatedAt = data.CreatedAt
		p.UpdatedAt = data.CreatedAt
	case EventProductUpdated:
		var data ProductUpdated
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.Name = data.Name
		p.Brand = data.Brand
		p.Description = data.Description
		p.VolumeML = data.VolumeML
		p.Notes = data.Notes
		p.Price = data.Price
		p.UpdatedAt = data.UpdatedAt
	case EventProductDeleted:
		var data ProductDeleted
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		p.IsDeleted = true
		p.UpdatedAt = data.DeletedAt
	}
	return nil
}

type Service struct {
	eventStore store.EventStoreInterface
}

func NewService(es store.EventStoreInterface) *Service {
	return &Service{eventStore: es}
}

func (s *Service) Get(ctx context.Context, productID string) (*Product, error) {
	events := s.eventStore.GetEvents(productID)
	if len(events) == 0 {
		return nil, ErrProductNotFound
	}
	p := &Product{}
	for _, event := range events {
		if err := p.applyEvent(event); err != nil {
			return nil, err
		}
	}
	if p.ID == "" || p.IsDeleted {
		return nil, ErrProductNotFound
	}
	return p, nil
}

// List returns the live catalog sorted by brand and name
func (s *Service) List(ctx context.Context) ([]Product, error) {
	byID := make(map[string]*Product)
	for _, event := range s.eventStore.GetEventsByType(AggregateType) {
		p, ok := byID[event.AggregateID]
		if !ok {
			p = &Product{}
			byID[event.AggregateID] = p
		}
		if err := p.applyEvent(event); err != nil {
			return nil, err
		}
	}

	result := make([]Product, 0, len(byID))
	for _, p := range byID {
		if !p.IsDeleted {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Brand != result[j].Brand {
			return result[i].Brand < result[j].Brand
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (s *Service) Create(ctx context.Context, d Details) (*Product, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}

	productID := uuid.New().String()
	now := time.Now()

	event := ProductCreated{
		ProductID:   productID,
		Name:        d.Name,
		Brand:       d.Brand,
		Description: d.Description,
		VolumeML:    d.VolumeML,
		Notes:       d.Notes,
		Price:       d.Price,
		CreatedAt:   now,
	}

	_, err := s.eventStore.Append(ctx, productID, AggregateType, EventProductCreated, event)
	if err != nil {
		return nil, err
	}

	return &Product{
		ID:          productID,
		Name:        d.Name,
		Brand:       d.Brand,
		Description: d.Description,
		VolumeML:    d.VolumeML,
		Notes:       d.Notes,
		Price:       d.Price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *Service) Update(ctx context.Context, productID string, d Details) (*Product, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, productID); err != nil {
		return nil, err
	}

	event := ProductUpdated{
		ProductID:   productID,
		Name:        d.Name,
		Brand:       d.Brand,
		Description: d.Description,
		VolumeML:    d.VolumeML,
		Notes:       d.Notes,
		Price:       d.Price,
		UpdatedAt:   time.Now(),
	}

	if _, err := s.eventStore.Append(ctx, productID, AggregateType, EventProductUpdated, event); err != nil {
		return nil, err
	}
	return s.Get(ctx, productID)
}

func (s *Service) Delete(ctx context.Context, productID string) error {
	if _, err := s.Get(ctx, productID); err != nil {
		return err
	}

	event := ProductDeleted{
		ProductID: productID,
		DeletedAt: time.Now(),
	}

	_, err := s.eventStore.Append(ctx, productID, AggregateType, EventProductDeleted, event)
	return err
}
