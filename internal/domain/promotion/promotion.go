package promotion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/parfum-commerce/internal/infrastructure/store"
	"github.com/shopspring/decimal"
)

var (
	// ErrPromoInvalid is the family of all validation failures below
	ErrPromoInvalid = errors.New("promo code invalid")

	ErrNotFound     = fmt.Errorf("%w: not found", ErrPromoInvalid)
	ErrInactive     = fmt.Errorf("%w: inactive", ErrPromoInvalid)
	ErrLimitReached = fmt.Errorf("%w: usage limit reached", ErrPromoInvalid)

	ErrInvalidCode    = errors.New("code is required")
	ErrInvalidPercent = errors.New("discount percent must be between 0 and 100")
	ErrInvalidLimit   = errors.New("usage limit cannot be negative")
	ErrAlreadyExists  = errors.New("promo code already exists")
)

// Reason explains why a code failed validation
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonNotFound     Reason = "NotFound"
	ReasonInactive     Reason = "Inactive"
	ReasonLimitReached Reason = "LimitReached"
)

// Err returns the sentinel error for the reason
func (r Reason) Err() error {
	switch r {
	case ReasonNotFound:
		return ErrNotFound
	case ReasonInactive:
		return ErrInactive
	case ReasonLimitReached:
		return ErrLimitReached
	}
	return nil
}

type PromoCode struct {
	Code            string          `json:"code"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Active          bool            `json:"active"`
	UsageCount      int             `json:"usage_count"`
	UsageLimit      *int            `json:"usage_limit,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Exhausted reports whether the usage limit has been reached
func (p PromoCode) Exhausted() bool {
	return p.UsageLimit != nil && p.UsageCount >= *p.UsageLimit
}

type Validation struct {
	OK              bool            `json:"ok"`
	Reason          Reason          `json:"reason,omitempty"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// Input carries admin-editable fields
type Input struct {
	Code            string
	DiscountPercent decimal.Decimal
	Active          bool
	UsageLimit      *int
}

func (in Input) validate() error {
	if normalize(in.Code) == "" {
		return ErrInvalidCode
	}
	if in.DiscountPercent.IsNegative() || in.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return ErrInvalidPercent
	}
	if in.UsageLimit != nil && *in.UsageLimit < 0 {
		return ErrInvalidLimit
	}
	return nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Service holds promo codes. Codes are matched case-insensitively and stored
// upper-case. With an event store every change is appended before it is
// applied, and Restore rebuilds the codes from that history.
type Service struct {
	mu         sync.RWMutex
	codes      map[string]*PromoCode
	eventStore store.EventStoreInterface
}

func NewService() *Service {
	return &Service{codes: make(map[string]*PromoCode)}
}

func (s *Service) WithEventStore(es store.EventStoreInterface) *Service {
	s.eventStore = es
	return s
}

// record is called with s.mu held
func (s *Service) record(ctx context.Context, code, eventType string, data any) error {
	if s.eventStore == nil {
		return nil
	}
	if _, err := s.eventStore.Append(ctx, StreamID(code), AggregateType, eventType, data); err != nil {
		return fmt.Errorf("failed to record %s for %s: %w", eventType, code, err)
	}
	return nil
}

// Restore replaces the codes with the state recorded in the event store
// and returns how many codes exist afterwards.
func (s *Service) Restore(ctx context.Context) (int, error) {
	if s.eventStore == nil {
		return 0, nil
	}
	events := s.eventStore.GetEventsByType(AggregateType)

	codes := make(map[string]*PromoCode)
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if event.EventType == EventPromoDeleted {
			var data PromoCodeDeleted
			if err := json.Unmarshal(event.Data, &data); err != nil {
				return 0, fmt.Errorf("failed to decode %s: %w", event.ID, err)
			}
			delete(codes, data.Code)
			continue
		}
		var p PromoCode
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return 0, fmt.Errorf("failed to decode %s: %w", event.ID, err)
		}
		codes[p.Code] = &p
	}

	s.mu.Lock()
	s.codes = codes
	s.mu.Unlock()

	log.Printf("[Promotion] Restored %d codes from %d events", len(codes), len(events))
	return len(codes), nil
}

func (s *Service) Lookup(code string) (*PromoCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.codes[normalize(code)]
	if !ok {
		return nil, ErrNotFound
	}
	return p.clone(), nil
}

func (s *Service) Validate(code string) Validation {
	p, err := s.Lookup(code)
	if err != nil {
		return Validation{Reason: ReasonNotFound}
	}
	return validate(p)
}

func validate(p *PromoCode) Validation {
	switch {
	case !p.Active:
		return Validation{Reason: ReasonInactive}
	case p.Exhausted():
		return Validation{Reason: ReasonLimitReached}
	}
	return Validation{OK: true, DiscountPercent: p.DiscountPercent}
}

// Apply returns the discount percent of a valid code. Usage is not counted.
func (s *Service) Apply(code string) (decimal.Decimal, error) {
	v := s.Validate(code)
	if !v.OK {
		return decimal.Zero, v.Reason.Err()
	}
	return v.DiscountPercent, nil
}

// IncrementUsage counts one redemption. It is not idempotent, and it refuses
// to push the count past the limit.
func (s *Service) IncrementUsage(ctx context.Context, code string) (*PromoCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.codes[normalize(code)]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Exhausted() {
		return nil, ErrLimitReached
	}
	next := p.clone()
	next.UsageCount++
	next.UpdatedAt = time.Now()
	return s.commit(ctx, EventPromoUsageIncremented, next)
}

// commit records next and then makes it the current state of its code
func (s *Service) commit(ctx context.Context, eventType string, next *PromoCode) (*PromoCode, error) {
	if err := s.record(ctx, next.Code, eventType, next); err != nil {
		return nil, err
	}
	s.codes[next.Code] = next
	return next.clone(), nil
}

func (s *Service) Create(ctx context.Context, in Input) (*PromoCode, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	code := normalize(in.Code)
	if _, ok := s.codes[code]; ok {
		return nil, ErrAlreadyExists
	}
	now := time.Now()
	p := &PromoCode{
		Code:            code,
		DiscountPercent: in.DiscountPercent,
		Active:          in.Active,
		UsageLimit:      copyLimit(in.UsageLimit),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return s.commit(ctx, EventPromoCreated, p)
}

// Update edits percent, active flag and limit. The usage count is kept.
func (s *Service) Update(ctx context.Context, in Input) (*PromoCode, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.codes[normalize(in.Code)]
	if !ok {
		return nil, ErrNotFound
	}
	next := p.clone()
	next.DiscountPercent = in.DiscountPercent
	next.Active = in.Active
	next.UsageLimit = copyLimit(in.UsageLimit)
	next.UpdatedAt = time.Now()
	return s.commit(ctx, EventPromoUpdated, next)
}

func (s *Service) SetActive(ctx context.Context, code string, active bool) (*PromoCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.codes[normalize(code)]
	if !ok {
		return nil, ErrNotFound
	}
	next := p.clone()
	next.Active = active
	next.UpdatedAt = time.Now()
	return s.commit(ctx, EventPromoActiveChanged, next)
}

func (s *Service) Delete(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	code = normalize(code)
	if _, ok := s.codes[code]; !ok {
		return ErrNotFound
	}
	if err := s.record(ctx, code, EventPromoDeleted, PromoCodeDeleted{Code: code, DeletedAt: time.Now()}); err != nil {
		return err
	}
	delete(s.codes, code)
	return nil
}

func (s *Service) List() []PromoCode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]PromoCode, 0, len(s.codes))
	for _, p := range s.codes {
		result = append(result, *p.clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result
}

func (p *PromoCode) clone() *PromoCode {
	cp := *p
	cp.UsageLimit = copyLimit(p.UsageLimit)
	return &cp
}

func copyLimit(limit *int) *int {
	if limit == nil {
		return nil
	}
	v := *limit
	return &v
}
