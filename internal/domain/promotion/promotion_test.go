package promotion

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/example/parfum-commerce/internal/infrastructure/store"
	"github.com/example/parfum-commerce/internal/infrastructure/store/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func eventTypes(events []store.Event) []string {
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.EventType)
	}
	return types
}

func newTestPromotionService(t *testing.T, inputs ...Input) *Service {
	t.Helper()
	s := NewService()
	for _, in := range inputs {
		_, err := s.Create(context.Background(), in)
		require.NoError(t, err)
	}
	return s
}

// ============================================
// Lookup / Validate Tests
// ============================================

func TestService_Lookup_CaseInsensitive(t *testing.T) {
	s := newTestPromotionService(t, Input{Code: "spring10", DiscountPercent: decimal.NewFromInt(10), Active: true})

	p, err := s.Lookup("Spring10")

	require.NoError(t, err)
	assert.Equal(t, "SPRING10", p.Code)
	assert.True(t, p.DiscountPercent.Equal(decimal.NewFromInt(10)))
}

func TestService_Validate(t *testing.T) {
	s := newTestPromotionService(t,
		Input{Code: "OK", DiscountPercent: decimal.NewFromInt(5), Active: true},
		Input{Code: "OFF", DiscountPercent: decimal.NewFromInt(5), Active: false},
		Input{Code: "USEDUP", DiscountPercent: decimal.NewFromInt(5), Active: true, UsageLimit: intPtr(0)},
	)

	tests := []struct {
		code   string
		ok     bool
		reason Reason
	}{
		{"ok", true, ReasonNone},
		{"off", false, ReasonInactive},
		{"usedup", false, ReasonLimitReached},
		{"missing", false, ReasonNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			v := s.Validate(tt.code)
			assert.Equal(t, tt.ok, v.OK)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestService_Apply_DoesNotCountUsage(t *testing.T) {
	s := newTestPromotionService(t, Input{Code: "TEN", DiscountPercent: decimal.NewFromInt(10), Active: true})

	pct, err := s.Apply("ten")
	require.NoError(t, err)
	assert.True(t, pct.Equal(decimal.NewFromInt(10)))

	p, _ := s.Lookup("TEN")
	assert.Equal(t, 0, p.UsageCount)
}

func TestService_Apply_ErrorsWrapFamily(t *testing.T) {
	s := newTestPromotionService(t, Input{Code: "OFF", DiscountPercent: decimal.NewFromInt(10)})

	_, err := s.Apply("off")
	assert.ErrorIs(t, err, ErrInactive)
	assert.ErrorIs(t, err, ErrPromoInvalid)

	_, err = s.Apply("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, errors.Is(err, ErrPromoInvalid))
}

// ============================================
// Usage Tests
// ============================================

func TestService_IncrementUsage_RespectsLimit(t *testing.T) {
	s := newTestPromotionService(t, Input{Code: "TWICE", DiscountPercent: decimal.NewFromInt(15), Active: true, UsageLimit: intPtr(2)})

	p, err := s.IncrementUsage(context.Background(), "twice")
	require.NoError(t, err)
	assert.Equal(t, 1, p.UsageCount)

	p, err = s.IncrementUsage(context.Background(), "TWICE")
	require.NoError(t, err)
	assert.Equal(t, 2, p.UsageCount)

	_, err = s.IncrementUsage(context.Background(), "twice")
	assert.ErrorIs(t, err, ErrLimitReached)
	assert.Equal(t, ReasonLimitReached, s.Validate("twice").Reason)
}

func TestService_IncrementUsage_Concurrent(t *testing.T) {
	s := newTestPromotionService(t, Input{Code: "RUSH", DiscountPercent: decimal.NewFromInt(5), Active: true, UsageLimit: intPtr(5)})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.IncrementUsage(context.Background(), "rush")
		}()
	}
	wg.Wait()

	p, _ := s.Lookup("rush")
	assert.Equal(t, 5, p.UsageCount)
}

// ============================================
// Admin Tests
// ============================================

func TestService_Create_Validation(t *testing.T) {
	s := NewService()

	_, err := s.Create(context.Background(), Input{Code: "  "})
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, err = s.Create(context.Background(), Input{Code: "X", DiscountPercent: decimal.NewFromInt(101)})
	assert.ErrorIs(t, err, ErrInvalidPercent)

	_, err = s.Create(context.Background(), Input{Code: "X", DiscountPercent: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ErrInvalidPercent)

	_, err = s.Create(context.Background(), Input{Code: "X", UsageLimit: intPtr(-1)})
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = s.Create(context.Background(), Input{Code: "x", DiscountPercent: decimal.NewFromInt(100)})
	require.NoError(t, err)
	_, err = s.Create(context.Background(), Input{Code: "X"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestService_UpdateKeepsUsage(t *testing.T) {
	s := newTestPromotionService(t, Input{Code: "VIP", DiscountPercent: decimal.NewFromInt(20), Active: true})
	_, err := s.IncrementUsage(context.Background(), "vip")
	require.NoError(t, err)

	p, err := s.Update(context.Background(), Input{Code: "vip", DiscountPercent: decimal.NewFromInt(25), Active: true, UsageLimit: intPtr(3)})

	require.NoError(t, err)
	assert.Equal(t, 1, p.UsageCount)
	assert.Equal(t, 3, *p.UsageLimit)
	assert.True(t, p.DiscountPercent.Equal(decimal.NewFromInt(25)))

	_, err = s.Update(context.Background(), Input{Code: "ghost"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_SetActiveDeleteList(t *testing.T) {
	s := newTestPromotionService(t,
		Input{Code: "B", DiscountPercent: decimal.NewFromInt(5), Active: true},
		Input{Code: "A", DiscountPercent: decimal.NewFromInt(5), Active: true},
	)

	p, err := s.SetActive(context.Background(), "b", false)
	require.NoError(t, err)
	assert.False(t, p.Active)
	assert.Equal(t, ReasonInactive, s.Validate("B").Reason)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Code)

	require.NoError(t, s.Delete(context.Background(), "a"))
	assert.ErrorIs(t, s.Delete(context.Background(), "a"), ErrNotFound)
	assert.Len(t, s.List(), 1)
}

func TestService_LookupReturnsCopy(t *testing.T) {
	s := newTestPromotionService(t, Input{Code: "CAP", DiscountPercent: decimal.NewFromInt(5), Active: true, UsageLimit: intPtr(1)})

	p, _ := s.Lookup("cap")
	*p.UsageLimit = 100
	p.UsageCount = 50

	fresh, _ := s.Lookup("cap")
	assert.Equal(t, 1, *fresh.UsageLimit)
	assert.Equal(t, 0, fresh.UsageCount)
}

// ============================================
// Durability Tests
// ============================================

func TestService_RestoreFromEvents(t *testing.T) {
	eventStore := mocks.NewMockEventStore()
	ctx := context.Background()
	s := NewService().WithEventStore(eventStore)

	_, err := s.Create(ctx, Input{Code: "summer", DiscountPercent: decimal.NewFromInt(10), Active: true, UsageLimit: intPtr(3)})
	require.NoError(t, err)
	_, err = s.Create(ctx, Input{Code: "gone", DiscountPercent: decimal.NewFromInt(5), Active: true})
	require.NoError(t, err)
	_, err = s.IncrementUsage(ctx, "summer")
	require.NoError(t, err)
	_, err = s.IncrementUsage(ctx, "summer")
	require.NoError(t, err)
	_, err = s.SetActive(ctx, "summer", false)
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "gone"))

	assert.Equal(t, []string{
		EventPromoCreated, EventPromoUsageIncremented, EventPromoUsageIncremented, EventPromoActiveChanged,
		EventPromoCreated, EventPromoDeleted,
	}, eventTypes(eventStore.GetEventsByType(AggregateType)))

	restarted := NewService().WithEventStore(eventStore)
	n, err := restarted.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	p, err := restarted.Lookup("SUMMER")
	require.NoError(t, err)
	assert.Equal(t, 2, p.UsageCount)
	assert.False(t, p.Active)
	require.NotNil(t, p.UsageLimit)
	assert.Equal(t, 3, *p.UsageLimit)
	assert.True(t, p.DiscountPercent.Equal(decimal.NewFromInt(10)))

	_, err = restarted.Lookup("gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_FailedAppendChangesNothing(t *testing.T) {
	eventStore := mocks.NewMockEventStore()
	ctx := context.Background()
	s := NewService().WithEventStore(eventStore)
	_, err := s.Create(ctx, Input{Code: "VIP", DiscountPercent: decimal.NewFromInt(20), Active: true})
	require.NoError(t, err)

	eventStore.AppendErr = errors.New("db down")

	_, err = s.IncrementUsage(ctx, "vip")
	assert.Error(t, err)
	_, err = s.Create(ctx, Input{Code: "NEW", DiscountPercent: decimal.NewFromInt(5)})
	assert.Error(t, err)
	assert.Error(t, s.Delete(ctx, "vip"))

	p, err := s.Lookup("vip")
	require.NoError(t, err)
	assert.Equal(t, 0, p.UsageCount)
	_, err = s.Lookup("new")
	assert.ErrorIs(t, err, ErrNotFound)
}
