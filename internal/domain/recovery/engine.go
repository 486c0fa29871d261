package recovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/example/parfum-commerce/internal/domain/cart"
	"github.com/example/parfum-commerce/internal/domain/order"
	"github.com/example/parfum-commerce/internal/infrastructure/store"
	"github.com/shopspring/decimal"
)

// Mailer delivers one recovery mail. stage is 1 for the first attempt.
type Mailer interface {
	SendRecoveryEmail(ctx context.Context, c Cart, stage int) error
}

var errNotDue = errors.New("no recovery mail due")

type Engine struct {
	mu         sync.RWMutex
	carts      map[string]*Cart
	cfg        Config
	mailer     Mailer
	eventStore store.EventStoreInterface
	now        func() time.Time
}

func NewEngine(cfg Config, mailer Mailer) *Engine {
	return &Engine{
		carts:  make(map[string]*Cart),
		cfg:    cfg,
		mailer: mailer,
		now:    time.Now,
	}
}

// WithEventStore makes mails sent and manual recoveries durable. The engine
// reads them back through HandleEvent.
func (e *Engine) WithEventStore(es store.EventStoreInterface) *Engine {
	e.eventStore = es
	return e
}

// record must not be called with e.mu held: a local bus delivers the event
// straight back to HandleEvent.
func (e *Engine) record(ctx context.Context, cartID, eventType string, data any) {
	if e.eventStore == nil {
		return
	}
	if _, err := e.eventStore.Append(ctx, StreamID(cartID), AggregateType, eventType, data); err != nil {
		log.Printf("[Recovery] Failed to record %s for %s: %v", eventType, cartID, err)
	}
}

// Track puts a cart under tracking as is, replacing any previous state
func (e *Engine) Track(c Cart) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp := c.clone()
	cp.recalculate()
	e.carts[c.CartID] = &cp
}

// HandleEvent consumes cart, order and recovery events. It has the shape of
// a broker message handler so it can be fed from Kafka or the local bus.
// Recovery events are applied idempotently since the engine also receives
// the ones it recorded itself.
func (e *Engine) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	switch event.EventType {
	case cart.EventItemAdded:
		var data cart.ItemAddedToCart
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		e.itemAdded(data, activityTime(data.AddedAt, event.Timestamp))
	case cart.EventItemRemoved:
		var data cart.ItemRemovedFromCart
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		e.itemRemoved(data, activityTime(data.RemovedAt, event.Timestamp))
	case cart.EventCartCleared:
		var data cart.CartCleared
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		e.cartCleared(data, activityTime(data.ClearedAt, event.Timestamp))
	case order.EventOrderPlaced:
		var data order.OrderPlaced
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		if data.CartID != "" {
			e.orderPlaced(data.CartID, data.OrderID, activityTime(data.PlacedAt, event.Timestamp))
		}
	case EventRecoveryEmailSent:
		var data RecoveryEmailSent
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		e.emailSent(data)
	case EventCartRecovered:
		var data CartMarkedRecovered
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return err
		}
		e.markedRecovered(data)
	}
	return nil
}

func activityTime(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}

func (e *Engine) itemAdded(data cart.ItemAddedToCart, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.carts[data.CartID]
	if !ok || c.Recovered {
		// a recovered cart that fills up again starts a new cycle
		c = &Cart{CartID: data.CartID, Items: make(map[string]Item)}
		e.carts[data.CartID] = c
	}
	c.UserID = data.UserID
	if data.Email != "" {
		c.Email = data.Email
	}
	item := c.Items[data.ProductID]
	item.ProductID = data.ProductID
	item.ProductName = data.ProductName
	item.Volume = data.Volume
	item.Quantity += data.Quantity
	item.Price = data.Price
	c.Items[data.ProductID] = item
	c.LastActivityAt = at
	c.recalculate()
}

func (e *Engine) itemRemoved(data cart.ItemRemovedFromCart, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.carts[data.CartID]
	if !ok || c.Recovered {
		return
	}
	delete(c.Items, data.ProductID)
	if len(c.Items) == 0 {
		delete(e.carts, data.CartID)
		return
	}
	c.LastActivityAt = at
	c.recalculate()
}

// cartCleared forgets an emptied cart. A checkout of an abandoned cart can
// arrive before its OrderPlaced, so that cart is flagged recovered here and
// the order id filled in once the order event shows up.
func (e *Engine) cartCleared(data cart.CartCleared, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.carts[data.CartID]
	if !ok || c.Recovered {
		return
	}
	if data.Reason == cart.ReasonCheckout && e.cfg.Classify(*c, at) != StatusActive {
		c.Recovered = true
		c.RecoveredAt = &at
		log.Printf("[Recovery] Cart %s checked out after %d attempts", data.CartID, c.AttemptsSent)
		return
	}
	delete(e.carts, data.CartID)
}

// orderPlaced stops abandonment tracking for the cart. A cart that had
// already been abandoned counts as recovered; one still in its grace window
// was never abandoned and is dropped.
func (e *Engine) orderPlaced(cartID, orderID string, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.carts[cartID]
	if !ok {
		return
	}
	if c.Recovered {
		if c.OrderID == "" {
			c.OrderID = orderID
		}
		return
	}
	if e.cfg.Classify(*c, at) == StatusActive {
		delete(e.carts, cartID)
		return
	}
	c.Recovered = true
	c.RecoveredAt = &at
	c.OrderID = orderID
	log.Printf("[Recovery] Cart %s recovered by order %s after %d attempts", cartID, orderID, c.AttemptsSent)
}

func (e *Engine) emailSent(data RecoveryEmailSent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.carts[data.CartID]
	if !ok || c.Recovered || data.Attempt <= c.AttemptsSent {
		return
	}
	c.AttemptsSent = data.Attempt
	c.Attempts = append(c.Attempts, data.SentAt)
}

func (e *Engine) markedRecovered(data CartMarkedRecovered) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.carts[data.CartID]
	if !ok || c.Recovered {
		return
	}
	at := data.RecoveredAt
	c.Recovered = true
	c.RecoveredAt = &at
	c.OrderID = data.OrderID
}

// MarkRecovered flags a cart recovered. Calling it again changes nothing.
func (e *Engine) MarkRecovered(ctx context.Context, cartID, orderID string) (*CartView, error) {
	now := e.now()

	e.mu.Lock()
	c, ok := e.carts[cartID]
	if !ok {
		e.mu.Unlock()
		return nil, ErrNotFound
	}
	changed := !c.Recovered
	if changed {
		c.Recovered = true
		c.RecoveredAt = &now
		c.OrderID = orderID
	}
	view := e.view(c, now)
	e.mu.Unlock()

	if changed {
		e.record(ctx, cartID, EventCartRecovered, CartMarkedRecovered{
			CartID:      cartID,
			OrderID:     orderID,
			RecoveredAt: now,
		})
	}
	return view, nil
}

// SendRecoveryEmail counts one attempt and then mails the customer. A failed
// delivery is logged and the attempt still counts.
func (e *Engine) SendRecoveryEmail(ctx context.Context, cartID string) (*CartView, error) {
	return e.send(ctx, cartID, false)
}

// send mails the next stage. With onlyIfDue the stage is checked again under
// the lock, so a mail sent in the meantime is not followed by another one.
func (e *Engine) send(ctx context.Context, cartID string, onlyIfDue bool) (*CartView, error) {
	now := e.now()

	e.mu.Lock()
	c, ok := e.carts[cartID]
	if !ok {
		e.mu.Unlock()
		return nil, ErrNotFound
	}
	if c.Recovered {
		e.mu.Unlock()
		return nil, ErrAlreadyRecovered
	}
	if onlyIfDue && !e.isDue(c, now) {
		e.mu.Unlock()
		return nil, errNotDue
	}
	c.AttemptsSent++
	c.Attempts = append(c.Attempts, now)
	snapshot := c.clone()
	view := e.view(c, now)
	e.mu.Unlock()

	e.record(ctx, cartID, EventRecoveryEmailSent, RecoveryEmailSent{
		CartID:  cartID,
		Attempt: snapshot.AttemptsSent,
		SentAt:  now,
	})

	if e.mailer != nil {
		if err := e.mailer.SendRecoveryEmail(ctx, snapshot, snapshot.AttemptsSent); err != nil {
			log.Printf("[Recovery] Failed to mail cart %s (attempt %d): %v", cartID, snapshot.AttemptsSent, err)
		}
	}
	return view, nil
}

func (e *Engine) view(c *Cart, now time.Time) *CartView {
	return &CartView{
		Cart:        c.clone(),
		Status:      e.cfg.Classify(*c, now),
		InactiveFor: now.Sub(c.LastActivityAt),
	}
}

func (e *Engine) Get(cartID string, now time.Time) (*CartView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	c, ok := e.carts[cartID]
	if !ok {
		return nil, ErrNotFound
	}
	return e.view(c, now), nil
}

// GetFilteredCarts lists abandoned carts matching filter, longest inactive
// first. Carts still in their grace window are never listed.
func (e *Engine) GetFilteredCarts(filter Filter, now time.Time) []CartView {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var result []CartView
	for _, c := range e.carts {
		v := e.view(c, now)
		if v.Status == StatusActive {
			continue
		}
		if filter != FilterAll && string(v.Status) != string(filter) {
			continue
		}
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastActivityAt.Equal(result[j].LastActivityAt) {
			return result[i].LastActivityAt.Before(result[j].LastActivityAt)
		}
		return result[i].CartID < result[j].CartID
	})
	return result
}

// GetStatistics summarizes abandoned and recovered carts at now
func (e *Engine) GetStatistics(now time.Time) Statistics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := Statistics{TotalValue: decimal.Zero, RecoveredValue: decimal.Zero}
	attempts := 0
	for _, c := range e.carts {
		switch e.cfg.Classify(*c, now) {
		case StatusActive:
			continue
		case StatusPending:
			stats.Pending++
			stats.TotalValue = stats.TotalValue.Add(c.TotalValue)
		case StatusUrgent:
			stats.Urgent++
			stats.TotalValue = stats.TotalValue.Add(c.TotalValue)
		case StatusRecovered:
			stats.Recovered++
			stats.RecoveredValue = stats.RecoveredValue.Add(c.TotalValue)
		}
		stats.TotalCarts++
		attempts += c.AttemptsSent
	}
	stats.Abandoned = stats.Pending + stats.Urgent
	if stats.TotalCarts > 0 {
		stats.AverageAttempts = float64(attempts) / float64(stats.TotalCarts)
		stats.RecoveryRate = float64(stats.Recovered) / float64(stats.TotalCarts) * 100
	}
	return stats
}

// ProcessDue sends every recovery mail whose stage is due at now and returns
// how many were sent. Stage n is due once the cart has had n-1 mails and has
// been inactive for Stages[n-1].
func (e *Engine) ProcessDue(ctx context.Context, now time.Time) int {
	e.mu.RLock()
	var due []string
	for id, c := range e.carts {
		if e.isDue(c, now) {
			due = append(due, id)
		}
	}
	e.mu.RUnlock()
	sort.Strings(due)

	sent := 0
	for _, id := range due {
		if _, err := e.send(ctx, id, true); err != nil {
			log.Printf("[Recovery] Skipping cart %s: %v", id, err)
			continue
		}
		sent++
	}
	return sent
}

func (e *Engine) isDue(c *Cart, now time.Time) bool {
	if c.Recovered || c.AttemptsSent >= len(e.cfg.Stages) {
		return false
	}
	if e.cfg.Classify(*c, now) == StatusActive {
		return false
	}
	return now.Sub(c.LastActivityAt) >= e.cfg.Stages[c.AttemptsSent]
}

// Run calls ProcessDue every interval until ctx is done
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[Recovery] Sweeper started (interval %s)", interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[Recovery] Sweeper stopped")
			return
		case <-ticker.C:
			if n := e.ProcessDue(ctx, e.now()); n > 0 {
				log.Printf("[Recovery] Sent %d recovery emails", n)
			}
		}
	}
}
