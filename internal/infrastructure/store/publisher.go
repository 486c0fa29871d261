package store

import (
	"context"
	"encoding/json"
	"errors"
	"log"
)

// ErrQueueFull is returned by AsyncHandler.Handle when its buffer is full
var ErrQueueFull = errors.New("event queue full")

// Publisher delivers appended events to subscribers (Kafka, WebSocket hub, local handlers)
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// EventHandler has the same shape as a Kafka message handler so that
// consumers can be fed either from Kafka or in-process.
type EventHandler func(ctx context.Context, key, value []byte) error

// Publishers fans one event out to several publishers
type Publishers []Publisher

func (ps Publishers) Publish(ctx context.Context, key string, event any) error {
	var errs []error
	for _, p := range ps {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, key, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LocalBus delivers events synchronously to in-process handlers.
// It is used when no broker is configured and in tests.
type LocalBus struct {
	handlers []EventHandler
}

func NewLocalBus(handlers ...EventHandler) *LocalBus {
	return &LocalBus{handlers: handlers}
}

// Subscribe registers another handler. Not safe to call while publishing.
func (b *LocalBus) Subscribe(h EventHandler) {
	b.handlers = append(b.handlers, h)
}

func (b *LocalBus) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error
	for _, h := range b.handlers {
		if err := h(ctx, []byte(key), data); err != nil {
			log.Printf("[LocalBus] Handler failed for key %s: %v", key, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type queuedEvent struct {
	key   []byte
	value []byte
}

// AsyncHandler runs a handler on its own goroutine. Handle only enqueues, so
// a slow subscriber such as the mailer never holds up Append.
type AsyncHandler struct {
	name    string
	handler EventHandler
	queue   chan queuedEvent
}

func NewAsyncHandler(name string, handler EventHandler, buffer int) *AsyncHandler {
	if buffer < 1 {
		buffer = 1
	}
	return &AsyncHandler{
		name:    name,
		handler: handler,
		queue:   make(chan queuedEvent, buffer),
	}
}

// Handle queues the event and returns at once. When the queue is full the
// event is dropped and ErrQueueFull returned.
func (a *AsyncHandler) Handle(ctx context.Context, key, value []byte) error {
	select {
	case a.queue <- queuedEvent{key: key, value: value}:
		return nil
	default:
		log.Printf("[%s] Queue full, dropping event for key %s", a.name, key)
		return ErrQueueFull
	}
}

// Run delivers queued events until ctx is done
func (a *AsyncHandler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.queue:
			if err := a.handler(ctx, ev.key, ev.value); err != nil {
				log.Printf("[%s] Handler failed for key %s: %v", a.name, ev.key, err)
			}
		}
	}
}
