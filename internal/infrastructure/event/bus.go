// Package event delivers domain events to in-process subscribers.
// Delivery is synchronous in publish order; a failing subscriber never
// blocks the others and never fails the write that produced the event.
package event

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vsla/backend/internal/domain/shared"
)

// InProcBus is a process-local shared.EventBus. Handlers registered for
// named types receive only those types; handlers registered with no types
// receive everything.
type InProcBus struct {
	logger  *zap.Logger
	stopped atomic.Bool

	mu       sync.RWMutex
	byType   map[string][]shared.EventHandler
	catchAll []shared.EventHandler
}

// NewInProcBus creates an empty bus
func NewInProcBus(logger *zap.Logger) *InProcBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InProcBus{
		logger: logger,
		byType: make(map[string][]shared.EventHandler),
	}
}

var _ shared.EventBus = (*InProcBus)(nil)

// Subscribe registers a handler. Without explicit types the handler's own
// EventTypes decide; an empty answer there subscribes it to everything.
func (b *InProcBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(eventTypes) == 0 {
		b.catchAll = append(b.catchAll, handler)
	}
	for _, eventType := range eventTypes {
		b.byType[eventType] = append(b.byType[eventType], handler)
	}
	b.logger.Debug("event subscriber registered",
		zap.Strings("event_types", eventTypes))
}

// Unsubscribe drops the handler from every subscription list
func (b *InProcBus) Unsubscribe(handler shared.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.catchAll = without(b.catchAll, handler)
	for eventType, handlers := range b.byType {
		kept := without(handlers, handler)
		if len(kept) == 0 {
			delete(b.byType, eventType)
			continue
		}
		b.byType[eventType] = kept
	}
}

// Publish hands each event to its subscribers in registration order.
// Subscriber errors and panics are logged and swallowed.
func (b *InProcBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if b.stopped.Load() {
		b.logger.Warn("event bus stopped, dropping events",
			zap.Int("count", len(events)))
		return nil
	}
	for _, ev := range events {
		for _, handler := range b.subscribersFor(ev.EventType()) {
			b.deliver(ctx, handler, ev)
		}
	}
	return nil
}

// Start marks the bus ready to accept events
func (b *InProcBus) Start(ctx context.Context) error {
	b.stopped.Store(false)
	b.logger.Info("event bus started")
	return nil
}

// Stop makes further publishes no-ops. Events already being delivered
// finish on the publisher's goroutine.
func (b *InProcBus) Stop(ctx context.Context) error {
	b.stopped.Store(true)
	b.logger.Info("event bus stopped")
	return nil
}

func (b *InProcBus) subscribersFor(eventType string) []shared.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	typed := b.byType[eventType]
	out := make([]shared.EventHandler, 0, len(typed)+len(b.catchAll))
	out = append(out, typed...)
	return append(out, b.catchAll...)
}

func (b *InProcBus) deliver(ctx context.Context, handler shared.EventHandler, ev shared.DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked",
				zap.String("event_type", ev.EventType()),
				zap.Any("panic", r))
		}
	}()

	if err := handler.Handle(ctx, ev); err != nil {
		b.logger.Error("event subscriber failed",
			zap.String("event_type", ev.EventType()),
			zap.String("event_id", ev.EventID().String()),
			zap.Error(err))
	}
}

func without(handlers []shared.EventHandler, drop shared.EventHandler) []shared.EventHandler {
	kept := make([]shared.EventHandler, 0, len(handlers))
	for _, h := range handlers {
		if h != drop {
			kept = append(kept, h)
		}
	}
	return kept
}
