// Package messaging implements the in-process event bus. Progress mutations
// and sync transitions publish domain events here; UI adapters, the progress
// projection and tests consume them through subscriptions.
package messaging

import (
	"errors"
	"sync"
	"time"

	"github.com/owlet-learn/owlet-core/internal/domain/shared"
	"github.com/owlet-learn/owlet-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBus delivers events synchronously on the publisher's
// goroutine, in subscription order. A panicking handler is isolated: it is
// logged and the remaining handlers still run. Synchronous delivery keeps
// UI-facing listeners ordered with the state changes that triggered them.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler
	logger      *logger.Logger
	metrics     *EventBusMetrics
	closed      bool
}

// InMemoryEventBusConfig contains configuration for InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// Logger for structured logging
	Logger *logger.Logger

	// EnableMetrics enables delivery metrics collection
	EnableMetrics bool
}

// DefaultInMemoryEventBusConfig returns sensible defaults.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		EnableMetrics: true,
	}
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = logger.Default()
	}

	bus := &InMemoryEventBus{
		handlers:    make(map[shared.EventType][]shared.EventHandler),
		allHandlers: make([]shared.EventHandler, 0),
		logger:      config.Logger.With(logger.Component("event_bus")),
	}

	if config.EnableMetrics {
		bus.metrics = NewEventBusMetrics()
	}

	return bus
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("subscribed handler", logger.String("event_type", string(eventType)))

	return nil
}

// SubscribeAll registers a handler for all events.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.allHandlers = append(b.allHandlers, handler)
	b.logger.Debug("subscribed global handler")

	return nil
}

// Publish delivers an event to all subscribed handlers, typed handlers
// first. Delivery is synchronous; Publish returns after the last handler.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}

	handlers := make([]shared.EventHandler, 0, len(b.handlers[event.EventType()])+len(b.allHandlers))
	handlers = append(handlers, b.handlers[event.EventType()]...)
	handlers = append(handlers, b.allHandlers...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	if b.metrics != nil {
		b.metrics.RecordPublish(event.EventType())
	}

	for _, handler := range handlers {
		b.invoke(event, handler)
	}

	return nil
}

// invoke runs one handler with panic isolation.
func (b *InMemoryEventBus) invoke(event shared.Event, handler shared.EventHandler) {
	start := time.Now()
	panicked := false

	func() {
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				b.logger.Error("event handler panicked",
					logger.String("event_type", string(event.EventType())),
					logger.Any("panic", r))
			}
		}()
		handler(event)
	}()

	if b.metrics != nil {
		b.metrics.RecordDelivery(event.EventType(), time.Since(start), !panicked)
	}
}

// Metrics returns the current metrics, or nil when disabled.
func (b *InMemoryEventBus) Metrics() *EventBusMetrics {
	return b.metrics
}

// Close stops the bus. Further publishes and subscriptions are rejected.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	b.logger.Debug("event bus closed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics tracks publish and delivery counters.
type EventBusMetrics struct {
	mu sync.RWMutex

	PublishedTotal map[shared.EventType]int64

	Deliveries        int64
	DeliveryPanics    int64
	DeliveryTotalTime time.Duration
	DeliveriesByType  map[shared.EventType]int64
}

// NewEventBusMetrics creates a new metrics tracker.
func NewEventBusMetrics() *EventBusMetrics {
	return &EventBusMetrics{
		PublishedTotal:   make(map[shared.EventType]int64),
		DeliveriesByType: make(map[shared.EventType]int64),
	}
}

// RecordPublish records a published event.
func (m *EventBusMetrics) RecordPublish(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PublishedTotal[eventType]++
}

// RecordDelivery records one handler invocation.
func (m *EventBusMetrics) RecordDelivery(eventType shared.EventType, duration time.Duration, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Deliveries++
	m.DeliveryTotalTime += duration
	m.DeliveriesByType[eventType]++
	if !ok {
		m.DeliveryPanics++
	}
}

// Snapshot returns a point-in-time copy of the counters.
func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var published int64
	for _, v := range m.PublishedTotal {
		published += v
	}

	avg := time.Duration(0)
	if m.Deliveries > 0 {
		avg = m.DeliveryTotalTime / time.Duration(m.Deliveries)
	}

	return EventBusMetricsSnapshot{
		TotalPublished:      published,
		TotalDeliveries:     m.Deliveries,
		DeliveryPanics:      m.DeliveryPanics,
		AverageDeliveryTime: avg,
	}
}

// EventBusMetricsSnapshot is a point-in-time snapshot of metrics.
type EventBusMetricsSnapshot struct {
	TotalPublished      int64
	TotalDeliveries     int64
	DeliveryPanics      int64
	AverageDeliveryTime time.Duration
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrEventBusClosed is returned when operations are attempted on a closed bus.
	ErrEventBusClosed = errors.New("event bus is closed")
)
