package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Handler consumes one event. Handlers run on the publisher's goroutine;
// a handler that needs to wait for a future event must do so through a
// correlation waiter, never by blocking on the bus itself.
type Handler func(ctx context.Context, evt Event)

// Bus is a topic-based publish/subscribe channel. Delivery is
// synchronous and in registration order for each topic, which is what
// gives sagas their per-instance event ordering guarantee.
type Bus struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// New returns an empty bus. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger:   logger,
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for one event type. Subscription order is
// delivery order.
func (b *Bus) Subscribe(t EventType, h Handler) {
	if h == nil {
		return
	}

	b.mu.Lock()
	b.handlers[t] = append(b.handlers[t], h)
	b.mu.Unlock()

	b.logger.Debug("bus_subscribed", "event", string(t))
}

// Publish delivers evt to every subscriber of its type. OccurredOn is
// stamped when the caller left it zero. A panicking handler is recovered
// and logged; remaining subscribers still receive the event.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	if evt.OccurredOn.IsZero() {
		evt.OccurredOn = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[evt.Type]))
	copy(handlers, b.handlers[evt.Type])
	b.mu.RUnlock()

	b.logger.Debug("event_published",
		"event", string(evt.Type),
		"aggregate_id", evt.AggregateID,
		"handler_count", len(handlers),
	)

	for _, h := range handlers {
		b.deliver(ctx, h, evt)
	}
}

func (b *Bus) deliver(ctx context.Context, h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus_handler_panic",
				"event", string(evt.Type),
				"aggregate_id", evt.AggregateID,
				"panic", r,
			)
		}
	}()

	h(ctx, evt)
}
