package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"backoffice/internal/events/metrics"
	"backoffice/pkg/requestcontext"
)

// DefaultHistoryLimit bounds the in-memory event history.
const DefaultHistoryLimit = 1000

// Handler reacts to a published event. A returned error or a panic is
// captured as a dead letter and never reaches the publisher.
type Handler func(ctx context.Context, e Event) error

// SubscriptionID identifies one Subscribe call.
type SubscriptionID uint64

// DeadLetter is a failed delivery kept for inspection and explicit retry.
type DeadLetter struct {
	Event        Event
	Subscription SubscriptionID
	Err          error
	FailedAt     time.Time
	Attempts     int
}

type subscription struct {
	id      SubscriptionID
	name    string
	handler Handler
}

// Bus dispatches events to subscribers sequentially, in subscription order.
// Subscribers to AllEvents run after the handlers for the event's name.
type Bus struct {
	mu           sync.Mutex
	nextID       SubscriptionID
	handlers     map[string][]subscription
	history      []Event
	historyLimit int
	deadLetters  []DeadLetter

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Bus)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bus) {
		b.metrics = m
	}
}

// WithHistoryLimit caps the retained history. Non-positive values keep the
// default.
func WithHistoryLimit(limit int) Option {
	return func(b *Bus) {
		if limit > 0 {
			b.historyLimit = limit
		}
	}
}

func NewBus(opts ...Option) *Bus {
	b := &Bus{
		handlers:     make(map[string][]subscription),
		historyLimit: DefaultHistoryLimit,
		tracer:       otel.Tracer("backoffice/internal/events"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for events named name, or AllEvents.
func (b *Bus) Subscribe(name string, handler Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[name] = append(b.handlers[name], subscription{id: b.nextID, name: name, handler: handler})
	return b.nextID
}

// Unsubscribe removes a subscription. It reports whether one was removed.
func (b *Bus) Unsubscribe(id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for name, subs := range b.handlers {
		for i, sub := range subs {
			if sub.id == id {
				b.handlers[name] = append(subs[:i:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Publish records e in history and runs every matching handler, awaiting
// each before the next. Handler failures are dead-lettered.
func (b *Bus) Publish(ctx context.Context, e Event) {
	ctx, span := b.tracer.Start(ctx, "events.publish", trace.WithAttributes(
		attribute.String("event.name", e.Name()),
		attribute.String("event.id", e.ID),
		attribute.String("aggregate.id", e.AggregateID),
	))
	defer span.End()

	b.mu.Lock()
	b.history = append(b.history, e)
	if over := len(b.history) - b.historyLimit; over > 0 {
		b.history = append([]Event(nil), b.history[over:]...)
	}
	subs := make([]subscription, 0, len(b.handlers[e.Name()])+len(b.handlers[AllEvents]))
	subs = append(subs, b.handlers[e.Name()]...)
	if e.Name() != AllEvents {
		subs = append(subs, b.handlers[AllEvents]...)
	}
	b.mu.Unlock()

	b.metrics.IncrementPublished(e.Name())

	failures := 0
	for _, sub := range subs {
		if err := invoke(ctx, sub.handler, e); err != nil {
			failures++
			b.deadLetter(ctx, e, sub.id, err, 1)
		}
	}
	if failures > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d handler(s) failed", failures))
	}
}

// PublishMultiple publishes events in slice order.
func (b *Bus) PublishMultiple(ctx context.Context, events []Event) {
	for _, e := range events {
		b.Publish(ctx, e)
	}
}

// History returns a copy of the retained events, oldest first.
func (b *Bus) History() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.history...)
}

// DeadLetterQueue returns a copy of the failed deliveries.
func (b *Bus) DeadLetterQueue() []DeadLetter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]DeadLetter(nil), b.deadLetters...)
}

// DrainDeadLetters removes and returns every dead letter.
func (b *Bus) DrainDeadLetters() []DeadLetter {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.deadLetters
	b.deadLetters = nil
	b.metrics.SetDeadLetters(0)
	return out
}

// DeadLettersFor returns a copy of the failed deliveries of tenantID's events.
func (b *Bus) DeadLettersFor(tenantID string) []DeadLetter {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []DeadLetter
	for _, dl := range b.deadLetters {
		if dl.Event.TenantID == tenantID {
			out = append(out, dl)
		}
	}
	return out
}

// RetryDeadLetters re-invokes the failing subscription once per dead letter.
// Successful deliveries leave the queue; failures are re-queued with an
// incremented attempt count. Letters whose subscription no longer exists stay
// queued untouched.
func (b *Bus) RetryDeadLetters(ctx context.Context) (retried, remaining int) {
	return b.retryWhere(ctx, func(DeadLetter) bool { return true })
}

// RetryDeadLettersFor is RetryDeadLetters restricted to tenantID's events.
// remaining counts only that tenant's letters; other letters stay queued.
func (b *Bus) RetryDeadLettersFor(ctx context.Context, tenantID string) (retried, remaining int) {
	return b.retryWhere(ctx, func(dl DeadLetter) bool { return dl.Event.TenantID == tenantID })
}

func (b *Bus) retryWhere(ctx context.Context, match func(DeadLetter) bool) (retried, remaining int) {
	b.mu.Lock()
	pending := b.deadLetters
	b.deadLetters = nil
	b.mu.Unlock()

	for _, dl := range pending {
		if !match(dl) {
			b.requeue(dl)
			continue
		}
		handler, ok := b.handler(dl.Subscription)
		if !ok {
			b.requeue(dl)
			continue
		}
		if err := invoke(ctx, handler, dl.Event); err != nil {
			b.deadLetter(ctx, dl.Event, dl.Subscription, err, dl.Attempts+1)
			continue
		}
		retried++
	}

	b.mu.Lock()
	for _, dl := range b.deadLetters {
		if match(dl) {
			remaining++
		}
	}
	b.metrics.SetDeadLetters(len(b.deadLetters))
	b.mu.Unlock()
	return retried, remaining
}

func (b *Bus) handler(id SubscriptionID) (Handler, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.handlers {
		for _, sub := range subs {
			if sub.id == id {
				return sub.handler, true
			}
		}
	}
	return nil, false
}

func (b *Bus) requeue(dl DeadLetter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deadLetters = append(b.deadLetters, dl)
}

func (b *Bus) deadLetter(ctx context.Context, e Event, id SubscriptionID, err error, attempts int) {
	dl := DeadLetter{
		Event:        e,
		Subscription: id,
		Err:          err,
		FailedAt:     requestcontext.Now(ctx),
		Attempts:     attempts,
	}
	b.mu.Lock()
	b.deadLetters = append(b.deadLetters, dl)
	size := len(b.deadLetters)
	b.mu.Unlock()

	b.metrics.IncrementHandlerFailure(e.Name())
	b.metrics.SetDeadLetters(size)
	trace.SpanFromContext(ctx).RecordError(err, trace.WithAttributes(
		attribute.Int64("subscription.id", int64(id)),
	))
	if b.logger != nil {
		b.logger.WarnContext(ctx, "event handler failed",
			"event_name", e.Name(),
			"event_id", e.ID,
			"subscription_id", uint64(id),
			"attempts", attempts,
			"error", err,
		)
	}
}

func invoke(ctx context.Context, h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, e)
}
