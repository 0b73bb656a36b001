// Package kafka forwards domain events from the in-process bus to a Kafka
// topic. A failed produce is returned to the bus and becomes a dead letter
// like any other handler failure.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"backoffice/internal/events"
)

// Record headers set on every forwarded event.
const (
	HeaderEventName     = "event-name"
	HeaderCorrelationID = "correlation-id"
	HeaderTenantID      = "tenant-id"
)

// Producer is the subset of *kgo.Client the forwarder needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Forwarder produces each event as JSON keyed by aggregate id, so events of
// one aggregate stay ordered within a partition.
type Forwarder struct {
	producer Producer
	topic    string
	logger   *slog.Logger
}

type Option func(*Forwarder)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

func NewForwarder(producer Producer, topic string, opts ...Option) *Forwarder {
	f := &Forwarder{producer: producer, topic: topic}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Attach subscribes the forwarder to every event on bus.
func (f *Forwarder) Attach(bus *events.Bus) events.SubscriptionID {
	return bus.Subscribe(events.AllEvents, f.Handle)
}

// Handle produces e synchronously.
func (f *Forwarder) Handle(ctx context.Context, e events.Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.ID, err)
	}
	rec := &kgo.Record{
		Topic: f.topic,
		Key:   []byte(e.AggregateID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: HeaderEventName, Value: []byte(e.Name())},
			{Key: HeaderCorrelationID, Value: []byte(e.CorrelationID)},
			{Key: HeaderTenantID, Value: []byte(e.TenantID)},
		},
	}
	if err := f.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce event %s to %s: %w", e.ID, f.topic, err)
	}
	if f.logger != nil {
		f.logger.DebugContext(ctx, "event forwarded",
			"event_name", e.Name(),
			"event_id", e.ID,
			"topic", f.topic,
		)
	}
	return nil
}

// EnsureTopic creates topic when it does not exist yet.
func EnsureTopic(ctx context.Context, admin *kadm.Client, topic string, partitions int32, replicationFactor int16) error {
	resp, err := admin.CreateTopic(ctx, partitions, replicationFactor, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}
