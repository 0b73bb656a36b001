package uow

import (
	"context"

	"backoffice/internal/events"
)

// Identity names an aggregate.
type Identity interface {
	AggregateID() string
	AggregateType() string
}

// Versioned exposes the aggregate's version counter.
type Versioned interface {
	Version() int
}

// EventSource holds domain events not yet published.
type EventSource interface {
	PendingEvents() []events.Event
	MarkEventsCommitted()
}

// Validator checks aggregate invariants before commit.
type Validator interface {
	Validate() error
}

// Aggregate is everything a unit of work needs from a transactional unit.
type Aggregate interface {
	Identity
	Versioned
	EventSource
	Validator
}

// Root is embedded by aggregates to provide identity, versioning and event
// recording. Its exported fields serialise alongside the aggregate's own.
//
// Invariants:
//   - Revision only moves forward, through BumpVersion
//   - pending events are cleared only by MarkEventsCommitted
type Root struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Revision int    `json:"version"`

	pending []events.Event
}

// NewRoot starts a root at version 0.
func NewRoot(id, aggregateType string) Root {
	return Root{ID: id, Type: aggregateType}
}

func (r *Root) AggregateID() string { return r.ID }
func (r *Root) AggregateType() string { return r.Type }
func (r *Root) Version() int { return r.Revision }

// BumpVersion advances the version. Call it once per validated state change,
// before recording the change's events.
func (r *Root) BumpVersion() {
	r.Revision++
}

// Record appends a pending event stamped with the current version.
func (r *Root) Record(ctx context.Context, payload events.Payload) events.Event {
	e := events.New(ctx, events.Source{ID: r.ID, Type: r.Type}, r.Revision, payload)
	r.pending = append(r.pending, e)
	return e
}

// PendingEvents returns a copy of the unpublished events.
func (r *Root) PendingEvents() []events.Event {
	return append([]events.Event(nil), r.pending...)
}

// MarkEventsCommitted clears the pending events.
func (r *Root) MarkEventsCommitted() {
	r.pending = nil
}
