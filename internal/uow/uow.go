// Package uow batches aggregate changes for one logical operation. Commit
// validates every new and changed aggregate, optionally persists the change
// set, then publishes pending domain events in registration order.
//
// Atomicity covers validation only. Writes a caller made through a
// repository before Commit are not undone when validation fails; use
// WithPersister so persistence runs only after validation succeeds.
// Aggregate versions are not compared against stored versions, concurrent
// commits on one aggregate are last-write-wins.
package uow

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"backoffice/internal/events"
	dErrors "backoffice/pkg/domain-errors"
)

// Kind is the registration set an aggregate belongs to.
type Kind string

const (
	KindNew     Kind = "new"
	KindChanged Kind = "changed"
	KindDeleted Kind = "deleted"
)

// Publisher delivers events. *events.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, e events.Event)
}

// ChangeSet is the registered aggregates of one commit, in registration order
// within each set.
type ChangeSet struct {
	New     []Aggregate
	Changed []Aggregate
	Deleted []Aggregate
}

// Empty reports whether nothing is registered.
func (c ChangeSet) Empty() bool {
	return len(c.New) == 0 && len(c.Changed) == 0 && len(c.Deleted) == 0
}

// Persister writes a validated change set.
type Persister interface {
	Persist(ctx context.Context, changes ChangeSet) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(ctx context.Context, changes ChangeSet) error

func (f PersisterFunc) Persist(ctx context.Context, changes ChangeSet) error {
	return f(ctx, changes)
}

type registration struct {
	kind      Kind
	aggregate Aggregate
}

// UnitOfWork is not safe for concurrent use; create one per operation.
type UnitOfWork struct {
	publisher     Publisher
	persister     Persister
	registrations []registration
	logger        *slog.Logger
	tracer        trace.Tracer
}

type Option func(*UnitOfWork)

// WithPersister runs p after validation and before publication.
func WithPersister(p Persister) Option {
	return func(u *UnitOfWork) {
		u.persister = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(u *UnitOfWork) {
		u.logger = logger
	}
}

func New(publisher Publisher, opts ...Option) *UnitOfWork {
	u := &UnitOfWork{
		publisher: publisher,
		tracer:    otel.Tracer("backoffice/internal/uow"),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *UnitOfWork) RegisterNew(a Aggregate) { u.register(KindNew, a) }
func (u *UnitOfWork) RegisterChanged(a Aggregate) { u.register(KindChanged, a) }
func (u *UnitOfWork) RegisterDeleted(a Aggregate) { u.register(KindDeleted, a) }

// register ignores an aggregate already present in the same set.
func (u *UnitOfWork) register(kind Kind, a Aggregate) {
	for _, r := range u.registrations {
		if r.kind == kind && sameAggregate(r.aggregate, a) {
			return
		}
	}
	u.registrations = append(u.registrations, registration{kind: kind, aggregate: a})
}

func sameAggregate(a, b Aggregate) bool {
	return a.AggregateType() == b.AggregateType() && a.AggregateID() == b.AggregateID()
}

// Registered returns the current change set.
func (u *UnitOfWork) Registered() ChangeSet {
	var cs ChangeSet
	for _, r := range u.registrations {
		switch r.kind {
		case KindNew:
			cs.New = append(cs.New, r.aggregate)
		case KindChanged:
			cs.Changed = append(cs.Changed, r.aggregate)
		case KindDeleted:
			cs.Deleted = append(cs.Deleted, r.aggregate)
		}
	}
	return cs
}

// Commit validates, persists and publishes. Registrations are cleared on
// every exit path. Handler failures never fail a commit; they are captured by
// the publisher.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	defer u.Rollback()

	ctx, span := u.tracer.Start(ctx, "uow.commit", trace.WithAttributes(
		attribute.Int("uow.registrations", len(u.registrations)),
	))
	defer span.End()

	for _, r := range u.registrations {
		if r.kind == KindDeleted {
			continue
		}
		if err := r.aggregate.Validate(); err != nil {
			span.SetStatus(codes.Error, "validation failed")
			return validationError(r.aggregate, err)
		}
	}

	if u.persister != nil {
		if err := u.persister.Persist(ctx, u.Registered()); err != nil {
			span.SetStatus(codes.Error, "persist failed")
			if dErrors.CodeOf(err) != dErrors.CodeInternal {
				return err
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist changes")
		}
	}

	published := 0
	for _, r := range u.registrations {
		for _, e := range r.aggregate.PendingEvents() {
			u.publisher.Publish(ctx, e)
			published++
		}
		r.aggregate.MarkEventsCommitted()
	}
	span.SetAttributes(attribute.Int("uow.events_published", published))

	if u.logger != nil {
		u.logger.DebugContext(ctx, "unit of work committed",
			"aggregates", len(u.registrations),
			"events", published,
		)
	}
	return nil
}

// Rollback discards every registration without publishing.
func (u *UnitOfWork) Rollback() {
	u.registrations = nil
}

func validationError(a Aggregate, err error) error {
	msg := fmt.Sprintf("%s %s failed validation", a.AggregateType(), a.AggregateID())
	if code := dErrors.CodeOf(err); code != dErrors.CodeInternal {
		return dErrors.New(code, msg+": "+dErrors.Message(err))
	}
	return dErrors.Wrap(err, dErrors.CodeInvalidArgument, msg)
}

type ctxKey struct{}

// WithContext carries u on ctx.
func WithContext(ctx context.Context, u *UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext returns the unit of work carried on ctx.
func FromContext(ctx context.Context) (*UnitOfWork, bool) {
	u, ok := ctx.Value(ctxKey{}).(*UnitOfWork)
	return u, ok && u != nil
}
