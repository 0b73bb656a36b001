package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"backoffice/internal/audit/metrics"
	"backoffice/internal/tenant"
	dErrors "backoffice/pkg/domain-errors"
	"backoffice/pkg/requestcontext"
)

// Trail is the append-only audit log. It assigns identity and time, snapshots
// inputs and delegates storage.
type Trail struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	newID   func() string
}

type Option func(*Trail)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Trail) {
		t.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Trail) {
		t.metrics = m
	}
}

// WithIDGenerator overrides uuid generation, for deterministic tests.
func WithIDGenerator(fn func() string) Option {
	return func(t *Trail) {
		if fn != nil {
			t.newID = fn
		}
	}
}

func NewTrail(store Store, opts ...Option) *Trail {
	t := &Trail{
		store: store,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record appends a new entry. The tenant and correlation id default to the
// values on ctx; the diff is computed when both snapshots are supplied and
// none was given.
func (t *Trail) Record(ctx context.Context, in Input) (Entry, error) {
	if in.Action == "" {
		return Entry{}, dErrors.New(dErrors.CodeInvalidArgument, "audit action is required")
	}

	entry := Entry{
		ID:            t.newID(),
		Timestamp:     requestcontext.Now(ctx),
		TenantID:      in.TenantID,
		Actor:         in.Actor,
		Action:        in.Action,
		ResourceType:  in.ResourceType,
		ResourceID:    in.ResourceID,
		Before:        CopyMap(in.Before),
		After:         CopyMap(in.After),
		Reason:        in.Reason,
		Status:        in.Status,
		CorrelationID: in.CorrelationID,
		Metadata:      CopyMap(in.Metadata),
	}
	if entry.TenantID == "" {
		if info, ok := tenant.TenantFrom(ctx); ok {
			entry.TenantID = info.ID
		}
	}
	if entry.CorrelationID == "" {
		entry.CorrelationID = requestcontext.CorrelationID(ctx)
	}
	if entry.Status == "" {
		entry.Status = StatusSuccess
	}
	switch {
	case in.Diff != nil:
		d := in.Diff.clone()
		entry.Diff = &d
	case in.Before != nil && in.After != nil:
		d := GenerateDiff(in.Before, in.After)
		entry.Diff = &d
	}

	if err := t.store.Append(ctx, entry.Clone()); err != nil {
		return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit entry")
	}

	t.metrics.IncrementRecorded(entry.Action, entry.Status)
	if t.logger != nil {
		t.logger.InfoContext(ctx, entry.Action,
			"log_type", "audit",
			"audit_id", entry.ID,
			"tenant_id", entry.TenantID,
			"actor_id", entry.Actor.UserID,
			"resource_type", entry.ResourceType,
			"resource_id", entry.ResourceID,
			"status", entry.Status,
			"request_id", requestcontext.RequestID(ctx),
			"correlation_id", entry.CorrelationID,
		)
	}
	return entry, nil
}

// FindByTenant returns entries recorded under tenantID. Use GlobalTenant for
// entries recorded without a tenant.
func (t *Trail) FindByTenant(ctx context.Context, tenantID string) ([]Entry, error) {
	return t.Search(ctx, Criteria{TenantID: IndexKey(tenantID)})
}

// FindByResource returns entries about one resource.
func (t *Trail) FindByResource(ctx context.Context, resourceType, resourceID string) ([]Entry, error) {
	if resourceType == "" {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "resource type is required")
	}
	return t.Search(ctx, Criteria{ResourceType: resourceType, ResourceID: resourceID})
}

// FindByActor returns entries recorded for a user id.
func (t *Trail) FindByActor(ctx context.Context, userID string) ([]Entry, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "actor id is required")
	}
	return t.Search(ctx, Criteria{ActorID: userID})
}

// FindByAction returns entries with the given action.
func (t *Trail) FindByAction(ctx context.Context, action string) ([]Entry, error) {
	if action == "" {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "action is required")
	}
	return t.Search(ctx, Criteria{Action: action})
}

// FindByDateRange returns entries with timestamps in [from, to].
func (t *Trail) FindByDateRange(ctx context.Context, from, to time.Time) ([]Entry, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "range end is before range start")
	}
	return t.Search(ctx, Criteria{From: from, To: to})
}

// Search returns entries matching criteria in recording order.
func (t *Trail) Search(ctx context.Context, criteria Criteria) ([]Entry, error) {
	if criteria.Offset < 0 || criteria.Limit < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "offset and limit must not be negative")
	}
	entries, err := t.store.Search(ctx, criteria)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search audit entries")
	}
	return entries, nil
}
