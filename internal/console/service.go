// Package console implements the backoffice operations behind the admin
// console. Every mutating operation runs the same protocol: resolve the acting
// user, ask the decision service, enforce the reason policy, load the
// tenant-scoped aggregate, mutate it, commit through a unit of work and record
// the outcome in the audit trail.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"backoffice/internal/audit"
	"backoffice/internal/console/models"
	"backoffice/internal/decision"
	"backoffice/internal/featureflag"
	"backoffice/internal/tenant"
	"backoffice/internal/uow"
	dErrors "backoffice/pkg/domain-errors"
	"backoffice/pkg/platform/sentinel"
)

const (
	ResourcePayments     = "payments"
	ResourceAccounts     = "accounts"
	ResourceFeatureFlags = "feature_flags"
)

// Authorizer is the authorization decision service.
type Authorizer interface {
	Evaluate(user *tenant.UserContext, resource, action string, dctx decision.Context) decision.Decision
	ValidateReason(resource, action, reason string) error
	ExplainDecision(d decision.Decision) string
}

// AuditRecorder appends to the audit trail.
type AuditRecorder interface {
	Record(ctx context.Context, in audit.Input) (audit.Entry, error)
}

// FlagStore manages feature flag configuration.
type FlagStore interface {
	Flag(id string) (featureflag.Flag, bool)
	UpdateFlag(id string, update featureflag.FlagUpdate) (featureflag.Flag, error)
}

// PaymentStore persists payment aggregates.
type PaymentStore interface {
	Save(ctx context.Context, p *models.Payment) error
	FindByID(ctx context.Context, id string) (*models.Payment, error)
}

// AccountStore persists account aggregates.
type AccountStore interface {
	Save(ctx context.Context, a *models.Account) error
	FindByID(ctx context.Context, id string) (*models.Account, error)
	Delete(ctx context.Context, id string) error
}

// Service runs console operations against the governance core.
type Service struct {
	authz     Authorizer
	auditor   AuditRecorder
	flags     FlagStore
	payments  PaymentStore
	accounts  AccountStore
	publisher uow.Publisher
	logger    *slog.Logger
	newID     func() string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithIDGenerator overrides the uuid generator used for new aggregates.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New constructs a Service. All collaborators are required.
func New(authz Authorizer, auditor AuditRecorder, flags FlagStore, payments PaymentStore, accounts AccountStore, publisher uow.Publisher, opts ...Option) (*Service, error) {
	switch {
	case authz == nil:
		return nil, errors.New("authorizer is required")
	case auditor == nil:
		return nil, errors.New("audit recorder is required")
	case flags == nil:
		return nil, errors.New("flag store is required")
	case payments == nil:
		return nil, errors.New("payment store is required")
	case accounts == nil:
		return nil, errors.New("account store is required")
	case publisher == nil:
		return nil, errors.New("event publisher is required")
	}
	s := &Service{
		authz:     authz,
		auditor:   auditor,
		flags:     flags,
		payments:  payments,
		accounts:  accounts,
		publisher: publisher,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// operation describes one guarded call for authorization and auditing.
type operation struct {
	resource     string
	action       string
	resourceType string
	resourceID   string
	reason       string
	dctx         decision.Context
}

func (op operation) auditAction() string {
	return op.resourceType + "." + op.action
}

// authorize evaluates the decision and the reason policy. Denials are audited
// before FORBIDDEN is returned.
func (s *Service) authorize(ctx context.Context, user tenant.UserContext, op operation) error {
	d := s.authz.Evaluate(&user, op.resource, op.action, op.dctx)
	if !d.Allowed {
		explanation := s.authz.ExplainDecision(d)
		s.record(ctx, user, op, audit.StatusDenied, nil, nil, map[string]any{
			"decision": explanation,
		})
		return dErrors.New(dErrors.CodeForbidden, explanation)
	}
	return s.authz.ValidateReason(op.resource, op.action, op.reason)
}

// commit persists and publishes the registered aggregates. A failed commit is
// audited as failed and returned.
func (s *Service) commit(ctx context.Context, user tenant.UserContext, op operation, work *uow.UnitOfWork, before, after map[string]any) error {
	if err := work.Commit(ctx); err != nil {
		s.record(ctx, user, op, audit.StatusFailed, before, after, map[string]any{
			"error": dErrors.Message(err),
		})
		return err
	}
	s.record(ctx, user, op, audit.StatusSuccess, before, after, nil)
	return nil
}

// record appends an audit entry. Audit failures are logged and never fail the
// operation they describe.
func (s *Service) record(ctx context.Context, user tenant.UserContext, op operation, status string, before, after, metadata map[string]any) {
	_, err := s.auditor.Record(ctx, audit.Input{
		TenantID:     user.TenantID,
		Actor:        audit.ActorFrom(&user),
		Action:       op.auditAction(),
		ResourceType: op.resourceType,
		ResourceID:   op.resourceID,
		Before:       before,
		After:        after,
		Reason:       op.reason,
		Status:       status,
		Metadata:     metadata,
	})
	if err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to record audit entry",
			"action", op.auditAction(),
			"resource_id", op.resourceID,
			"error", err,
		)
	}
}

// newUnitOfWork returns a unit of work that persists through persist.
func (s *Service) newUnitOfWork(persist uow.PersisterFunc) *uow.UnitOfWork {
	return uow.New(s.publisher, uow.WithPersister(persist), uow.WithLogger(s.logger))
}

// translateStoreError maps storage failures onto the error taxonomy.
func translateStoreError(err error, what string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load "+what)
}

// snapshot renders v as a generic map for audit before/after values.
func snapshot(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
