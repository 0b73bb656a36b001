// Package httptransport is the thin HTTP boundary over the governance core and
// the console services. Handlers decode, delegate and encode; authorization
// and validation live in the services.
package httptransport

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"backoffice/internal/audit"
	"backoffice/internal/console"
	"backoffice/internal/console/models"
	"backoffice/internal/decision"
	"backoffice/internal/events"
	"backoffice/internal/featureflag"
	"backoffice/internal/tenant"
)

// Authorizer answers authorization questions.
type Authorizer interface {
	Evaluate(user *tenant.UserContext, resource, action string, dctx decision.Context) decision.Decision
	RequiresReason(resource, action string) bool
	ExplainDecision(d decision.Decision) string
}

// FlagEvaluator reads and evaluates feature flags.
type FlagEvaluator interface {
	Flags() []featureflag.Flag
	Evaluate(flagID string, ec featureflag.EvalContext) featureflag.Result
}

// AuditSearcher queries the audit trail.
type AuditSearcher interface {
	Search(ctx context.Context, criteria audit.Criteria) ([]audit.Entry, error)
}

// DeadLetters exposes the event bus dead-letter queue, whole or per tenant.
type DeadLetters interface {
	DeadLetterQueue() []events.DeadLetter
	DeadLettersFor(tenantID string) []events.DeadLetter
	RetryDeadLetters(ctx context.Context) (retried, remaining int)
	RetryDeadLettersFor(ctx context.Context, tenantID string) (retried, remaining int)
}

// Console runs the backoffice operations.
type Console interface {
	CreatePayment(ctx context.Context, req console.CreatePaymentRequest) (*models.Payment, error)
	RefundPayment(ctx context.Context, req console.RefundPaymentRequest) (*models.Payment, error)
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	RegisterAccount(ctx context.Context, req console.RegisterAccountRequest) (*models.Account, error)
	BlockAccount(ctx context.Context, req console.AccountActionRequest) (*models.Account, error)
	UnblockAccount(ctx context.Context, req console.AccountActionRequest) (*models.Account, error)
	DeleteAccount(ctx context.Context, req console.AccountActionRequest) (*models.Account, error)
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	UpdateFlag(ctx context.Context, req console.UpdateFlagRequest) (featureflag.Flag, error)
}

// HealthCheck reports the health of one backing dependency.
type HealthCheck func(ctx context.Context) error

// Handler wires HTTP endpoints to the services.
type Handler struct {
	authz   Authorizer
	flags   FlagEvaluator
	audit   AuditSearcher
	dlq     DeadLetters
	console Console
	health  map[string]HealthCheck
	logger  *slog.Logger
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithHealthCheck adds a dependency probe to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) {
		h.health[name] = check
	}
}

func New(authz Authorizer, flags FlagEvaluator, auditor AuditSearcher, dlq DeadLetters, svc Console, opts ...Option) *Handler {
	h := &Handler{
		authz:   authz,
		flags:   flags,
		audit:   auditor,
		dlq:     dlq,
		console: svc,
		health:  make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every endpoint on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/authz/evaluate", h.handleEvaluate)
		v1.Get("/authz/requires-reason", h.handleRequiresReason)

		v1.Get("/flags", h.handleListFlags)
		v1.Get("/flags/{id}/evaluate", h.handleEvaluateFlag)
		v1.Patch("/flags/{id}", h.handleUpdateFlag)

		v1.Get("/audit", h.handleSearchAudit)

		v1.Get("/events/dead-letters", h.handleListDeadLetters)
		v1.Post("/events/dead-letters/retry", h.handleRetryDeadLetters)

		v1.Post("/payments", h.handleCreatePayment)
		v1.Get("/payments/{id}", h.handleGetPayment)
		v1.Post("/payments/{id}/refund", h.handleRefundPayment)

		v1.Post("/accounts", h.handleRegisterAccount)
		v1.Get("/accounts/{id}", h.handleGetAccount)
		v1.Post("/accounts/{id}/block", h.handleBlockAccount)
		v1.Post("/accounts/{id}/unblock", h.handleUnblockAccount)
		v1.Delete("/accounts/{id}", h.handleDeleteAccount)
	})
}
