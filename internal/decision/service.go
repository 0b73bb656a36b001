package decision

import (
	"log/slog"
	"strings"
	"time"

	"backoffice/internal/decision/metrics"
	"backoffice/internal/policy"
	"backoffice/internal/tenant"
	dErrors "backoffice/pkg/domain-errors"
)

// PermissionSource resolves a role's permission list (the RBAC engine).
type PermissionSource interface {
	Permissions(roleID string) []tenant.Permission
}

// PolicyEvaluator evaluates attribute rules (the ABAC engine).
type PolicyEvaluator interface {
	HasRules(resource, action string) bool
	Evaluate(resource, action string, attributes map[string]any, role string) policy.Decision
}

// Service composes RBAC permissions, ABAC policies and the reason-required
// policy into a single authorization decision.
type Service struct {
	superAdminRole string
	permissions    PermissionSource
	policies       PolicyEvaluator
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithSuperAdminRole(role string) Option {
	return func(s *Service) {
		if role != "" {
			s.superAdminRole = role
		}
	}
}

// WithPermissionSource resolves permissions for users that arrive without an
// explicit permission list.
func WithPermissionSource(src PermissionSource) Option {
	return func(s *Service) {
		s.permissions = src
	}
}

// WithPolicyEngine checks RBAC-allowed decisions against ABAC rules whenever
// rules exist for the resource and action.
func WithPolicyEngine(p PolicyEvaluator) Option {
	return func(s *Service) {
		s.policies = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(opts ...Option) *Service {
	s := &Service{superAdminRole: DefaultSuperAdminRole}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SuperAdminRole returns the role that bypasses all checks.
func (s *Service) SuperAdminRole() string {
	return s.superAdminRole
}

// Evaluate decides whether user may perform action on resource.
func (s *Service) Evaluate(user *tenant.UserContext, resource, action string, dctx Context) Decision {
	start := time.Now()

	var perms []tenant.Permission
	if user != nil {
		perms = user.Permissions
		if len(perms) == 0 && s.permissions != nil {
			perms = s.permissions.Permissions(user.Role)
		}
	}

	d := EvaluatePermissions(user, perms, resource, action, dctx, s.superAdminRole)
	if d.Allowed && !d.SuperAdminBypass && s.policies != nil && s.policies.HasRules(resource, action) {
		d = s.applyPolicies(d, user, dctx)
	}

	s.metrics.IncrementOutcome(d.Outcome(), resource)
	s.metrics.ObserveEvaluateLatency(time.Since(start))
	if s.logger != nil && !d.Allowed {
		s.logger.Debug("authorization denied",
			"resource", resource,
			"action", action,
			"role", d.Role,
			"reason", d.Reason,
		)
	}
	return d
}

func (s *Service) applyPolicies(d Decision, user *tenant.UserContext, dctx Context) Decision {
	attrs := make(map[string]any, len(dctx)+3)
	attrs["userId"] = user.UserID
	attrs["tenantId"] = user.TenantID
	for k, v := range dctx {
		attrs[k] = v
	}

	pd := s.policies.Evaluate(d.Resource, d.Action, attrs, user.Role)
	d.MatchedRules = append(d.MatchedRules, pd.MatchedRules...)
	if !pd.Allowed {
		d.Allowed = false
		d.Reason = ReasonPolicyDenied
		d.PolicyReason = pd.Reason
	}
	return d
}

// RequiresReason reports whether action needs a caller-supplied reason.
func (s *Service) RequiresReason(resource, action string) bool {
	return RequiresReason(resource, action)
}

// ValidateReason rejects a blank reason for actions that require one.
func (s *Service) ValidateReason(resource, action, reason string) error {
	if RequiresReason(resource, action) && strings.TrimSpace(reason) == "" {
		return dErrors.New(dErrors.CodeInvalidArgument, "reason is required for "+resource+":"+action)
	}
	return nil
}

// ExplainDecision renders d for API payloads and audit entries.
func (s *Service) ExplainDecision(d Decision) string {
	return ExplainDecision(d)
}
