package decision

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"backoffice/internal/policy"
	"backoffice/internal/tenant"
)

const wildcard = "*"

// sensitiveActions require a caller-supplied reason on any resource.
var sensitiveActions = map[string]struct{}{
	"refund":   {},
	"block":    {},
	"unblock":  {},
	"revoke":   {},
	"publish":  {},
	"rollback": {},
	"delete":   {},
}

// RequiresReason reports whether action needs a justification. The resource
// does not influence the answer.
func RequiresReason(_ string, action string) bool {
	_, ok := sensitiveActions[action]
	return ok
}

// EvaluatePermissions applies the RBAC rule chain to a user whose permission
// list has already been resolved. Pure domain logic, no I/O.
//
// Rule order (fail-fast):
//  1. No user: denied
//  2. Super admin role: allowed unconditionally
//  3. No permission entry for resource: denied, missing permission
//  4. Action not granted by the entry: denied, missing permission
//  5. Entry conditions checked against dctx when dctx is supplied
//  6. Allowed with matched rule role_resource_action
func EvaluatePermissions(user *tenant.UserContext, permissions []tenant.Permission, resource, action string, dctx Context, superAdminRole string) Decision {
	if user == nil {
		return Decision{Allowed: false, Reason: ReasonNoUser, Resource: resource, Action: action}
	}

	d := Decision{Role: user.Role, Resource: resource, Action: action}

	if user.Role == superAdminRole {
		d.Allowed = true
		d.Reason = ReasonSuperAdmin
		d.SuperAdminBypass = true
		return d
	}

	missing := []string{resource + ":" + action}

	entry, ok := findEntry(permissions, resource)
	if !ok {
		d.Reason = ReasonMissingPermission
		d.MissingPermissions = missing
		return d
	}

	if !slices.Contains(entry.Actions, action) && !slices.Contains(entry.Actions, wildcard) {
		d.Reason = ReasonMissingPermission
		d.MissingPermissions = missing
		return d
	}

	if len(entry.Conditions) > 0 && dctx != nil {
		if failed := checkConditions(entry.Conditions, dctx); len(failed) > 0 {
			d.Reason = ReasonConditionsNotMet
			d.FailedConditions = failed
			return d
		}
	}

	d.Allowed = true
	d.Reason = ReasonGranted
	d.MatchedRules = []string{fmt.Sprintf("%s_%s_%s", user.Role, resource, action)}
	return d
}

// findEntry prefers an exact resource entry over a wildcard one.
func findEntry(permissions []tenant.Permission, resource string) (tenant.Permission, bool) {
	var fallback *tenant.Permission
	for i := range permissions {
		switch permissions[i].Resource {
		case resource:
			return permissions[i], true
		case wildcard:
			if fallback == nil {
				fallback = &permissions[i]
			}
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return tenant.Permission{}, false
}

// checkConditions returns a description of every failed condition, ordered
// by condition key so explanations are deterministic.
func checkConditions(conditions map[string]any, dctx Context) []string {
	keys := make([]string, 0, len(conditions))
	for k := range conditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var failed []string
	for _, k := range keys {
		expected := conditions[k]
		if k == "maxAmount" {
			limit, okLimit := policy.Number(expected)
			threshold, okThreshold := policy.Number(dctx["amountThreshold"])
			if okLimit && okThreshold && threshold > limit {
				failed = append(failed, fmt.Sprintf("maxAmount: amount %s exceeds limit %s",
					formatValue(threshold), formatValue(limit)))
			}
			continue
		}
		actual := dctx[k]
		if !policy.Equal(expected, actual) {
			failed = append(failed, fmt.Sprintf("%s: expected %s, got %s", k, formatValue(expected), formatValue(actual)))
		}
	}
	return failed
}

func formatValue(v any) string {
	if v == nil {
		return "none"
	}
	if f, ok := policy.Number(v); ok {
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.4f", f), "0"), ".")
	}
	return fmt.Sprintf("%v", v)
}

// ExplainDecision renders a deterministic, human-readable summary used in
// API error payloads and audit entries.
//
//	ALLOWED: permission granted [matched: support_tickets_update]
//	DENIED: missing permission [missing: tickets:delete]
func ExplainDecision(d Decision) string {
	var b strings.Builder
	if d.Allowed {
		b.WriteString("ALLOWED: ")
	} else {
		b.WriteString("DENIED: ")
	}
	b.WriteString(d.Reason)
	if len(d.MatchedRules) > 0 {
		b.WriteString(" [matched: " + strings.Join(d.MatchedRules, ", ") + "]")
	}
	if len(d.MissingPermissions) > 0 {
		b.WriteString(" [missing: " + strings.Join(d.MissingPermissions, ", ") + "]")
	}
	if len(d.FailedConditions) > 0 {
		b.WriteString(" [failed: " + strings.Join(d.FailedConditions, "; ") + "]")
	}
	if d.PolicyReason != "" {
		b.WriteString(" [policy: " + d.PolicyReason + "]")
	}
	return b.String()
}
