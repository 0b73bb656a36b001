package decision

// Context carries request attributes consulted by permission conditions, for
// example {"amountThreshold": 250, "tenantId": "t1"}.
type Context map[string]any

// Reasons reported on a Decision.
const (
	ReasonNoUser            = "no user context"
	ReasonSuperAdmin        = "super admin bypass"
	ReasonMissingPermission = "missing permission"
	ReasonConditionsNotMet  = "conditions not met"
	ReasonGranted           = "permission granted"
	ReasonPolicyDenied      = "denied by policy"
)

// DefaultSuperAdminRole bypasses every check.
const DefaultSuperAdminRole = "super_admin"

// Decision is the value returned for every authorization question. Denial is
// a decision, never an error.
type Decision struct {
	Allowed            bool     `json:"allowed"`
	Reason             string   `json:"reason"`
	Role               string   `json:"role,omitempty"`
	Resource           string   `json:"resource"`
	Action             string   `json:"action"`
	SuperAdminBypass   bool     `json:"super_admin_bypass,omitempty"`
	MatchedRules       []string `json:"matched_rules,omitempty"`
	MissingPermissions []string `json:"missing_permissions,omitempty"`
	FailedConditions   []string `json:"failed_conditions,omitempty"`
	PolicyReason       string   `json:"policy_reason,omitempty"`
}

// Outcome returns "allowed" or "denied".
func (d Decision) Outcome() string {
	if d.Allowed {
		return "allowed"
	}
	return "denied"
}
