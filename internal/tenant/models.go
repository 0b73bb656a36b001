package tenant

import (
	"maps"
	"slices"
)

// TenantInfo describes the isolation boundary an operation runs in.
// Values are copied on entry into a context and never mutated afterwards.
type TenantInfo struct {
	ID       string   `json:"tenant_id" yaml:"id"`
	Region   string   `json:"region,omitempty" yaml:"region"`
	Locale   string   `json:"locale,omitempty" yaml:"locale"`
	Features []string `json:"features,omitempty" yaml:"features"`
}

// HasFeature reports whether the tenant has feature enabled.
func (t TenantInfo) HasFeature(feature string) bool {
	return slices.Contains(t.Features, feature)
}

func (t TenantInfo) clone() TenantInfo {
	t.Features = slices.Clone(t.Features)
	return t
}

// Permission grants a set of actions on one resource. Conditions are optional
// constraints evaluated by the decision service (e.g. maxAmount).
type Permission struct {
	Resource   string         `json:"resource" yaml:"resource"`
	Actions    []string       `json:"actions" yaml:"actions"`
	Conditions map[string]any `json:"conditions,omitempty" yaml:"conditions"`
}

// Clone returns a copy of the permission that shares no slices or maps.
func (p Permission) Clone() Permission {
	p.Actions = slices.Clone(p.Actions)
	p.Conditions = maps.Clone(p.Conditions)
	return p
}

// UserContext is the acting identity for an operation.
//
// Invariant: TenantID equals the active tenant of the context the user was
// entered into (enforced by WithUser).
type UserContext struct {
	UserID      string       `json:"user_id"`
	Email       string       `json:"email,omitempty"`
	Role        string       `json:"role"`
	TenantID    string       `json:"tenant_id"`
	Permissions []Permission `json:"permissions,omitempty"`

	// Request metadata captured at the boundary.
	DeviceID   string `json:"device_id,omitempty"`
	DeviceName string `json:"device_name,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	IP         string `json:"ip,omitempty"`
}

// Clone returns a copy of the user that shares no permission data.
func (u UserContext) Clone() UserContext {
	if u.Permissions != nil {
		perms := make([]Permission, len(u.Permissions))
		for i, p := range u.Permissions {
			perms[i] = p.Clone()
		}
		u.Permissions = perms
	}
	return u
}
