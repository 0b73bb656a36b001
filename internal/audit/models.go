package audit

import (
	"context"
	"time"

	"backoffice/internal/tenant"
)

// Status values recorded on an entry.
const (
	StatusSuccess = "success"
	StatusDenied  = "denied"
	StatusFailed  = "failed"
)

// GlobalTenant is the index bucket for entries recorded without a tenant.
const GlobalTenant = "global"

// Actor is a point-in-time snapshot of the acting identity. It is copied
// into every entry so later changes to the user never rewrite history.
type Actor struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role,omitempty"`
	TenantID   string `json:"tenant_id,omitempty"`
	DeviceID   string `json:"device_id,omitempty"`
	DeviceName string `json:"device_name,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	IP         string `json:"ip,omitempty"`
}

// ActorFrom snapshots u. A nil user yields the zero Actor.
func ActorFrom(u *tenant.UserContext) Actor {
	if u == nil {
		return Actor{}
	}
	return Actor{
		UserID:     u.UserID,
		Email:      u.Email,
		Role:       u.Role,
		TenantID:   u.TenantID,
		DeviceID:   u.DeviceID,
		DeviceName: u.DeviceName,
		SessionID:  u.SessionID,
		IP:         u.IP,
	}
}

// Entry is an immutable audit fact.
type Entry struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	TenantID      string         `json:"tenant_id,omitempty"`
	Actor         Actor          `json:"actor"`
	Action        string         `json:"action"`
	ResourceType  string         `json:"resource_type"`
	ResourceID    string         `json:"resource_id,omitempty"`
	Before        map[string]any `json:"before,omitempty"`
	After         map[string]any `json:"after,omitempty"`
	Diff          *Diff          `json:"diff,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Status        string         `json:"status"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Input is an entry without the fields the trail assigns (id, timestamp).
type Input struct {
	TenantID      string
	Actor         Actor
	Action        string
	ResourceType  string
	ResourceID    string
	Before        map[string]any
	After         map[string]any
	Diff          *Diff
	Reason        string
	Status        string
	CorrelationID string
	Metadata      map[string]any
}

// Criteria filters a search. Zero-valued fields do not filter; From and To
// are inclusive. Limit 0 means unlimited.
type Criteria struct {
	TenantID     string
	ActorID      string
	Action       string
	ResourceType string
	ResourceID   string
	Status       string
	From         time.Time
	To           time.Time
	Offset       int
	Limit        int
}

// Store persists entries. Implementations never update or delete.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	Search(ctx context.Context, criteria Criteria) ([]Entry, error)
}

// IndexKey returns the tenant index bucket for tenantID.
func IndexKey(tenantID string) string {
	if tenantID == "" {
		return GlobalTenant
	}
	return tenantID
}

// Matches reports whether e satisfies every non-zero filter of c. Offset and
// Limit are the caller's concern.
func (c Criteria) Matches(e Entry) bool {
	switch {
	case c.TenantID != "" && IndexKey(e.TenantID) != c.TenantID:
		return false
	case c.ActorID != "" && e.Actor.UserID != c.ActorID:
		return false
	case c.Action != "" && e.Action != c.Action:
		return false
	case c.ResourceType != "" && e.ResourceType != c.ResourceType:
		return false
	case c.ResourceID != "" && e.ResourceID != c.ResourceID:
		return false
	case c.Status != "" && e.Status != c.Status:
		return false
	case !c.From.IsZero() && e.Timestamp.Before(c.From):
		return false
	case !c.To.IsZero() && e.Timestamp.After(c.To):
		return false
	}
	return true
}

// Page applies Offset and Limit to an already filtered result.
func (c Criteria) Page(entries []Entry) []Entry {
	if c.Offset > 0 {
		if c.Offset >= len(entries) {
			return []Entry{}
		}
		entries = entries[c.Offset:]
	}
	if c.Limit > 0 && c.Limit < len(entries) {
		entries = entries[:c.Limit]
	}
	return entries
}

// Clone deep-copies the entry's maps and diff.
func (e Entry) Clone() Entry {
	out := e
	out.Before = CopyMap(e.Before)
	out.After = CopyMap(e.After)
	out.Metadata = CopyMap(e.Metadata)
	if e.Diff != nil {
		d := e.Diff.clone()
		out.Diff = &d
	}
	return out
}

// CopyMap deep-copies nested maps and slices; other values are shared.
func CopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = copyValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
