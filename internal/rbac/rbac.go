// Package rbac answers role to permission membership questions. It performs
// exact (resource, action) matching only; wildcards are interpreted by the
// decision service.
package rbac

import (
	"slices"
	"sort"
	"sync"

	"backoffice/internal/tenant"
	dErrors "backoffice/pkg/domain-errors"
)

// Role is a named permission set.
type Role struct {
	ID          string              `json:"id" yaml:"id"`
	Name        string              `json:"name,omitempty" yaml:"name"`
	Permissions []tenant.Permission `json:"permissions" yaml:"permissions"`
}

func (r Role) clone() Role {
	perms := make([]tenant.Permission, len(r.Permissions))
	for i, p := range r.Permissions {
		perms[i] = p.Clone()
	}
	r.Permissions = perms
	return r
}

// Grant is a single (resource, action) pair.
type Grant struct {
	Resource string
	Action   string
}

// Engine holds registered roles and provides thread-safe lookups.
type Engine struct {
	mu    sync.RWMutex
	roles map[string]Role
}

// NewEngine creates an empty engine.
func NewEngine() *Engine {
	return &Engine{roles: make(map[string]Role)}
}

// RegisterRole adds role, replacing any previous registration with the same
// ID. Permission sets are never merged.
func (e *Engine) RegisterRole(role Role) error {
	if role.ID == "" {
		return dErrors.New(dErrors.CodeInvalidArgument, "role id is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roles[role.ID] = role.clone()
	return nil
}

// RemoveRole deletes a role registration.
func (e *Engine) RemoveRole(roleID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.roles[roleID]; !ok {
		return dErrors.New(dErrors.CodeNotFound, "role not found")
	}
	delete(e.roles, roleID)
	return nil
}

// Role returns a copy of the registration for roleID.
func (e *Engine) Role(roleID string) (Role, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	role, ok := e.roles[roleID]
	if !ok {
		return Role{}, false
	}
	return role.clone(), true
}

// Roles returns all registrations ordered by ID.
func (e *Engine) Roles() []Role {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Role, 0, len(e.roles))
	for _, role := range e.roles {
		out = append(out, role.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Permissions returns the permission list registered for roleID, or nil.
func (e *Engine) Permissions(roleID string) []tenant.Permission {
	role, ok := e.Role(roleID)
	if !ok {
		return nil
	}
	return role.Permissions
}

// HasPermission reports whether roleID is registered and one of its
// permissions holds resource with action.
func (e *Engine) HasPermission(roleID, resource, action string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	role, ok := e.roles[roleID]
	if !ok {
		return false
	}
	for _, p := range role.Permissions {
		if p.Resource == resource && slices.Contains(p.Actions, action) {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether roleID holds at least one of grants.
func (e *Engine) HasAnyPermission(roleID string, grants []Grant) bool {
	for _, g := range grants {
		if e.HasPermission(roleID, g.Resource, g.Action) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether roleID holds every one of grants.
func (e *Engine) HasAllPermissions(roleID string, grants []Grant) bool {
	for _, g := range grants {
		if !e.HasPermission(roleID, g.Resource, g.Action) {
			return false
		}
	}
	return true
}
