// Package tenant carries the active tenant and acting user through an
// operation. Both are immutable context values: entering a nested scope derives
// a new context, and leaving it is simply returning to the parent, so callers
// never have to pair pushes with pops.
package tenant

import (
	"context"

	dErrors "backoffice/pkg/domain-errors"
)

type (
	tenantKey struct{}
	userKey   struct{}
)

// WithTenant returns a context whose active tenant is t. A user entered in an
// outer scope is hidden, since it belonged to the previous tenant scope.
func WithTenant(ctx context.Context, t TenantInfo) context.Context {
	ctx = context.WithValue(ctx, tenantKey{}, t.clone())
	return context.WithValue(ctx, userKey{}, (*UserContext)(nil))
}

// WithUser returns a context whose acting user is u. It fails with
// UNAUTHORIZED when no tenant is active or when u belongs to another tenant;
// the returned context is then the unchanged input.
func WithUser(ctx context.Context, u UserContext) (context.Context, error) {
	active, ok := TenantFrom(ctx)
	if !ok {
		return ctx, dErrors.New(dErrors.CodeUnauthorized, "no tenant context")
	}
	if u.TenantID != active.ID {
		return ctx, dErrors.New(dErrors.CodeUnauthorized, "user does not belong to the active tenant")
	}
	cloned := u.Clone()
	return context.WithValue(ctx, userKey{}, &cloned), nil
}

// TenantFrom returns the active tenant, if any.
func TenantFrom(ctx context.Context) (TenantInfo, bool) {
	t, ok := ctx.Value(tenantKey{}).(TenantInfo)
	if !ok {
		return TenantInfo{}, false
	}
	return t.clone(), true
}

// UserFrom returns the acting user, if any.
func UserFrom(ctx context.Context) (UserContext, bool) {
	u, ok := ctx.Value(userKey{}).(*UserContext)
	if !ok || u == nil {
		return UserContext{}, false
	}
	return u.Clone(), true
}

// RequireTenant returns the active tenant or an UNAUTHORIZED error.
func RequireTenant(ctx context.Context) (TenantInfo, error) {
	t, ok := TenantFrom(ctx)
	if !ok {
		return TenantInfo{}, dErrors.New(dErrors.CodeUnauthorized, "no tenant context")
	}
	return t, nil
}

// RequireUser returns the acting user or an UNAUTHORIZED error.
func RequireUser(ctx context.Context) (UserContext, error) {
	u, ok := UserFrom(ctx)
	if !ok {
		return UserContext{}, dErrors.New(dErrors.CodeUnauthorized, "no user context")
	}
	return u, nil
}

// Run executes fn with t and u active. The caller's ctx is never modified, so
// the scope ends on every exit path of fn.
func Run(ctx context.Context, t TenantInfo, u UserContext, fn func(ctx context.Context) error) error {
	scoped, err := WithUser(WithTenant(ctx, t), u)
	if err != nil {
		return err
	}
	return fn(scoped)
}
