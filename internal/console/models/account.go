package models

import (
	"context"
	"strings"
	"time"

	"backoffice/internal/events"
	"backoffice/internal/uow"
	dErrors "backoffice/pkg/domain-errors"
)

// AggregateTypeAccount names account aggregates in events and audit entries.
const AggregateTypeAccount = "account"

type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "active"
	AccountStatusBlocked AccountStatus = "blocked"
	AccountStatusDeleted AccountStatus = "deleted"
)

// CanTransitionTo reports whether a status change is allowed.
// active ↔ blocked, and either may become deleted. deleted is terminal.
func (s AccountStatus) CanTransitionTo(next AccountStatus) bool {
	switch s {
	case AccountStatusActive:
		return next == AccountStatusBlocked || next == AccountStatusDeleted
	case AccountStatusBlocked:
		return next == AccountStatusActive || next == AccountStatusDeleted
	default:
		return false
	}
}

// Account is the aggregate root for a customer account managed from the
// console.
//
// Invariants:
//   - Email contains '@'
//   - DisplayName is non-empty
//   - BlockReason is set iff Status is blocked
//   - TenantID is immutable after construction
type Account struct {
	uow.Root
	TenantID    string        `json:"tenant_id"`
	Email       string        `json:"email"`
	DisplayName string        `json:"display_name"`
	Status      AccountStatus `json:"status"`
	BlockReason string        `json:"block_reason,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// NewAccount validates input and records AccountRegistered.
func NewAccount(ctx context.Context, id, tenantID, email, displayName, registeredBy string, now time.Time) (*Account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	displayName = strings.TrimSpace(displayName)
	if !strings.Contains(email, "@") {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "email is invalid")
	}
	if displayName == "" {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "display_name is required")
	}
	a := &Account{
		Root:        uow.NewRoot(id, AggregateTypeAccount),
		TenantID:    tenantID,
		Email:       email,
		DisplayName: displayName,
		Status:      AccountStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	a.BumpVersion()
	a.Record(ctx, events.AccountRegistered{
		AccountID:    id,
		Email:        email,
		DisplayName:  displayName,
		RegisteredBy: registeredBy,
	})
	return a, nil
}

// CanBlock checks the active → blocked transition.
func (a *Account) CanBlock() error {
	if !a.Status.CanTransitionTo(AccountStatusBlocked) {
		return dErrors.New(dErrors.CodeConflict, "account cannot be blocked from status "+string(a.Status))
	}
	return nil
}

// ApplyBlock must only be called after CanBlock returns nil.
func (a *Account) ApplyBlock(ctx context.Context, reason, blockedBy string, now time.Time) {
	a.Status = AccountStatusBlocked
	a.BlockReason = reason
	a.UpdatedAt = now
	a.BumpVersion()
	a.Record(ctx, events.AccountBlocked{AccountID: a.ID, Reason: reason, BlockedBy: blockedBy})
}

// CanUnblock checks the blocked → active transition.
func (a *Account) CanUnblock() error {
	if a.Status != AccountStatusBlocked {
		return dErrors.New(dErrors.CodeConflict, "account is not blocked")
	}
	return nil
}

// ApplyUnblock must only be called after CanUnblock returns nil.
func (a *Account) ApplyUnblock(ctx context.Context, reason, unblockedBy string, now time.Time) {
	a.Status = AccountStatusActive
	a.BlockReason = ""
	a.UpdatedAt = now
	a.BumpVersion()
	a.Record(ctx, events.AccountUnblocked{AccountID: a.ID, Reason: reason, UnblockedBy: unblockedBy})
}

// CanDelete checks the transition to deleted.
func (a *Account) CanDelete() error {
	if !a.Status.CanTransitionTo(AccountStatusDeleted) {
		return dErrors.New(dErrors.CodeConflict, "account is already deleted")
	}
	return nil
}

// ApplyDelete must only be called after CanDelete returns nil.
func (a *Account) ApplyDelete(ctx context.Context, reason, deletedBy string, now time.Time) {
	a.Status = AccountStatusDeleted
	a.BlockReason = ""
	a.UpdatedAt = now
	a.BumpVersion()
	a.Record(ctx, events.AccountDeleted{AccountID: a.ID, Reason: reason, DeletedBy: deletedBy})
}

// Validate re-checks the invariants before commit.
func (a *Account) Validate() error {
	switch {
	case a.ID == "":
		return dErrors.New(dErrors.CodeInvalidArgument, "account id is required")
	case !strings.Contains(a.Email, "@"):
		return dErrors.New(dErrors.CodeInvalidArgument, "email is invalid")
	case a.DisplayName == "":
		return dErrors.New(dErrors.CodeInvalidArgument, "display_name is required")
	case (a.Status == AccountStatusBlocked) != (a.BlockReason != ""):
		return dErrors.New(dErrors.CodeInvalidArgument, "block reason must be set exactly when blocked")
	}
	return nil
}
