package console

import (
	"context"

	"backoffice/internal/console/models"
	"backoffice/internal/decision"
	"backoffice/internal/tenant"
	"backoffice/internal/uow"
	"backoffice/pkg/platform/sentinel"
	"backoffice/pkg/requestcontext"
)

type RegisterAccountRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// AccountActionRequest carries the target and justification of a block,
// unblock or delete.
type AccountActionRequest struct {
	AccountID string `json:"-"`
	Reason    string `json:"reason"`
}

// RegisterAccount creates an active account in the active tenant.
func (s *Service) RegisterAccount(ctx context.Context, req RegisterAccountRequest) (*models.Account, error) {
	user, err := tenant.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	id := s.newID()
	op := s.accountOperation(user, "create", id, "")
	if err := s.authorize(ctx, user, op); err != nil {
		return nil, err
	}

	account, err := models.NewAccount(ctx, id, user.TenantID, req.Email, req.DisplayName, user.UserID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	work := s.newUnitOfWork(func(ctx context.Context, _ uow.ChangeSet) error {
		return s.accounts.Save(ctx, account)
	})
	work.RegisterNew(account)
	if err := s.commit(ctx, user, op, work, nil, snapshot(account)); err != nil {
		return nil, err
	}
	return account, nil
}

// BlockAccount blocks an active account.
func (s *Service) BlockAccount(ctx context.Context, req AccountActionRequest) (*models.Account, error) {
	return s.transitionAccount(ctx, "block", req, func(ctx context.Context, a *models.Account, by string) error {
		if err := a.CanBlock(); err != nil {
			return err
		}
		a.ApplyBlock(ctx, req.Reason, by, requestcontext.Now(ctx))
		return nil
	})
}

// UnblockAccount reactivates a blocked account.
func (s *Service) UnblockAccount(ctx context.Context, req AccountActionRequest) (*models.Account, error) {
	return s.transitionAccount(ctx, "unblock", req, func(ctx context.Context, a *models.Account, by string) error {
		if err := a.CanUnblock(); err != nil {
			return err
		}
		a.ApplyUnblock(ctx, req.Reason, by, requestcontext.Now(ctx))
		return nil
	})
}

// DeleteAccount removes an account. The AccountDeleted event and the audit
// entry outlive the stored record.
func (s *Service) DeleteAccount(ctx context.Context, req AccountActionRequest) (*models.Account, error) {
	return s.transitionAccount(ctx, "delete", req, func(ctx context.Context, a *models.Account, by string) error {
		if err := a.CanDelete(); err != nil {
			return err
		}
		a.ApplyDelete(ctx, req.Reason, by, requestcontext.Now(ctx))
		return nil
	})
}

// GetAccount returns an account of the active tenant.
func (s *Service) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	user, err := tenant.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, user, s.accountOperation(user, "read", id, "")); err != nil {
		return nil, err
	}
	return s.loadAccount(ctx, user, id)
}

func (s *Service) transitionAccount(ctx context.Context, action string, req AccountActionRequest, mutate func(context.Context, *models.Account, string) error) (*models.Account, error) {
	user, err := tenant.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	op := s.accountOperation(user, action, req.AccountID, req.Reason)
	if err := s.authorize(ctx, user, op); err != nil {
		return nil, err
	}

	account, err := s.loadAccount(ctx, user, req.AccountID)
	if err != nil {
		return nil, err
	}
	before := snapshot(account)
	if err := mutate(ctx, account, user.UserID); err != nil {
		return nil, err
	}
	after := snapshot(account)

	work := s.newUnitOfWork(func(ctx context.Context, changes uow.ChangeSet) error {
		if len(changes.Deleted) > 0 {
			return s.accounts.Delete(ctx, account.ID)
		}
		return s.accounts.Save(ctx, account)
	})
	if account.Status == models.AccountStatusDeleted {
		work.RegisterDeleted(account)
	} else {
		work.RegisterChanged(account)
	}
	if err := s.commit(ctx, user, op, work, before, after); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) accountOperation(user tenant.UserContext, action, id, reason string) operation {
	return operation{
		resource:     ResourceAccounts,
		action:       action,
		resourceType: models.AggregateTypeAccount,
		resourceID:   id,
		reason:       reason,
		dctx:         decision.Context{"tenantId": user.TenantID},
	}
}

func (s *Service) loadAccount(ctx context.Context, user tenant.UserContext, id string) (*models.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "account")
	}
	if account == nil || account.TenantID != user.TenantID {
		return nil, translateStoreError(sentinel.ErrNotFound, "account")
	}
	return account, nil
}
