package console

import (
	"context"
	"strings"

	"backoffice/internal/console/models"
	"backoffice/internal/decision"
	"backoffice/internal/tenant"
	"backoffice/internal/uow"
	"backoffice/pkg/platform/sentinel"
	"backoffice/pkg/requestcontext"
)

type CreatePaymentRequest struct {
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

type RefundPaymentRequest struct {
	PaymentID string `json:"-"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
}

// CreatePayment records a captured payment for an account of the active tenant.
func (s *Service) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*models.Payment, error) {
	user, err := tenant.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	id := s.newID()
	op := operation{
		resource:     ResourcePayments,
		action:       "create",
		resourceType: models.AggregateTypePayment,
		resourceID:   id,
		dctx: decision.Context{
			"amountThreshold": req.Amount,
			"tenantId":        user.TenantID,
		},
	}
	if err := s.authorize(ctx, user, op); err != nil {
		return nil, err
	}

	payment, err := models.NewPayment(ctx, id, user.TenantID, req.AccountID, req.Amount,
		strings.ToUpper(req.Currency), user.UserID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	after := snapshot(payment)

	work := s.newUnitOfWork(func(ctx context.Context, _ uow.ChangeSet) error {
		return s.payments.Save(ctx, payment)
	})
	work.RegisterNew(payment)
	if err := s.commit(ctx, user, op, work, nil, after); err != nil {
		return nil, err
	}
	return payment, nil
}

// RefundPayment refunds part or all of a payment. A reason is mandatory.
func (s *Service) RefundPayment(ctx context.Context, req RefundPaymentRequest) (*models.Payment, error) {
	user, err := tenant.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	op := operation{
		resource:     ResourcePayments,
		action:       "refund",
		resourceType: models.AggregateTypePayment,
		resourceID:   req.PaymentID,
		reason:       req.Reason,
		dctx: decision.Context{
			"amountThreshold": req.Amount,
			"tenantId":        user.TenantID,
		},
	}
	if err := s.authorize(ctx, user, op); err != nil {
		return nil, err
	}

	payment, err := s.loadPayment(ctx, user, req.PaymentID)
	if err != nil {
		return nil, err
	}
	before := snapshot(payment)
	if err := payment.Refund(ctx, req.Amount, req.Reason, user.UserID, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	after := snapshot(payment)

	work := s.newUnitOfWork(func(ctx context.Context, _ uow.ChangeSet) error {
		return s.payments.Save(ctx, payment)
	})
	work.RegisterChanged(payment)
	if err := s.commit(ctx, user, op, work, before, after); err != nil {
		return nil, err
	}
	return payment, nil
}

// GetPayment returns a payment of the active tenant.
func (s *Service) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	user, err := tenant.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	op := operation{
		resource:     ResourcePayments,
		action:       "read",
		resourceType: models.AggregateTypePayment,
		resourceID:   id,
		dctx:         decision.Context{"tenantId": user.TenantID},
	}
	if err := s.authorize(ctx, user, op); err != nil {
		return nil, err
	}
	return s.loadPayment(ctx, user, id)
}

// loadPayment hides payments of other tenants behind NOT_FOUND.
func (s *Service) loadPayment(ctx context.Context, user tenant.UserContext, id string) (*models.Payment, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "payment")
	}
	if payment == nil || payment.TenantID != user.TenantID {
		return nil, translateStoreError(sentinel.ErrNotFound, "payment")
	}
	return payment, nil
}
