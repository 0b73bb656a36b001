package models

import (
	"context"
	"time"

	"backoffice/internal/events"
	"backoffice/internal/uow"
	dErrors "backoffice/pkg/domain-errors"
)

// AggregateTypePayment names payment aggregates in events and audit entries.
const AggregateTypePayment = "payment"

type PaymentStatus string

const (
	PaymentStatusCompleted         PaymentStatus = "completed"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentStatusRefunded          PaymentStatus = "refunded"
)

// Payment is the aggregate root for a captured payment.
//
// Invariants:
//   - Amount is positive and expressed in minor currency units
//   - Currency is a three-letter code
//   - 0 <= Refunded <= Amount
//   - Status follows Refunded: completed (0), partially_refunded, refunded (== Amount)
//   - TenantID and AccountID are immutable after construction
type Payment struct {
	uow.Root
	TenantID  string        `json:"tenant_id"`
	AccountID string        `json:"account_id"`
	Amount    int64         `json:"amount"`
	Currency  string        `json:"currency"`
	Refunded  int64         `json:"refunded"`
	Status    PaymentStatus `json:"status"`
	CreatedBy string        `json:"created_by"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewPayment validates input and records PaymentCreated.
func NewPayment(ctx context.Context, id, tenantID, accountID string, amount int64, currency, createdBy string, now time.Time) (*Payment, error) {
	if accountID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "account_id is required")
	}
	if amount <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "amount must be positive")
	}
	if len(currency) != 3 {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "currency must be a three-letter code")
	}
	p := &Payment{
		Root:      uow.NewRoot(id, AggregateTypePayment),
		TenantID:  tenantID,
		AccountID: accountID,
		Amount:    amount,
		Currency:  currency,
		Status:    PaymentStatusCompleted,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.BumpVersion()
	p.Record(ctx, events.PaymentCreated{
		PaymentID: id,
		AccountID: accountID,
		Amount:    amount,
		Currency:  currency,
		CreatedBy: createdBy,
	})
	return p, nil
}

// Remaining is the amount still refundable.
func (p *Payment) Remaining() int64 {
	return p.Amount - p.Refunded
}

// CanRefund checks a refund of amount against the remaining balance.
func (p *Payment) CanRefund(amount int64) error {
	if p.Status == PaymentStatusRefunded {
		return dErrors.New(dErrors.CodeConflict, "payment is already fully refunded")
	}
	if amount <= 0 {
		return dErrors.New(dErrors.CodeInvalidArgument, "refund amount must be positive")
	}
	if amount > p.Remaining() {
		return dErrors.New(dErrors.CodeInvalidArgument, "refund amount exceeds remaining balance")
	}
	return nil
}

// ApplyRefund records the refund. Must only be called after CanRefund
// returns nil.
func (p *Payment) ApplyRefund(ctx context.Context, amount int64, reason, refundedBy string, now time.Time) {
	p.Refunded += amount
	p.Status = PaymentStatusPartiallyRefunded
	if p.Refunded == p.Amount {
		p.Status = PaymentStatusRefunded
	}
	p.UpdatedAt = now
	p.BumpVersion()
	p.Record(ctx, events.PaymentRefunded{
		PaymentID:     p.ID,
		Amount:        amount,
		TotalRefunded: p.Refunded,
		Currency:      p.Currency,
		Reason:        reason,
		RefundedBy:    refundedBy,
		FullyRefunded: p.Status == PaymentStatusRefunded,
	})
}

// Refund validates and applies a refund in one call.
func (p *Payment) Refund(ctx context.Context, amount int64, reason, refundedBy string, now time.Time) error {
	if err := p.CanRefund(amount); err != nil {
		return err
	}
	p.ApplyRefund(ctx, amount, reason, refundedBy, now)
	return nil
}

// Validate re-checks the invariants before commit.
func (p *Payment) Validate() error {
	switch {
	case p.ID == "":
		return dErrors.New(dErrors.CodeInvalidArgument, "payment id is required")
	case p.Amount <= 0:
		return dErrors.New(dErrors.CodeInvalidArgument, "amount must be positive")
	case p.Refunded < 0 || p.Refunded > p.Amount:
		return dErrors.New(dErrors.CodeInvalidArgument, "refunded amount out of range")
	case p.Status != p.expectedStatus():
		return dErrors.New(dErrors.CodeInvalidArgument, "payment status does not match refunded amount")
	}
	return nil
}

func (p *Payment) expectedStatus() PaymentStatus {
	switch p.Refunded {
	case 0:
		return PaymentStatusCompleted
	case p.Amount:
		return PaymentStatusRefunded
	default:
		return PaymentStatusPartiallyRefunded
	}
}
