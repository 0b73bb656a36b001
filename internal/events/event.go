package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"backoffice/internal/tenant"
	"backoffice/pkg/requestcontext"
)

// Event names.
const (
	NamePaymentCreated    = "payment.created"
	NamePaymentRefunded   = "payment.refunded"
	NameAccountRegistered = "account.registered"
	NameAccountBlocked    = "account.blocked"
	NameAccountUnblocked  = "account.unblocked"
	NameAccountDeleted    = "account.deleted"
	NameFlagChanged       = "flag.changed"

	// AllEvents subscribes to every event name.
	AllEvents = "*"
)

// Payload is the closed set of domain event bodies. The unexported method
// keeps implementations inside this package, so a type switch over the
// types below is exhaustive.
type Payload interface {
	EventName() string
	sealed()
}

// Event is the immutable envelope around a payload.
type Event struct {
	ID            string    `json:"id"`
	OccurredAt    time.Time `json:"occurred_at"`
	AggregateID   string    `json:"aggregate_id"`
	AggregateType string    `json:"aggregate_type"`
	TenantID      string    `json:"tenant_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Version       int       `json:"version"`
	Payload       Payload   `json:"payload"`
}

// Name returns the payload's event name.
func (e Event) Name() string {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.EventName()
}

// MarshalJSON adds the event name to the envelope.
func (e Event) MarshalJSON() ([]byte, error) {
	type envelope Event
	return json.Marshal(struct {
		Name string `json:"name"`
		envelope
	}{Name: e.Name(), envelope: envelope(e)})
}

// Source identifies the aggregate an event is about.
type Source struct {
	ID   string
	Type string
}

// New builds an event stamped from ctx: request time, correlation id and the
// active tenant.
func New(ctx context.Context, src Source, version int, payload Payload) Event {
	e := Event{
		ID:            uuid.NewString(),
		OccurredAt:    requestcontext.Now(ctx),
		AggregateID:   src.ID,
		AggregateType: src.Type,
		CorrelationID: requestcontext.CorrelationID(ctx),
		Version:       version,
		Payload:       payload,
	}
	if t, ok := tenant.TenantFrom(ctx); ok {
		e.TenantID = t.ID
	}
	return e
}

type PaymentCreated struct {
	PaymentID string `json:"payment_id"`
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	CreatedBy string `json:"created_by"`
}

type PaymentRefunded struct {
	PaymentID     string `json:"payment_id"`
	Amount        int64  `json:"amount"`
	TotalRefunded int64  `json:"total_refunded"`
	Currency      string `json:"currency"`
	Reason        string `json:"reason"`
	RefundedBy    string `json:"refunded_by"`
	FullyRefunded bool   `json:"fully_refunded"`
}

type AccountRegistered struct {
	AccountID    string `json:"account_id"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	RegisteredBy string `json:"registered_by"`
}

type AccountBlocked struct {
	AccountID string `json:"account_id"`
	Reason    string `json:"reason"`
	BlockedBy string `json:"blocked_by"`
}

type AccountUnblocked struct {
	AccountID   string `json:"account_id"`
	Reason      string `json:"reason"`
	UnblockedBy string `json:"unblocked_by"`
}

type AccountDeleted struct {
	AccountID string `json:"account_id"`
	Reason    string `json:"reason"`
	DeletedBy string `json:"deleted_by"`
}

// FlagChanged carries the flag state before and after the change.
type FlagChanged struct {
	FlagID            string `json:"flag_id"`
	Enabled           bool   `json:"enabled"`
	WasEnabled        bool   `json:"was_enabled"`
	RolloutPercentage int    `json:"rollout_percentage"`
	PreviousRollout   int    `json:"previous_rollout_percentage"`
	ChangedBy         string `json:"changed_by"`
}

func (PaymentCreated) EventName() string { return NamePaymentCreated }
func (PaymentRefunded) EventName() string { return NamePaymentRefunded }
func (AccountRegistered) EventName() string { return NameAccountRegistered }
func (AccountBlocked) EventName() string { return NameAccountBlocked }
func (AccountUnblocked) EventName() string { return NameAccountUnblocked }
func (AccountDeleted) EventName() string { return NameAccountDeleted }
func (FlagChanged) EventName() string { return NameFlagChanged }

func (PaymentCreated) sealed() {}
func (PaymentRefunded) sealed() {}
func (AccountRegistered) sealed() {}
func (AccountBlocked) sealed() {}
func (AccountUnblocked) sealed() {}
func (AccountDeleted) sealed() {}
func (FlagChanged) sealed() {}
