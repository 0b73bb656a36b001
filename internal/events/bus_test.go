package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"backoffice/internal/events/metrics"
	"backoffice/internal/tenant"
	"backoffice/pkg/requestcontext"
)

type BusSuite struct {
	suite.Suite
	bus *Bus
	ctx context.Context
}

func TestBusSuite(t *testing.T) {
	suite.Run(t, new(BusSuite))
}

func (s *BusSuite) SetupTest() {
	s.bus = NewBus()
	s.ctx = context.Background()
}

func blocked(id string) Event {
	return Event{ID: id, AggregateID: "acc-1", AggregateType: "account", Payload: AccountBlocked{AccountID: "acc-1"}}
}

func (s *BusSuite) TestSequentialDispatch() {
	var calls []string
	record := func(label string) Handler {
		return func(context.Context, Event) error {
			calls = append(calls, label)
			return nil
		}
	}
	s.bus.Subscribe(AllEvents, record("wildcard"))
	s.bus.Subscribe(NameAccountBlocked, record("first"))
	s.bus.Subscribe(NameAccountBlocked, record("second"))
	s.bus.Subscribe(NameAccountDeleted, record("other"))

	s.bus.Publish(s.ctx, blocked("e1"))

	s.Equal([]string{"first", "second", "wildcard"}, calls)
	s.Len(s.bus.History(), 1)
}

func (s *BusSuite) TestFailureIsolation() {
	var reached bool
	failing := s.bus.Subscribe(NameAccountBlocked, func(context.Context, Event) error {
		return errors.New("mailer down")
	})
	s.bus.Subscribe(NameAccountBlocked, func(context.Context, Event) error {
		panic("boom")
	})
	s.bus.Subscribe(NameAccountBlocked, func(context.Context, Event) error {
		reached = true
		return nil
	})

	s.bus.Publish(s.ctx, blocked("e1"))

	s.True(reached, "later handlers still run")
	dlq := s.bus.DeadLetterQueue()
	s.Require().Len(dlq, 2)
	s.Equal(failing, dlq[0].Subscription)
	s.EqualError(dlq[0].Err, "mailer down")
	s.Equal(1, dlq[0].Attempts)
	s.Equal("e1", dlq[0].Event.ID)
	s.ErrorContains(dlq[1].Err, "handler panic: boom")
}

func (s *BusSuite) TestRetryAndDrain() {
	attempts := 0
	s.bus.Subscribe(NameAccountBlocked, func(context.Context, Event) error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("attempt %d failed", attempts)
		}
		return nil
	})
	s.bus.Publish(s.ctx, blocked("e1"))
	s.Require().Len(s.bus.DeadLetterQueue(), 1)

	retried, remaining := s.bus.RetryDeadLetters(s.ctx)
	s.Equal(0, retried)
	s.Equal(1, remaining)
	s.Equal(2, s.bus.DeadLetterQueue()[0].Attempts)

	retried, remaining = s.bus.RetryDeadLetters(s.ctx)
	s.Equal(1, retried)
	s.Equal(0, remaining)

	s.Run("drain empties the queue", func() {
		id := s.bus.Subscribe(NameAccountDeleted, func(context.Context, Event) error { return errors.New("x") })
		s.bus.Publish(s.ctx, Event{ID: "e2", Payload: AccountDeleted{}})
		s.True(s.bus.Unsubscribe(id))

		retried, remaining := s.bus.RetryDeadLetters(s.ctx)
		s.Equal(0, retried)
		s.Equal(1, remaining, "letters for removed subscriptions stay queued")

		drained := s.bus.DrainDeadLetters()
		s.Len(drained, 1)
		s.Empty(s.bus.DeadLetterQueue())
	})
}

func (s *BusSuite) TestDeadLettersByTenant() {
	s.bus.Subscribe(NameAccountRegistered, func(context.Context, Event) error {
		return errors.New("crm offline")
	})
	for _, tenantID := range []string{"t1", "t2", "t2"} {
		s.bus.Publish(s.ctx, Event{ID: "e-" + tenantID, TenantID: tenantID, Payload: AccountRegistered{}})
	}

	s.Len(s.bus.DeadLettersFor("t1"), 1)
	s.Len(s.bus.DeadLettersFor("t2"), 2)
	s.Empty(s.bus.DeadLettersFor("t3"))

	retried, remaining := s.bus.RetryDeadLettersFor(s.ctx, "t1")
	s.Equal(0, retried)
	s.Equal(1, remaining)

	s.Len(s.bus.DeadLetterQueue(), 3)
	for _, dl := range s.bus.DeadLettersFor("t2") {
		s.Equal(1, dl.Attempts, "other tenants' letters are not retried")
	}
	s.Equal(2, s.bus.DeadLettersFor("t1")[0].Attempts)
}

func (s *BusSuite) TestHistoryBounded() {
	bus := NewBus(WithHistoryLimit(3))
	for i := range 5 {
		bus.Publish(s.ctx, blocked(fmt.Sprintf("e%d", i)))
	}
	history := bus.History()
	s.Require().Len(history, 3)
	s.Equal("e2", history[0].ID)
	s.Equal("e4", history[2].ID)
}

func (s *BusSuite) TestPublishMultipleInOrder() {
	var seen []string
	s.bus.Subscribe(AllEvents, func(_ context.Context, e Event) error {
		seen = append(seen, e.ID)
		return nil
	})
	s.bus.PublishMultiple(s.ctx, []Event{blocked("a"), blocked("b"), blocked("c")})
	s.Equal([]string{"a", "b", "c"}, seen)
}

func (s *BusSuite) TestExhaustiveSwitch() {
	describe := func(p Payload) string {
		switch p := p.(type) {
		case PaymentCreated:
			return "created " + p.PaymentID
		case PaymentRefunded:
			return "refunded " + p.PaymentID
		case AccountRegistered, AccountBlocked, AccountUnblocked, AccountDeleted:
			return "account " + p.EventName()
		case FlagChanged:
			return "flag " + p.FlagID
		default:
			return "unknown"
		}
	}
	s.Equal("created p1", describe(PaymentCreated{PaymentID: "p1"}))
	s.Equal("account account.blocked", describe(AccountBlocked{}))
	s.Equal("flag f1", describe(FlagChanged{FlagID: "f1"}))
}

func (s *BusSuite) TestNewStampsFromContext() {
	ctx := requestcontext.WithCorrelationID(s.ctx, "corr-9")
	ctx = tenant.WithTenant(ctx, tenant.TenantInfo{ID: "t1"})

	e := New(ctx, Source{ID: "p1", Type: "payment"}, 1, PaymentCreated{PaymentID: "p1"})
	s.NotEmpty(e.ID)
	s.Equal("corr-9", e.CorrelationID)
	s.Equal("t1", e.TenantID)
	s.Equal(NamePaymentCreated, e.Name())

	raw, err := json.Marshal(e)
	s.Require().NoError(err)
	var body map[string]any
	s.Require().NoError(json.Unmarshal(raw, &body))
	s.Equal(NamePaymentCreated, body["name"])
	s.Equal("payment", body["aggregate_type"])
}

func (s *BusSuite) TestMetrics() {
	m := metrics.New(prometheus.NewRegistry())
	bus := NewBus(WithMetrics(m))
	bus.Subscribe(NameAccountBlocked, func(context.Context, Event) error { return errors.New("x") })

	bus.Publish(s.ctx, blocked("e1"))

	s.Equal(1.0, testutil.ToFloat64(m.Published.WithLabelValues(NameAccountBlocked)))
	s.Equal(1.0, testutil.ToFloat64(m.HandlerFailures.WithLabelValues(NameAccountBlocked)))
	s.Equal(1.0, testutil.ToFloat64(m.DeadLetters))

	bus.DrainDeadLetters()
	s.Equal(0.0, testutil.ToFloat64(m.DeadLetters))
}
