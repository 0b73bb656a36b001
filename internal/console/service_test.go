package console

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Authorizer,AuditRecorder

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"backoffice/internal/audit"
	auditmemory "backoffice/internal/audit/store/memory"
	"backoffice/internal/console/mocks"
	"backoffice/internal/console/models"
	"backoffice/internal/decision"
	"backoffice/internal/events"
	"backoffice/internal/featureflag"
	"backoffice/internal/rbac"
	"backoffice/internal/storage"
	"backoffice/internal/tenant"
	dErrors "backoffice/pkg/domain-errors"
	"backoffice/pkg/requestcontext"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newPaymentRepo(store storage.Store) *storage.Repository[*models.Payment] {
	return storage.NewRepository(store, "payments", func(p *models.Payment) string { return p.ID })
}

func newAccountRepo(store storage.Store) *storage.Repository[*models.Account] {
	return storage.NewRepository(store, "accounts", func(a *models.Account) string { return a.ID })
}

func userContext(t *testing.T, tenantID, userID, role string) context.Context {
	t.Helper()
	ctx := requestcontext.WithTime(context.Background(), fixedNow)
	ctx = requestcontext.WithCorrelationID(ctx, "corr-1")
	ctx = tenant.WithTenant(ctx, tenant.TenantInfo{ID: tenantID})
	ctx, err := tenant.WithUser(ctx, tenant.UserContext{UserID: userID, Role: role, TenantID: tenantID})
	if err != nil {
		t.Fatalf("enter user: %v", err)
	}
	return ctx
}

// =============================================================================
// Protocol tests with mocked collaborators
// =============================================================================
// Justification for unit tests: the ordering of decision, denial audit and
// reason validation is only observable through the collaborator calls.

type ProtocolSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	authz   *mocks.MockAuthorizer
	auditor *mocks.MockAuditRecorder
	service *Service
}

func TestProtocolSuite(t *testing.T) {
	suite.Run(t, new(ProtocolSuite))
}

func (s *ProtocolSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.authz = mocks.NewMockAuthorizer(s.ctrl)
	s.auditor = mocks.NewMockAuditRecorder(s.ctrl)
	kv := storage.NewMemoryStore()
	svc, err := New(s.authz, s.auditor, featureflag.NewEngine(), newPaymentRepo(kv), newAccountRepo(kv), events.NewBus(),
		WithIDGenerator(func() string { return "acc-1" }))
	s.Require().NoError(err)
	s.service = svc
}

func (s *ProtocolSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ProtocolSuite) TestDeniedIsAuditedAndForbidden() {
	ctx := userContext(s.T(), "t1", "u1", "viewer")
	denied := decision.Decision{Allowed: false, Reason: decision.ReasonMissingPermission, MissingPermissions: []string{"accounts:create"}}

	s.authz.EXPECT().Evaluate(gomock.Any(), ResourceAccounts, "create", gomock.Any()).Return(denied)
	s.authz.EXPECT().ExplainDecision(denied).Return("DENIED: missing permission [missing: accounts:create]")
	s.auditor.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, in audit.Input) (audit.Entry, error) {
		s.Equal(audit.StatusDenied, in.Status)
		s.Equal("account.create", in.Action)
		s.Equal("t1", in.TenantID)
		s.Equal("u1", in.Actor.UserID)
		s.Equal("DENIED: missing permission [missing: accounts:create]", in.Metadata["decision"])
		return audit.Entry{}, nil
	})

	_, err := s.service.RegisterAccount(ctx, RegisterAccountRequest{Email: "a@example.com", DisplayName: "A"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal("DENIED: missing permission [missing: accounts:create]", dErrors.Message(err))
}

func (s *ProtocolSuite) TestReasonValidatedAfterDecision() {
	ctx := userContext(s.T(), "t1", "u1", "support")

	gomock.InOrder(
		s.authz.EXPECT().Evaluate(gomock.Any(), ResourceAccounts, "block", gomock.Any()).Return(decision.Decision{Allowed: true}),
		s.authz.EXPECT().ValidateReason(ResourceAccounts, "block", "").
			Return(dErrors.New(dErrors.CodeInvalidArgument, "reason is required for accounts:block")),
	)

	_, err := s.service.BlockAccount(ctx, AccountActionRequest{AccountID: "acc-1"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidArgument))
}

func (s *ProtocolSuite) TestAuditFailureDoesNotFailOperation() {
	ctx := userContext(s.T(), "t1", "u1", "support")

	s.authz.EXPECT().Evaluate(gomock.Any(), ResourceAccounts, "create", gomock.Any()).Return(decision.Decision{Allowed: true})
	s.authz.EXPECT().ValidateReason(ResourceAccounts, "create", "").Return(nil)
	s.auditor.EXPECT().Record(gomock.Any(), gomock.Any()).Return(audit.Entry{}, errors.New("disk full"))

	account, err := s.service.RegisterAccount(ctx, RegisterAccountRequest{Email: "A@Example.com ", DisplayName: "Ann"})
	s.Require().NoError(err)
	s.Equal("a@example.com", account.Email)
	s.Equal(models.AccountStatusActive, account.Status)
}

func (s *ProtocolSuite) TestNoUser() {
	_, err := s.service.CreatePayment(context.Background(), CreatePaymentRequest{AccountID: "acc-1", Amount: 10, Currency: "EUR"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ProtocolSuite) TestNewRequiresCollaborators() {
	_, err := New(nil, s.auditor, featureflag.NewEngine(), nil, nil, nil)
	s.Require().Error(err)
}

// =============================================================================
// Flow tests against the real governance core
// =============================================================================

type FlowSuite struct {
	suite.Suite
	roles   *rbac.Engine
	trail   *audit.Trail
	bus     *events.Bus
	flags   *featureflag.Engine
	service *Service
	ids     int
}

func TestFlowSuite(t *testing.T) {
	suite.Run(t, new(FlowSuite))
}

func (s *FlowSuite) SetupTest() {
	s.roles = rbac.NewEngine()
	s.Require().NoError(s.roles.RegisterRole(rbac.Role{
		ID: "finance",
		Permissions: []tenant.Permission{
			{Resource: ResourcePayments, Actions: []string{"create", "refund", "read"}, Conditions: map[string]any{"maxAmount": 1000}},
			{Resource: ResourceAccounts, Actions: []string{"create", "block", "unblock", "delete", "read"}},
			{Resource: ResourceFeatureFlags, Actions: []string{"update"}},
		},
	}))
	s.trail = audit.NewTrail(auditmemory.New())
	s.bus = events.NewBus()
	s.flags = featureflag.NewEngine()
	s.Require().NoError(s.flags.CreateFlag(featureflag.Flag{ID: "new-checkout", Enabled: false, RolloutPercentage: 10}))

	s.ids = 0
	kv := storage.NewMemoryStore()
	svc, err := New(decision.New(decision.WithPermissionSource(s.roles)), s.trail, s.flags,
		newPaymentRepo(kv), newAccountRepo(kv), s.bus,
		WithIDGenerator(func() string {
			s.ids++
			return fmt.Sprintf("id-%d", s.ids)
		}))
	s.Require().NoError(err)
	s.service = svc
}

func (s *FlowSuite) eventNames() []string {
	var names []string
	for _, e := range s.bus.History() {
		names = append(names, e.Name())
	}
	return names
}

func (s *FlowSuite) TestPaymentRefund() {
	ctx := userContext(s.T(), "t1", "fin-1", "finance")

	payment, err := s.service.CreatePayment(ctx, CreatePaymentRequest{AccountID: "acc-9", Amount: 800, Currency: "eur"})
	s.Require().NoError(err)
	s.Equal("id-1", payment.ID)
	s.Equal("EUR", payment.Currency)
	s.Equal(1, payment.Version())

	s.Run("reason required", func() {
		_, err := s.service.RefundPayment(ctx, RefundPaymentRequest{PaymentID: payment.ID, Amount: 100})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidArgument))
	})

	s.Run("partial refund", func() {
		refunded, err := s.service.RefundPayment(ctx, RefundPaymentRequest{PaymentID: payment.ID, Amount: 300, Reason: "damaged"})
		s.Require().NoError(err)
		s.Equal(models.PaymentStatusPartiallyRefunded, refunded.Status)
		s.Equal(int64(300), refunded.Refunded)
		s.Equal(2, refunded.Version())
		s.Empty(refunded.PendingEvents())

		entries, err := s.trail.FindByAction(ctx, "payment.refund")
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		entry := entries[0]
		s.Equal(audit.StatusSuccess, entry.Status)
		s.Equal("damaged", entry.Reason)
		s.Equal("corr-1", entry.CorrelationID)
		s.Equal(fixedNow, entry.Timestamp)
		s.Require().NotNil(entry.Diff)
		s.Equal(audit.Change{Before: float64(0), After: float64(300)}, entry.Diff.Modified["refunded"])
		s.Equal(audit.Change{Before: "completed", After: "partially_refunded"}, entry.Diff.Modified["status"])
	})

	s.Run("over remaining balance", func() {
		_, err := s.service.RefundPayment(ctx, RefundPaymentRequest{PaymentID: payment.ID, Amount: 600, Reason: "again"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidArgument))
	})

	s.Run("full refund", func() {
		refunded, err := s.service.RefundPayment(ctx, RefundPaymentRequest{PaymentID: payment.ID, Amount: 500, Reason: "rest"})
		s.Require().NoError(err)
		s.Equal(models.PaymentStatusRefunded, refunded.Status)

		_, err = s.service.RefundPayment(ctx, RefundPaymentRequest{PaymentID: payment.ID, Amount: 1, Reason: "more"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Equal([]string{events.NamePaymentCreated, events.NamePaymentRefunded, events.NamePaymentRefunded}, s.eventNames())
	last := s.bus.History()[2]
	refundEvent, ok := last.Payload.(events.PaymentRefunded)
	s.Require().True(ok)
	s.True(refundEvent.FullyRefunded)
	s.Equal(int64(800), refundEvent.TotalRefunded)
	s.Equal(3, last.Version)
}

func (s *FlowSuite) TestAmountAboveLimitDenied() {
	ctx := userContext(s.T(), "t1", "fin-1", "finance")

	_, err := s.service.CreatePayment(ctx, CreatePaymentRequest{AccountID: "acc-9", Amount: 5000, Currency: "EUR"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal("DENIED: conditions not met [failed: maxAmount: amount 5000 exceeds limit 1000]", dErrors.Message(err))

	entries, err := s.trail.FindByAction(ctx, "payment.create")
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(audit.StatusDenied, entries[0].Status)
	s.Empty(s.bus.History())
}

func (s *FlowSuite) TestTenantIsolation() {
	owner := userContext(s.T(), "t1", "fin-1", "finance")
	other := userContext(s.T(), "t2", "fin-2", "finance")

	payment, err := s.service.CreatePayment(owner, CreatePaymentRequest{AccountID: "acc-9", Amount: 100, Currency: "EUR"})
	s.Require().NoError(err)

	_, err = s.service.GetPayment(other, payment.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.service.RefundPayment(other, RefundPaymentRequest{PaymentID: payment.ID, Amount: 10, Reason: "x"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	found, err := s.service.GetPayment(owner, payment.ID)
	s.Require().NoError(err)
	s.Equal(int64(100), found.Amount)
}

func (s *FlowSuite) TestAccountLifecycle() {
	ctx := userContext(s.T(), "t1", "fin-1", "finance")

	account, err := s.service.RegisterAccount(ctx, RegisterAccountRequest{Email: "ann@example.com", DisplayName: "Ann"})
	s.Require().NoError(err)

	_, err = s.service.UnblockAccount(ctx, AccountActionRequest{AccountID: account.ID, Reason: "noop"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	blocked, err := s.service.BlockAccount(ctx, AccountActionRequest{AccountID: account.ID, Reason: "fraud"})
	s.Require().NoError(err)
	s.Equal(models.AccountStatusBlocked, blocked.Status)
	s.Equal("fraud", blocked.BlockReason)

	unblocked, err := s.service.UnblockAccount(ctx, AccountActionRequest{AccountID: account.ID, Reason: "cleared"})
	s.Require().NoError(err)
	s.Equal(models.AccountStatusActive, unblocked.Status)
	s.Empty(unblocked.BlockReason)

	deleted, err := s.service.DeleteAccount(ctx, AccountActionRequest{AccountID: account.ID, Reason: "gdpr"})
	s.Require().NoError(err)
	s.Equal(models.AccountStatusDeleted, deleted.Status)

	_, err = s.service.GetAccount(ctx, account.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	s.Equal([]string{
		events.NameAccountRegistered,
		events.NameAccountBlocked,
		events.NameAccountUnblocked,
		events.NameAccountDeleted,
	}, s.eventNames())

	entries, err := s.trail.FindByResource(ctx, models.AggregateTypeAccount, account.ID)
	s.Require().NoError(err)
	s.Len(entries, 4)
	s.Equal("account.delete", entries[3].Action)
	s.Equal("gdpr", entries[3].Reason)
}

func (s *FlowSuite) TestUpdateFlag() {
	ctx := userContext(s.T(), "t1", "fin-1", "finance")
	enabled := true
	rollout := 50

	updated, err := s.service.UpdateFlag(ctx, UpdateFlagRequest{
		FlagID: "new-checkout",
		Update: featureflag.FlagUpdate{Enabled: &enabled, RolloutPercentage: &rollout},
	})
	s.Require().NoError(err)
	s.True(updated.Enabled)
	s.Equal(50, updated.RolloutPercentage)

	history := s.bus.History()
	s.Require().Len(history, 1)
	changed, ok := history[0].Payload.(events.FlagChanged)
	s.Require().True(ok)
	s.Equal(events.FlagChanged{
		FlagID:            "new-checkout",
		Enabled:           true,
		WasEnabled:        false,
		RolloutPercentage: 50,
		PreviousRollout:   10,
		ChangedBy:         "fin-1",
	}, changed)

	entries, err := s.trail.FindByAction(ctx, "feature_flag.update")
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(audit.Change{Before: false, After: true}, entries[0].Diff.Modified["enabled"])

	_, err = s.service.UpdateFlag(ctx, UpdateFlagRequest{FlagID: "missing"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
