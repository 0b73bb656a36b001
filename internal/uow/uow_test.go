package uow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"backoffice/internal/events"
	dErrors "backoffice/pkg/domain-errors"
)

type testAggregate struct {
	Root
	invalid error
}

func newTestAggregate(id string) *testAggregate {
	return &testAggregate{Root: NewRoot(id, "ticket")}
}

func (a *testAggregate) Validate() error { return a.invalid }

func (a *testAggregate) block(ctx context.Context) {
	a.BumpVersion()
	a.Record(ctx, events.AccountBlocked{AccountID: a.ID})
}

type UnitOfWorkSuite struct {
	suite.Suite
	bus *events.Bus
	uow *UnitOfWork
	ctx context.Context
}

func TestUnitOfWorkSuite(t *testing.T) {
	suite.Run(t, new(UnitOfWorkSuite))
}

func (s *UnitOfWorkSuite) SetupTest() {
	s.bus = events.NewBus()
	s.uow = New(s.bus)
	s.ctx = context.Background()
}

func (s *UnitOfWorkSuite) TestCommitPublishesInRegistrationOrder() {
	var seen []string
	s.bus.Subscribe(events.AllEvents, func(_ context.Context, e events.Event) error {
		seen = append(seen, e.AggregateID)
		return nil
	})

	a, b := newTestAggregate("a"), newTestAggregate("b")
	b.block(s.ctx)
	a.block(s.ctx)
	a.block(s.ctx)

	s.uow.RegisterChanged(b)
	s.uow.RegisterNew(a)

	s.Require().NoError(s.uow.Commit(s.ctx))
	s.Equal([]string{"b", "a", "a"}, seen)
	s.Empty(a.PendingEvents())
	s.Empty(b.PendingEvents())
	s.Equal(2, a.Version())
	s.True(s.uow.Registered().Empty())
}

func (s *UnitOfWorkSuite) TestValidationFailureAbortsCommit() {
	good, bad := newTestAggregate("good"), newTestAggregate("bad")
	good.block(s.ctx)
	bad.block(s.ctx)
	bad.invalid = errors.New("status unknown")

	s.uow.RegisterNew(good)
	s.uow.RegisterChanged(bad)

	err := s.uow.Commit(s.ctx)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidArgument))
	s.Empty(s.bus.History())
	s.Empty(s.bus.DeadLetterQueue())
	s.True(s.uow.Registered().Empty())
	s.Len(good.PendingEvents(), 1, "events stay pending after an aborted commit")

	s.Run("coded validation error keeps its code", func() {
		bad.invalid = dErrors.New(dErrors.CodeConflict, "already blocked")
		s.uow.RegisterChanged(bad)
		err := s.uow.Commit(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Contains(dErrors.Message(err), "already blocked")
	})
}

func (s *UnitOfWorkSuite) TestDeletedAggregatesAreNotValidated() {
	gone := newTestAggregate("gone")
	gone.invalid = errors.New("irrelevant")
	gone.Record(s.ctx, events.AccountDeleted{AccountID: "gone"})
	s.uow.RegisterDeleted(gone)

	s.Require().NoError(s.uow.Commit(s.ctx))
	s.Len(s.bus.History(), 1)
}

func (s *UnitOfWorkSuite) TestReRegisterIsNoOp() {
	a := newTestAggregate("a")
	a.block(s.ctx)
	s.uow.RegisterChanged(a)
	s.uow.RegisterChanged(a)
	s.Len(s.uow.Registered().Changed, 1)

	s.Require().NoError(s.uow.Commit(s.ctx))
	s.Len(s.bus.History(), 1)
}

func (s *UnitOfWorkSuite) TestHandlerFailureDoesNotFailCommit() {
	s.bus.Subscribe(events.NameAccountBlocked, func(context.Context, events.Event) error {
		return errors.New("downstream")
	})
	a := newTestAggregate("a")
	a.block(s.ctx)
	s.uow.RegisterChanged(a)

	s.Require().NoError(s.uow.Commit(s.ctx))
	s.Len(s.bus.DeadLetterQueue(), 1)
	s.Empty(a.PendingEvents())
}

func (s *UnitOfWorkSuite) TestPersister() {
	s.Run("runs after validation with the change set", func() {
		var persisted ChangeSet
		u := New(s.bus, WithPersister(PersisterFunc(func(_ context.Context, cs ChangeSet) error {
			persisted = cs
			s.Empty(s.bus.History(), "persistence precedes publication")
			return nil
		})))
		a := newTestAggregate("a")
		a.block(s.ctx)
		u.RegisterNew(a)

		s.Require().NoError(u.Commit(s.ctx))
		s.Len(persisted.New, 1)
		s.Len(s.bus.History(), 1)
	})

	s.Run("not called when validation fails", func() {
		called := false
		u := New(s.bus, WithPersister(PersisterFunc(func(context.Context, ChangeSet) error {
			called = true
			return nil
		})))
		bad := newTestAggregate("bad")
		bad.invalid = errors.New("nope")
		u.RegisterNew(bad)

		s.Error(u.Commit(s.ctx))
		s.False(called)
	})

	s.Run("failure aborts publication", func() {
		before := len(s.bus.History())
		u := New(s.bus, WithPersister(PersisterFunc(func(context.Context, ChangeSet) error {
			return errors.New("store offline")
		})))
		a := newTestAggregate("a")
		a.block(s.ctx)
		u.RegisterNew(a)

		err := u.Commit(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.Len(s.bus.History(), before)
		s.Len(a.PendingEvents(), 1)
	})
}

func (s *UnitOfWorkSuite) TestRollback() {
	a := newTestAggregate("a")
	a.block(s.ctx)
	s.uow.RegisterNew(a)
	s.uow.Rollback()

	s.True(s.uow.Registered().Empty())
	s.Require().NoError(s.uow.Commit(s.ctx))
	s.Empty(s.bus.History())
}

func (s *UnitOfWorkSuite) TestContext() {
	_, ok := FromContext(s.ctx)
	s.False(ok)

	ctx := WithContext(s.ctx, s.uow)
	got, ok := FromContext(ctx)
	s.True(ok)
	s.Same(s.uow, got)
}
