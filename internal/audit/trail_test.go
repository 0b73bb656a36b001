package audit_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"backoffice/internal/audit"
	"backoffice/internal/audit/metrics"
	"backoffice/internal/audit/store/memory"
	"backoffice/internal/tenant"
	dErrors "backoffice/pkg/domain-errors"
	"backoffice/pkg/requestcontext"
)

type TrailSuite struct {
	suite.Suite
	store *memory.Store
	trail *audit.Trail
	seq   int
	ctx   context.Context
	now   time.Time
}

func TestTrailSuite(t *testing.T) {
	suite.Run(t, new(TrailSuite))
}

func (s *TrailSuite) SetupTest() {
	s.seq = 0
	s.store = memory.New()
	s.trail = audit.NewTrail(s.store, audit.WithIDGenerator(func() string {
		s.seq++
		return fmt.Sprintf("entry-%d", s.seq)
	}))
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *TrailSuite) record(ctx context.Context, in audit.Input) audit.Entry {
	entry, err := s.trail.Record(ctx, in)
	s.Require().NoError(err)
	return entry
}

func (s *TrailSuite) TestRecord() {
	s.Run("assigns id timestamp and correlation id", func() {
		ctx := requestcontext.WithCorrelationID(s.ctx, "corr-1")
		entry := s.record(ctx, audit.Input{
			TenantID:     "t1",
			Actor:        audit.Actor{UserID: "u1", Role: "finance"},
			Action:       "payment.refund",
			ResourceType: "payment",
			ResourceID:   "p1",
			Reason:       "duplicate charge",
		})
		s.Equal("entry-1", entry.ID)
		s.Equal(s.now, entry.Timestamp)
		s.Equal("corr-1", entry.CorrelationID)
		s.Equal(audit.StatusSuccess, entry.Status)
		s.Nil(entry.Diff)
	})

	s.Run("computes diff from snapshots", func() {
		entry := s.record(s.ctx, audit.Input{
			Action: "account.block",
			Before: map[string]any{"status": "active"},
			After:  map[string]any{"status": "blocked"},
		})
		s.Require().NotNil(entry.Diff)
		s.Equal(map[string]audit.Change{"status": {Before: "active", After: "blocked"}}, entry.Diff.Modified)
	})

	s.Run("supplied diff is kept", func() {
		given := &audit.Diff{Added: map[string]any{"x": 1}}
		entry := s.record(s.ctx, audit.Input{
			Action: "custom",
			Before: map[string]any{"a": 1},
			After:  map[string]any{"a": 2},
			Diff:   given,
		})
		s.Equal(map[string]any{"x": 1}, entry.Diff.Added)
		s.Nil(entry.Diff.Modified)
	})

	s.Run("tenant defaults to active tenant context", func() {
		ctx := tenant.WithTenant(s.ctx, tenant.TenantInfo{ID: "t9"})
		entry := s.record(ctx, audit.Input{Action: "flag.update"})
		s.Equal("t9", entry.TenantID)
	})

	s.Run("action required", func() {
		_, err := s.trail.Record(s.ctx, audit.Input{})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidArgument))
	})
}

func (s *TrailSuite) TestSnapshotsAreCopies() {
	before := map[string]any{"status": "active", "limits": map[string]any{"daily": 100}}
	s.record(s.ctx, audit.Input{Action: "account.update", ResourceType: "account", ResourceID: "a1", Before: before})

	before["status"] = "mutated"
	before["limits"].(map[string]any)["daily"] = 0

	entries, err := s.trail.FindByResource(s.ctx, "account", "a1")
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("active", entries[0].Before["status"])
	s.Equal(100, entries[0].Before["limits"].(map[string]any)["daily"])

	entries[0].Before["status"] = "tampered"
	again, err := s.trail.FindByResource(s.ctx, "account", "a1")
	s.Require().NoError(err)
	s.Equal("active", again[0].Before["status"])
}

func (s *TrailSuite) TestLookups() {
	base := s.now
	at := func(d time.Duration) context.Context {
		return requestcontext.WithTime(context.Background(), base.Add(d))
	}
	s.record(at(0), audit.Input{TenantID: "t1", Actor: audit.Actor{UserID: "u1"}, Action: "payment.create", ResourceType: "payment", ResourceID: "p1"})
	s.record(at(time.Minute), audit.Input{TenantID: "t2", Actor: audit.Actor{UserID: "u2"}, Action: "payment.refund", ResourceType: "payment", ResourceID: "p2", Status: audit.StatusDenied})
	s.record(at(2*time.Minute), audit.Input{Actor: audit.Actor{UserID: "u1"}, Action: "flag.update", ResourceType: "flag", ResourceID: "f1"})
	s.record(at(3*time.Minute), audit.Input{TenantID: "t1", Actor: audit.Actor{UserID: "u1"}, Action: "payment.refund", ResourceType: "payment", ResourceID: "p1"})

	ids := func(entries []audit.Entry, err error) []string {
		s.Require().NoError(err)
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			out = append(out, e.ID)
		}
		return out
	}

	s.Equal([]string{"entry-1", "entry-4"}, ids(s.trail.FindByTenant(s.ctx, "t1")))
	s.Equal([]string{"entry-3"}, ids(s.trail.FindByTenant(s.ctx, audit.GlobalTenant)))
	s.Equal([]string{"entry-3"}, ids(s.trail.FindByTenant(s.ctx, "")))
	s.Equal([]string{"entry-1", "entry-4"}, ids(s.trail.FindByResource(s.ctx, "payment", "p1")))
	s.Equal([]string{"entry-1", "entry-3", "entry-4"}, ids(s.trail.FindByActor(s.ctx, "u1")))
	s.Equal([]string{"entry-2", "entry-4"}, ids(s.trail.FindByAction(s.ctx, "payment.refund")))
	s.Equal([]string{"entry-2", "entry-3"}, ids(s.trail.FindByDateRange(s.ctx, base.Add(time.Minute), base.Add(2*time.Minute))))

	s.Run("search combines filters and pages", func() {
		s.Equal([]string{"entry-4"}, ids(s.trail.Search(s.ctx, audit.Criteria{TenantID: "t1", Action: "payment.refund"})))
		s.Equal([]string{"entry-2"}, ids(s.trail.Search(s.ctx, audit.Criteria{Status: audit.StatusDenied})))
		s.Equal([]string{"entry-2", "entry-3"}, ids(s.trail.Search(s.ctx, audit.Criteria{Offset: 1, Limit: 2})))
		s.Empty(ids(s.trail.Search(s.ctx, audit.Criteria{Offset: 10})))
	})

	s.Run("invalid queries", func() {
		_, err := s.trail.FindByDateRange(s.ctx, base.Add(time.Hour), base)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidArgument))
		_, err = s.trail.Search(s.ctx, audit.Criteria{Limit: -1})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidArgument))
	})
}

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Entry) error { return errors.New("disk full") }
func (failingStore) Search(context.Context, audit.Criteria) ([]audit.Entry, error) {
	return nil, errors.New("disk full")
}

func (s *TrailSuite) TestStoreFailure() {
	trail := audit.NewTrail(failingStore{})
	_, err := trail.Record(s.ctx, audit.Input{Action: "x"})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	_, err = trail.FindByAction(s.ctx, "x")
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *TrailSuite) TestMetrics() {
	m := metrics.New(prometheus.NewRegistry())
	trail := audit.NewTrail(memory.New(), audit.WithMetrics(m))
	_, err := trail.Record(s.ctx, audit.Input{Action: "payment.refund", Status: audit.StatusDenied})
	s.Require().NoError(err)
	s.Equal(1.0, testutil.ToFloat64(m.EntriesRecorded.WithLabelValues("payment.refund", audit.StatusDenied)))
}
