package featureflag

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"backoffice/internal/featureflag/metrics"
	dErrors "backoffice/pkg/domain-errors"
)

func TestHashString(t *testing.T) {
	tests := []struct {
		in   string
		want int32
	}{
		{"", 0},
		{"a", 97},
		{"ab", 3105},
		{"hello", 99162322},
		{"new-checkout:anonymous", -891493242},
		{"polygenelubricants", -2147483648},
		{"überflag", 882558975},
		{"😀", 1772899},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, hashString(tt.in), tt.in)
	}
}

func TestBucket(t *testing.T) {
	assert.Equal(t, 34, bucket("new-checkout:user-1", 100))
	assert.Equal(t, 42, bucket("new-checkout:anonymous", 100))
	assert.Equal(t, 48, bucket("polygenelubricants", 100), "min int32 must not go negative")
}

type EngineSuite struct {
	suite.Suite
	engine *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.engine = NewEngine()
}

func (s *EngineSuite) TestEvaluateOrder() {
	s.Run("unknown flag", func() {
		res := s.engine.Evaluate("missing", EvalContext{})
		s.False(res.Enabled)
		s.Equal(ReasonNotFound, res.Reason)
	})

	s.Run("globally disabled", func() {
		s.Require().NoError(s.engine.CreateFlag(Flag{ID: "off", RolloutPercentage: 100}))
		res := s.engine.Evaluate("off", EvalContext{UserID: "u1"})
		s.False(res.Enabled)
		s.Equal(ReasonDisabled, res.Reason)
	})

	s.Run("full rollout", func() {
		s.Require().NoError(s.engine.CreateFlag(Flag{ID: "on", Enabled: true, RolloutPercentage: 100}))
		res := s.engine.Evaluate("on", EvalContext{})
		s.True(res.Enabled)
		s.Equal(ReasonEnabled, res.Reason)
		s.Empty(res.Variant)
	})

	s.Run("zero rollout", func() {
		s.Require().NoError(s.engine.CreateFlag(Flag{ID: "zero", Enabled: true}))
		for _, id := range []string{"u1", "u2", "u3", ""} {
			res := s.engine.Evaluate("zero", EvalContext{UserID: id})
			s.False(res.Enabled)
			s.Equal(ReasonNotInRollout, res.Reason)
		}
	})
}

func (s *EngineSuite) TestRollout() {
	s.Require().NoError(s.engine.CreateFlag(Flag{ID: "new-checkout", Enabled: true, RolloutPercentage: 35}))

	s.Run("bucket below percentage rolls in", func() {
		s.True(s.engine.Evaluate("new-checkout", EvalContext{UserID: "user-1"}).Enabled) // bucket 34
	})

	s.Run("bucket at percentage rolls out", func() {
		s.False(s.engine.Evaluate("new-checkout", EvalContext{UserID: "user-2"}).Enabled) // bucket 35
	})

	s.Run("identity falls back to tenant then anonymous", func() {
		s.True(s.engine.Evaluate("new-checkout", EvalContext{TenantID: "t1"}).Enabled) // bucket 28
		s.False(s.engine.Evaluate("new-checkout", EvalContext{}).Enabled)              // bucket 42
	})

	s.Run("stable across calls", func() {
		first := s.engine.Evaluate("new-checkout", EvalContext{UserID: "user-10"})
		for range 50 {
			s.Equal(first, s.engine.Evaluate("new-checkout", EvalContext{UserID: "user-10"}))
		}
	})
}

func (s *EngineSuite) TestTargeting() {
	s.Require().NoError(s.engine.CreateFlag(Flag{
		ID:                "beta",
		Enabled:           true,
		RolloutPercentage: 100,
		Targeting: &Targeting{
			TenantIDs: []string{"t1"},
			Regions:   []string{"eu"},
		},
	}))

	s.Run("matching context", func() {
		s.True(s.engine.Evaluate("beta", EvalContext{TenantID: "t1", Region: "eu"}).Enabled)
	})

	s.Run("mismatching dimension", func() {
		res := s.engine.Evaluate("beta", EvalContext{TenantID: "t2", Region: "eu"})
		s.False(res.Enabled)
		s.Equal(ReasonTargetingMiss, res.Reason)
	})

	s.Run("absent field does not disqualify", func() {
		s.True(s.engine.Evaluate("beta", EvalContext{TenantID: "t1"}).Enabled)
		s.True(s.engine.Evaluate("beta", EvalContext{}).Enabled)
	})

	s.Run("custom predicate", func() {
		s.Require().NoError(s.engine.CreateFlag(Flag{
			ID:                "vip",
			Enabled:           true,
			RolloutPercentage: 100,
			Targeting: &Targeting{Custom: func(ec EvalContext) bool {
				return ec.Attributes["tier"] == "gold"
			}},
		}))
		s.True(s.engine.Evaluate("vip", EvalContext{Attributes: map[string]any{"tier": "gold"}}).Enabled)
		s.Equal(ReasonTargetingMiss, s.engine.Evaluate("vip", EvalContext{}).Reason)
	})
}

func (s *EngineSuite) TestVariants() {
	s.Require().NoError(s.engine.CreateFlag(Flag{
		ID:                "new-checkout",
		Enabled:           true,
		RolloutPercentage: 100,
		Variants:          []string{"control", "blue", "green"},
	}))

	// every identity sees the same variant
	for _, id := range []string{"user-1", "user-2", "someone-else"} {
		res := s.engine.Evaluate("new-checkout", EvalContext{UserID: id})
		s.Equal("blue", res.Variant)
	}
}

func (s *EngineSuite) TestManagement() {
	s.Run("create conflict", func() {
		s.Require().NoError(s.engine.CreateFlag(Flag{ID: "f1", Name: "First"}))
		err := s.engine.CreateFlag(Flag{ID: "f1"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("update merges non-nil fields", func() {
		enabled := true
		pct := 50
		updated, err := s.engine.UpdateFlag("f1", FlagUpdate{Enabled: &enabled, RolloutPercentage: &pct})
		s.Require().NoError(err)
		s.Equal("First", updated.Name)
		s.True(updated.Enabled)
		s.Equal(50, updated.RolloutPercentage)

		stored, ok := s.engine.Flag("f1")
		s.Require().True(ok)
		s.Equal(updated, stored)
	})

	s.Run("update unknown", func() {
		_, err := s.engine.UpdateFlag("nope", FlagUpdate{})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("stored copy is isolated", func() {
		flag := Flag{ID: "f2", Variants: []string{"a"}}
		s.Require().NoError(s.engine.CreateFlag(flag))
		flag.Variants[0] = "mutated"
		stored, _ := s.engine.Flag("f2")
		s.Equal([]string{"a"}, stored.Variants)
	})

	s.Run("list ordered by id", func() {
		flags := s.engine.Flags()
		s.Require().Len(flags, 2)
		s.Equal("f1", flags[0].ID)
		s.Equal("f2", flags[1].ID)
	})

	s.Run("delete", func() {
		s.Require().NoError(s.engine.DeleteFlag("f2"))
		_, ok := s.engine.Flag("f2")
		s.False(ok)
		s.True(dErrors.HasCode(s.engine.DeleteFlag("f2"), dErrors.CodeNotFound))
	})
}

func (s *EngineSuite) TestEvaluateAllAndMetrics() {
	m := metrics.New(prometheus.NewRegistry())
	engine := NewEngine(WithMetrics(m))
	s.Require().NoError(engine.CreateFlag(Flag{ID: "a", Enabled: true, RolloutPercentage: 100}))
	s.Require().NoError(engine.CreateFlag(Flag{ID: "b"}))

	results := engine.EvaluateAll(EvalContext{UserID: "u1"})
	s.Len(results, 2)
	s.True(results["a"].Enabled)
	s.False(results["b"].Enabled)

	s.Equal(1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("a", "enabled")))
	s.Equal(1.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("b", "disabled")))
}
