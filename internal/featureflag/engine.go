package featureflag

import (
	"log/slog"
	"slices"
	"sort"
	"sync"

	"backoffice/internal/featureflag/metrics"
	dErrors "backoffice/pkg/domain-errors"
)

// Engine stores flags and evaluates them. Safe for concurrent use.
type Engine struct {
	mu      sync.RWMutex
	flags   map[string]Flag
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{flags: make(map[string]Flag)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateFlag registers a new flag.
func (e *Engine) CreateFlag(flag Flag) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.flags[flag.ID]; exists {
		return dErrors.New(dErrors.CodeConflict, "flag already exists: "+flag.ID)
	}
	e.flags[flag.ID] = flag.clone()
	e.log("feature flag created", flag.ID)
	return nil
}

// UpdateFlag shallow-merges the non-nil fields of update over the stored flag
// and returns the result.
func (e *Engine) UpdateFlag(id string, update FlagUpdate) (Flag, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	flag, ok := e.flags[id]
	if !ok {
		return Flag{}, dErrors.New(dErrors.CodeNotFound, "flag not found: "+id)
	}
	if update.Name != nil {
		flag.Name = *update.Name
	}
	if update.Description != nil {
		flag.Description = *update.Description
	}
	if update.Enabled != nil {
		flag.Enabled = *update.Enabled
	}
	if update.RolloutPercentage != nil {
		flag.RolloutPercentage = *update.RolloutPercentage
	}
	if update.Targeting != nil {
		flag.Targeting = update.Targeting
	}
	if update.Variants != nil {
		flag.Variants = update.Variants
	}
	flag = flag.clone()
	e.flags[id] = flag
	e.log("feature flag updated", id)
	return flag.clone(), nil
}

// DeleteFlag removes a flag.
func (e *Engine) DeleteFlag(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.flags[id]; !ok {
		return dErrors.New(dErrors.CodeNotFound, "flag not found: "+id)
	}
	delete(e.flags, id)
	e.log("feature flag deleted", id)
	return nil
}

// Flag returns a copy of the flag with id.
func (e *Engine) Flag(id string) (Flag, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	flag, ok := e.flags[id]
	if !ok {
		return Flag{}, false
	}
	return flag.clone(), true
}

// Flags returns copies of every flag ordered by id.
func (e *Engine) Flags() []Flag {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Flag, 0, len(e.flags))
	for _, f := range e.flags {
		out = append(out, f.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Evaluate decides whether flagID is on for ec.
//
// Order:
//  1. Unknown flag: disabled
//  2. Globally disabled: disabled
//  3. Targeting mismatch: disabled
//  4. Rollout bucket of flagID:identity outside the percentage: disabled
//  5. Enabled, with a variant when the flag defines any
func (e *Engine) Evaluate(flagID string, ec EvalContext) Result {
	e.mu.RLock()
	flag, ok := e.flags[flagID]
	e.mu.RUnlock()

	var res Result
	switch {
	case !ok:
		res = Result{Reason: ReasonNotFound}
	default:
		res = evaluate(flag, ec)
	}
	e.metrics.IncrementEvaluation(flagID, res.Enabled)
	return res
}

// EvaluateAll evaluates every registered flag for ec.
func (e *Engine) EvaluateAll(ec EvalContext) map[string]Result {
	e.mu.RLock()
	flags := make([]Flag, 0, len(e.flags))
	for _, f := range e.flags {
		flags = append(flags, f)
	}
	e.mu.RUnlock()

	out := make(map[string]Result, len(flags))
	for _, f := range flags {
		res := evaluate(f, ec)
		e.metrics.IncrementEvaluation(f.ID, res.Enabled)
		out[f.ID] = res
	}
	return out
}

func evaluate(flag Flag, ec EvalContext) Result {
	if !flag.Enabled {
		return Result{Reason: ReasonDisabled}
	}
	if flag.Targeting != nil && !matchesTargeting(flag.Targeting, ec) {
		return Result{Reason: ReasonTargetingMiss}
	}
	if !inRollout(flag, ec) {
		return Result{Reason: ReasonNotInRollout}
	}
	res := Result{Enabled: true, Reason: ReasonEnabled}
	if len(flag.Variants) > 0 {
		res.Variant = flag.Variants[bucket(flag.ID+variantSeedSuffix, len(flag.Variants))]
	}
	return res
}

func matchesTargeting(t *Targeting, ec EvalContext) bool {
	dimensions := []struct {
		allowed []string
		value   string
	}{
		{t.UserIDs, ec.UserID},
		{t.TenantIDs, ec.TenantID},
		{t.Roles, ec.Role},
		{t.Regions, ec.Region},
		{t.Locales, ec.Locale},
	}
	for _, d := range dimensions {
		if len(d.allowed) > 0 && d.value != "" && !slices.Contains(d.allowed, d.value) {
			return false
		}
	}
	if t.Custom != nil && !t.Custom(ec.clone()) {
		return false
	}
	return true
}

func inRollout(flag Flag, ec EvalContext) bool {
	switch {
	case flag.RolloutPercentage >= fullRolloutPercentage:
		return true
	case flag.RolloutPercentage <= emptyRolloutPercentage:
		return false
	}
	return bucket(flag.ID+":"+ec.identity(), 100) < flag.RolloutPercentage
}

func (e *Engine) log(msg, flagID string) {
	if e.logger == nil {
		return
	}
	e.logger.Info(msg, "flag_id", flagID)
}
