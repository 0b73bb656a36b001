package featureflag

import (
	"maps"
	"slices"
)

// Evaluation reasons.
const (
	ReasonNotFound         = "flag not found"
	ReasonDisabled         = "flag is disabled globally"
	ReasonTargetingMiss    = "does not match targeting rules"
	ReasonNotInRollout     = "not in rollout percentage"
	ReasonEnabled          = "flag enabled"
	anonymousIdentity      = "anonymous"
	variantSeedSuffix      = ":variant"
	fullRolloutPercentage  = 100
	emptyRolloutPercentage = 0
)

// Flag is a rollout configuration. RolloutPercentage is 0..100.
type Flag struct {
	ID                string     `json:"id" yaml:"id"`
	Name              string     `json:"name" yaml:"name"`
	Description       string     `json:"description,omitempty" yaml:"description"`
	Enabled           bool       `json:"enabled" yaml:"enabled"`
	RolloutPercentage int        `json:"rollout_percentage" yaml:"rollout_percentage"`
	Targeting         *Targeting `json:"targeting,omitempty" yaml:"targeting"`
	Variants          []string   `json:"variants,omitempty" yaml:"variants"`
}

// Targeting narrows a flag to identities. A dimension only disqualifies when
// its list is non-empty and the evaluation context carries that field.
type Targeting struct {
	UserIDs   []string `json:"user_ids,omitempty" yaml:"user_ids"`
	TenantIDs []string `json:"tenant_ids,omitempty" yaml:"tenant_ids"`
	Roles     []string `json:"roles,omitempty" yaml:"roles"`
	Regions   []string `json:"regions,omitempty" yaml:"regions"`
	Locales   []string `json:"locales,omitempty" yaml:"locales"`

	// Custom is an optional predicate evaluated after the list dimensions.
	Custom func(EvalContext) bool `json:"-" yaml:"-"`
}

// EvalContext identifies who a flag is evaluated for.
type EvalContext struct {
	UserID     string         `json:"user_id,omitempty"`
	TenantID   string         `json:"tenant_id,omitempty"`
	Role       string         `json:"role,omitempty"`
	Region     string         `json:"region,omitempty"`
	Locale     string         `json:"locale,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Result is the outcome of one flag evaluation.
type Result struct {
	Enabled bool   `json:"enabled"`
	Variant string `json:"variant,omitempty"`
	Reason  string `json:"reason"`
}

// FlagUpdate is a shallow patch; nil fields keep their current value.
type FlagUpdate struct {
	Name              *string    `json:"name,omitempty"`
	Description       *string    `json:"description,omitempty"`
	Enabled           *bool      `json:"enabled,omitempty"`
	RolloutPercentage *int       `json:"rollout_percentage,omitempty"`
	Targeting         *Targeting `json:"targeting,omitempty"`
	Variants          []string   `json:"variants,omitempty"`
}

func (f Flag) clone() Flag {
	out := f
	out.Variants = slices.Clone(f.Variants)
	if f.Targeting != nil {
		t := *f.Targeting
		t.UserIDs = slices.Clone(f.Targeting.UserIDs)
		t.TenantIDs = slices.Clone(f.Targeting.TenantIDs)
		t.Roles = slices.Clone(f.Targeting.Roles)
		t.Regions = slices.Clone(f.Targeting.Regions)
		t.Locales = slices.Clone(f.Targeting.Locales)
		out.Targeting = &t
	}
	return out
}

func (c EvalContext) identity() string {
	switch {
	case c.UserID != "":
		return c.UserID
	case c.TenantID != "":
		return c.TenantID
	default:
		return anonymousIdentity
	}
}

func (c EvalContext) clone() EvalContext {
	out := c
	out.Attributes = maps.Clone(c.Attributes)
	return out
}
