// Package policy implements attribute-based allow/deny rules keyed by
// resource and action.
//
// Rules in a bucket are walked in descending priority. A matching deny stops
// evaluation immediately; a matching allow makes the result tentatively
// allowed and evaluation continues, so a deny reached later still wins.
package policy

import (
	"fmt"
	"sort"
	"sync"

	dErrors "backoffice/pkg/domain-errors"
)

// Effect is the outcome a rule produces when its conditions match.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// ReasonNoMatch is returned when no rule's conditions matched.
const ReasonNoMatch = "no matching policies"

// Rule is a conditional grant or denial.
type Rule struct {
	ID          string         `json:"id" yaml:"id"`
	Resource    string         `json:"resource" yaml:"resource"`
	Action      string         `json:"action" yaml:"action"`
	Effect      Effect         `json:"effect" yaml:"effect"`
	Conditions  map[string]any `json:"conditions,omitempty" yaml:"conditions"`
	Priority    int            `json:"priority" yaml:"priority"`
	Description string         `json:"description,omitempty" yaml:"description"`
}

// Decision is the result of evaluating a bucket.
type Decision struct {
	Allowed      bool     `json:"allowed"`
	Reason       string   `json:"reason"`
	MatchedRules []string `json:"matched_rules,omitempty"`
}

// Engine stores rules bucketed by "resource:action".
type Engine struct {
	mu      sync.RWMutex
	buckets map[string][]Rule
}

// NewEngine creates an empty engine.
func NewEngine() *Engine {
	return &Engine{buckets: make(map[string][]Rule)}
}

func key(resource, action string) string {
	return resource + ":" + action
}

// AddRule inserts rule and re-sorts its bucket by descending priority. Rules
// with equal priority keep insertion order.
func (e *Engine) AddRule(rule Rule) error {
	if rule.ID == "" {
		return dErrors.New(dErrors.CodeInvalidArgument, "rule id is required")
	}
	if rule.Effect != EffectAllow && rule.Effect != EffectDeny {
		return dErrors.New(dErrors.CodeInvalidArgument, fmt.Sprintf("unknown effect %q", rule.Effect))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	k := key(rule.Resource, rule.Action)
	bucket := append(e.buckets[k], rule)
	sort.SliceStable(bucket, func(i, j int) bool {
		return bucket[i].Priority > bucket[j].Priority
	})
	e.buckets[k] = bucket
	return nil
}

// RemoveRule deletes the rule with id from every bucket.
func (e *Engine) RemoveRule(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, bucket := range e.buckets {
		for i, r := range bucket {
			if r.ID == id {
				e.buckets[k] = append(bucket[:i:i], bucket[i+1:]...)
				return nil
			}
		}
	}
	return dErrors.New(dErrors.CodeNotFound, "rule not found")
}

// Rules returns the bucket for resource and action in evaluation order.
func (e *Engine) Rules(resource, action string) []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Rule(nil), e.buckets[key(resource, action)]...)
}

// HasRules reports whether any rule exists for resource and action.
func (e *Engine) HasRules(resource, action string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.buckets[key(resource, action)]) > 0
}

// Evaluate walks the bucket for resource and action against attributes. role
// is exposed to conditions as the "role" attribute unless attributes already
// carries one.
func (e *Engine) Evaluate(resource, action string, attributes map[string]any, role string) Decision {
	rules := e.Rules(resource, action)

	attrs := attributes
	if _, ok := attrs["role"]; !ok && role != "" {
		attrs = make(map[string]any, len(attributes)+1)
		for k, v := range attributes {
			attrs[k] = v
		}
		attrs["role"] = role
	}

	var matched []string
	allowed := false
	for _, rule := range rules {
		if !conditionsMatch(rule.Conditions, attrs) {
			continue
		}
		matched = append(matched, rule.ID)
		if rule.Effect == EffectDeny {
			return Decision{
				Allowed:      false,
				Reason:       fmt.Sprintf("denied by policy %s", rule.ID),
				MatchedRules: matched,
			}
		}
		allowed = true
	}

	if len(matched) == 0 {
		return Decision{Allowed: false, Reason: ReasonNoMatch}
	}
	return Decision{
		Allowed:      allowed,
		Reason:       fmt.Sprintf("allowed by policy %s", matched[0]),
		MatchedRules: matched,
	}
}
