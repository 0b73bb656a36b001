// Package bootstrap loads the initial roles, policies and feature flags from
// YAML and applies them to the engines.
package bootstrap

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"backoffice/internal/featureflag"
	"backoffice/internal/policy"
	"backoffice/internal/rbac"
)

//go:embed default.yaml
var defaultSeed []byte

// Seed is the YAML document.
type Seed struct {
	Roles    []rbac.Role        `yaml:"roles"`
	Policies []policy.Rule      `yaml:"policies"`
	Flags    []featureflag.Flag `yaml:"flags"`
}

type RoleRegistry interface {
	RegisterRole(role rbac.Role) error
}

type RuleRegistry interface {
	AddRule(rule policy.Rule) error
}

type FlagRegistry interface {
	CreateFlag(flag featureflag.Flag) error
}

// Default returns the built-in seed.
func Default() (*Seed, error) {
	return Parse(defaultSeed)
}

// Load reads a seed file. An empty path yields the built-in seed.
func Load(path string) (*Seed, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	seed, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("seed %s: %w", path, err)
	}
	return seed, nil
}

// Parse decodes and validates a seed. Unknown fields are rejected.
func Parse(data []byte) (*Seed, error) {
	var seed Seed
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Validate checks ids are present and unique and rollout percentages are in
// range.
func (s *Seed) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	check := func(kind, id string) {
		if id == "" {
			errs = append(errs, fmt.Errorf("%s without id", kind))
			return
		}
		if seen[kind+":"+id] {
			errs = append(errs, fmt.Errorf("duplicate %s %q", kind, id))
		}
		seen[kind+":"+id] = true
	}
	for _, r := range s.Roles {
		check("role", r.ID)
	}
	for _, p := range s.Policies {
		check("policy", p.ID)
	}
	for _, f := range s.Flags {
		check("flag", f.ID)
		if f.RolloutPercentage < 0 || f.RolloutPercentage > 100 {
			errs = append(errs, fmt.Errorf("flag %q: rollout_percentage %d out of range", f.ID, f.RolloutPercentage))
		}
	}
	return errors.Join(errs...)
}

// Apply registers everything in the seed. It stops at the first rejected
// item.
func (s *Seed) Apply(roles RoleRegistry, rules RuleRegistry, flags FlagRegistry) error {
	for _, r := range s.Roles {
		if err := roles.RegisterRole(r); err != nil {
			return fmt.Errorf("register role %s: %w", r.ID, err)
		}
	}
	for _, p := range s.Policies {
		if err := rules.AddRule(p); err != nil {
			return fmt.Errorf("add policy %s: %w", p.ID, err)
		}
	}
	for _, f := range s.Flags {
		if err := flags.CreateFlag(f); err != nil {
			return fmt.Errorf("create flag %s: %w", f.ID, err)
		}
	}
	return nil
}
