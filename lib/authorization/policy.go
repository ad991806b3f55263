// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authorization

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultGroup is the group the built-in policy grants every command.
const DefaultGroup = "admin"

// Policy maps permission groups to the command patterns they may and
// may not run. Group names are case-insensitive.
type Policy struct {
	Grants  map[string][]string `yaml:"grants"`
	Denials map[string][]string `yaml:"denials,omitempty"`
}

// DefaultPolicy grants DefaultGroup every command.
func DefaultPolicy() *Policy {
	return &Policy{Grants: map[string][]string{DefaultGroup: {"*"}}}
}

// ParsePolicy decodes and validates a YAML policy document. Unknown
// keys are rejected so a misspelled "grant:" does not silently produce
// an empty policy.
func ParsePolicy(data []byte) (*Policy, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var policy Policy
	if err := decoder.Decode(&policy); err != nil {
		return nil, fmt.Errorf("authorization: parsing policy: %w", err)
	}
	policy.normalize()
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &policy, nil
}

func (p *Policy) normalize() {
	p.Grants = lowerKeys(p.Grants)
	p.Denials = lowerKeys(p.Denials)
}

func lowerKeys(in map[string][]string) map[string][]string {
	if in == nil {
		return nil
	}
	out := make(map[string][]string, len(in))
	for group, patterns := range in {
		key := strings.ToLower(group)
		out[key] = append(out[key], patterns...)
	}
	return out
}

// Validate rejects malformed patterns and a policy that grants nothing.
func (p *Policy) Validate() error {
	var errs []error
	if len(p.Grants) == 0 {
		errs = append(errs, errors.New("policy grants nothing"))
	}
	for _, section := range []struct {
		name  string
		rules map[string][]string
	}{{"grants", p.Grants}, {"denials", p.Denials}} {
		for _, group := range slices.Sorted(maps.Keys(section.rules)) {
			for _, pattern := range section.rules[group] {
				if !validPattern(pattern) {
					errs = append(errs, fmt.Errorf("%s.%s: malformed pattern %q", section.name, group, pattern))
				}
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("authorization: %w", errors.Join(errs...))
	}
	return nil
}

// Check evaluates command against the union of groups. Denials win
// over grants regardless of which group carries them.
func (p *Policy) Check(groups []string, command string) Result {
	if len(groups) == 0 {
		return Result{Decision: Deny, Reason: ReasonNoGroups}
	}

	var granted Result
	for _, group := range groups {
		group = strings.ToLower(group)
		if pattern, ok := firstMatch(p.Denials[group], command); ok {
			return Result{Decision: Deny, Reason: ReasonDenied, Group: group, Pattern: pattern}
		}
		if granted.Decision == Allow {
			continue
		}
		if pattern, ok := firstMatch(p.Grants[group], command); ok {
			granted = Result{Decision: Allow, Group: group, Pattern: pattern}
		}
	}
	if granted.Decision == Allow {
		return granted
	}
	return Result{Decision: Deny, Reason: ReasonNoGrant}
}
