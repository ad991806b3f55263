// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authorization

import (
	"strings"
	"testing"
)

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()

	if result := policy.Check([]string{"admin"}, "blockdelete"); !result.Allowed() {
		t.Errorf("admin denied blockdelete: %v", result.Reason)
	}
	if result := policy.Check([]string{"Admin"}, "adduser"); !result.Allowed() {
		t.Error("group matching is case-sensitive")
	}
	result := policy.Check([]string{"user"}, "block")
	if result.Allowed() || result.Reason != ReasonNoGrant {
		t.Errorf("user: got %v/%v, want deny/no matching grant", result.Decision, result.Reason)
	}
	result = policy.Check(nil, "wikihelp")
	if result.Allowed() || result.Reason != ReasonNoGroups {
		t.Errorf("no groups: got %v/%v, want deny/no groups", result.Decision, result.Reason)
	}
}

const patrollerPolicy = `
grants:
  Admin: ["*"]
  patroller: [block, delete, revert, "*help"]
  helper: ["*"]
denials:
  helper: ["remove*", adduser]
`

func TestParsePolicyCheck(t *testing.T) {
	policy, err := ParsePolicy([]byte(patrollerPolicy))
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}

	tests := []struct {
		name    string
		groups  []string
		command string
		want    Decision
		reason  DenyReason
		group   string
	}{
		{"admin lower-cased", []string{"admin"}, "removeuser", Allow, 0, "admin"},
		{"patroller granted", []string{"patroller"}, "revert", Allow, 0, "patroller"},
		{"patroller help", []string{"patroller"}, "permshelp", Allow, 0, "patroller"},
		{"patroller not granted", []string{"patroller"}, "blockdelete", Deny, ReasonNoGrant, ""},
		{"helper denied", []string{"helper"}, "removegroup", Deny, ReasonDenied, "helper"},
		{"helper allowed", []string{"helper"}, "addusergroup", Allow, 0, "helper"},
		{"denial beats another group's grant", []string{"admin", "helper"}, "adduser", Deny, ReasonDenied, "helper"},
		{"unknown group", []string{"visitor"}, "block", Deny, ReasonNoGrant, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := policy.Check(tt.groups, tt.command)
			if result.Decision != tt.want {
				t.Fatalf("Decision = %v, want %v", result.Decision, tt.want)
			}
			if tt.want == Deny && result.Reason != tt.reason {
				t.Errorf("Reason = %v, want %v", result.Reason, tt.reason)
			}
			if result.Group != tt.group {
				t.Errorf("Group = %q, want %q", result.Group, tt.group)
			}
		})
	}
}

func TestParsePolicyRejects(t *testing.T) {
	tests := []struct {
		name     string
		document string
		want     string
	}{
		{"malformed pattern", "grants:\n  admin: [\"[\"]\n", "malformed pattern"},
		{"empty grants", "grants: {}\n", "grants nothing"},
		{"unknown key", "grant:\n  admin: [\"*\"]\n", "grant"},
		{"not yaml", "grants: [", "parsing policy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePolicy([]byte(tt.document))
			if err == nil {
				t.Fatal("ParsePolicy succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
