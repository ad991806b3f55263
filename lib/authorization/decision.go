// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authorization

// Decision is the outcome of an authorization check.
type Decision int

const (
	// Deny means the command is not permitted.
	Deny Decision = iota

	// Allow means the command is permitted.
	Allow
)

// String returns "allow" or "deny".
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// DenyReason describes why a check was denied.
type DenyReason int

const (
	// ReasonNoGrant means none of the groups grants the command.
	ReasonNoGrant DenyReason = iota

	// ReasonDenied means a denial overrode a grant.
	ReasonDenied

	// ReasonNoGroups means the requester has no groups at all.
	ReasonNoGroups
)

// String returns a human-readable reason.
func (r DenyReason) String() string {
	switch r {
	case ReasonNoGrant:
		return "no matching grant"
	case ReasonDenied:
		return "explicit denial"
	case ReasonNoGroups:
		return "requester has no groups"
	default:
		return "unknown"
	}
}

// Result is the decision plus the rule that produced it, for logging.
type Result struct {
	Decision Decision

	// Reason is only meaningful when Decision is Deny.
	Reason DenyReason

	// Group and Pattern identify the grant that allowed the command, or
	// the denial that blocked it. Both are empty for ReasonNoGrant and
	// ReasonNoGroups.
	Group   string
	Pattern string
}

// Allowed reports whether the decision is Allow.
func (r Result) Allowed() bool {
	return r.Decision == Allow
}
