// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package authorization decides which chat commands a permission group
// may run.
//
// A [Policy] maps group names to grants and denials. Both are lists of
// command-name patterns using path.Match syntax: "*" matches every
// command, "remove*" matches removeuser, removegroup and
// removehostmask. A requester is allowed when at least one of their
// groups grants the command and none of their groups denies it. A
// malformed pattern never matches.
//
//	grants:
//	  admin: ["*"]
//	  patroller: [block, delete, revert, wikihelp]
//	denials:
//	  patroller: [blockdelete]
//
// With no policy file the built-in policy grants admin everything and
// nothing else.
//
// [Authorizer] holds the active policy behind a read/write lock and
// reloads it from disk on request, skipping files whose blake3
// fingerprint has not changed.
package authorization
