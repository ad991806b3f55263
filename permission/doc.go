// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package permission stores who may command the bot: for each chat
// user, the permission groups they belong to and the hostmasks they are
// trusted from.
//
// The store is a JSON file keyed by lower-cased user name:
//
//	{
//	    "alice": {
//	        "groups": ["admin"],
//	        "hostmasks": ["alice@staff.example.org"]
//	    }
//	}
//
// Hand edits may use comments and trailing commas. Every mutation
// rewrites the whole file atomically before returning; if the write
// fails the in-memory state is rolled back, so memory and disk never
// disagree.
//
// [Store.AuthorizedGroups] is the only read used for command
// authorization and fails closed: an unknown user or an untrusted
// hostmask yields no groups.
package permission
