// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wiki

import (
	"context"
	"time"
)

// TimestampFormat is the MediaWiki API timestamp layout. The API has
// one-second resolution.
const TimestampFormat = "2006-01-02T15:04:05Z"

// Default reasons used when a command does not supply one.
const (
	DefaultBlockReason  = "spambot"
	DefaultDeleteReason = "spam"
)

// ChangeKind is the recentchanges "type" field.
type ChangeKind string

const (
	ChangeNew  ChangeKind = "new"
	ChangeEdit ChangeKind = "edit"
	ChangeLog  ChangeKind = "log"
)

// Change is one recent-changes record.
type Change struct {
	Kind ChangeKind

	// LogType is set for ChangeLog records: "newusers", "block",
	// "delete", and so on.
	LogType string

	Actor     string
	Title     string
	Comment   string
	Timestamp time.Time
}

// Contribution is one edit in a user's contribution history.
type Contribution struct {
	Title string

	// New is true when this edit created the page.
	New bool

	Timestamp time.Time
}

// Gateway is the content-site API used by the poller and the command
// pipeline. Implementations are not required to be safe for concurrent
// use; callers share one through a Session.
type Gateway interface {
	// FetchChanges returns changes at or after since, oldest first.
	FetchChanges(ctx context.Context, since time.Time) ([]Change, error)

	// FetchContributions returns the user's edits, oldest first.
	FetchContributions(ctx context.Context, user string) ([]Contribution, error)

	// BlockUser blocks user indefinitely with account creation disabled
	// and autoblock enabled.
	BlockUser(ctx context.Context, user, reason string) error

	// DeletePage deletes title.
	DeletePage(ctx context.Context, title, reason string) error

	// RollbackPage reverts the consecutive top edits to title made by
	// actor.
	RollbackPage(ctx context.Context, title, actor string) error
}
