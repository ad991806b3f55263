// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal keeps a durable record of moderation commands: who
// asked for what, from where, and how it turned out.
//
// Entries live in a single SQLite table. Command arguments are stored
// as a CBOR array so that titles containing any character round-trip
// exactly. The journal is an audit trail, not a queue: nothing is ever
// replayed from it, and a failed write is reported to the caller to
// log but never blocks the command it describes.
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/wikirc/lib/codec"
	"github.com/bureau-foundation/wikirc/lib/sqlitepool"
)

// Outcome is how a journaled command ended.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeDenied    Outcome = "denied"
)

// Entry is one journaled command.
type Entry struct {
	RequestID string
	Command   string
	Args      []string
	Requester string
	Origin    string
	Outcome   Outcome

	// Error is the failure detail for OutcomeFailed. It is kept
	// server-side only; chat only ever sees a generic message.
	Error string

	Duration time.Duration
	Time     time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id  TEXT    NOT NULL,
	command     TEXT    NOT NULL,
	args        BLOB    NOT NULL,
	requester   TEXT    NOT NULL,
	origin      TEXT    NOT NULL,
	outcome     TEXT    NOT NULL,
	error       TEXT    NOT NULL DEFAULT '',
	duration_us INTEGER NOT NULL,
	recorded_at TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS entries_requester ON entries (requester);
`

// Journal appends entries to an SQLite database.
type Journal struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// Open opens or creates the journal database at path.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal: path is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   path,
		Schema: schema,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	return &Journal{pool: pool, logger: logger}, nil
}

// Record appends entry. A zero Time is replaced with the current time.
func (j *Journal) Record(ctx context.Context, entry Entry) error {
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	args, err := codec.Marshal(nonNil(entry.Args))
	if err != nil {
		return fmt.Errorf("journal: encoding arguments: %w", err)
	}

	err = j.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			INSERT INTO entries
				(request_id, command, args, requester, origin, outcome, error, duration_us, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				entry.RequestID,
				entry.Command,
				args,
				entry.Requester,
				entry.Origin,
				string(entry.Outcome),
				entry.Error,
				entry.Duration.Microseconds(),
				entry.Time.UTC().Format(time.RFC3339Nano),
			}})
	})
	if err != nil {
		return fmt.Errorf("journal: recording %s %s: %w", entry.Command, entry.RequestID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	var entries []Entry
	err := j.pool.With(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT request_id, command, args, requester, origin, outcome, error, duration_us, recorded_at
			FROM entries ORDER BY id DESC LIMIT ?`,
			&sqlitex.ExecOptions{
				Args: []any{limit},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					entry, err := scanEntry(stmt)
					if err != nil {
						return err
					}
					entries = append(entries, entry)
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("journal: reading recent entries: %w", err)
	}
	return entries, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.pool.Close()
}

func scanEntry(stmt *sqlite.Stmt) (Entry, error) {
	entry := Entry{
		RequestID: stmt.ColumnText(0),
		Command:   stmt.ColumnText(1),
		Requester: stmt.ColumnText(3),
		Origin:    stmt.ColumnText(4),
		Outcome:   Outcome(stmt.ColumnText(5)),
		Error:     stmt.ColumnText(6),
		Duration:  time.Duration(stmt.ColumnInt64(7)) * time.Microsecond,
	}

	raw := make([]byte, stmt.ColumnLen(2))
	stmt.ColumnBytes(2, raw)
	if err := codec.Unmarshal(raw, &entry.Args); err != nil {
		return Entry{}, fmt.Errorf("decoding arguments of %s: %w", entry.RequestID, err)
	}
	if len(entry.Args) == 0 {
		entry.Args = nil
	}

	recorded, err := time.Parse(time.RFC3339Nano, stmt.ColumnText(8))
	if err != nil {
		return Entry{}, fmt.Errorf("parsing time of %s: %w", entry.RequestID, err)
	}
	entry.Time = recorded
	return entry, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
