// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the SQLite database behind the moderation
// journal.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool and applies the same
// pragmas to every connection:
//
//   - journal_mode=WAL so journal queries never block command writes
//   - synchronous=NORMAL: rows survive a process crash, not a power cut
//   - busy_timeout=5000
//   - temp_store=MEMORY
//
// [Config.Schema] is executed on every new connection, so it must be
// idempotent (CREATE ... IF NOT EXISTS). Callers either Take/Put
// connections themselves or use [Pool.With].
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   "wikirc_journal.db",
//	    Schema: schema,
//	})
//	err = pool.With(ctx, func(conn *sqlite.Conn) error {
//	    return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args})
//	})
package sqlitepool
