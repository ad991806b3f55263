// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wiki talks to the content site: it reads recent changes and
// user contributions and performs the moderation actions (block,
// delete, rollback) that chat commands request.
//
// [Gateway] is the narrow interface the rest of wikirc depends on.
// [MediaWiki] implements it over the MediaWiki action API. Every
// failure, whether transport or API-level, is a [*RemoteError].
//
// The content-site login is a single stateful session (cookies plus
// CSRF and rollback tokens), so all remote calls go through one
// [Session], which holds a mutex for the duration of each call and no
// longer. [RemoveNewPages] builds the block-and-clean-up sequence from
// individual Session calls so the poller can interleave between them.
package wiki
