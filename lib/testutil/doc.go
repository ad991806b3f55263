// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds the channel helpers shared by the wikirc test
// suites.
//
// [RequireReceive] and [RequireNoReceive] wrap the select-with-timeout
// pattern so individual tests never call time.After themselves. These
// are the only real wall-clock waits in the tests; everything else is
// driven by lib/clock.
//
// Helpers call t.Fatalf on failure since setup failures are not
// recoverable.
package testutil
