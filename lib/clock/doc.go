// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock lets the poller and the chat transport wait on time
// without calling the time package directly, so tests can drive them
// deterministically.
//
// Production wiring passes Real(). Tests pass Fake(start) and move time
// with Advance:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go poller.Run(ctx)
//	c.WaitForTimers(1)     // the poll ticker is registered
//	c.Advance(time.Minute) // exactly one tick fires
//
// WaitForTimers closes the race between a goroutine registering its
// ticker or sleep and the test advancing past the deadline.
package clock
