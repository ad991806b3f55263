// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds the content-site bot password and the chat
// server password in memory that is locked against swap and excluded
// from core dumps.
//
// [Buffer] memory is allocated with mmap(MAP_ANONYMOUS) outside the Go
// heap, mlocked, and marked MADV_DONTDUMP. Close zeroes and unmaps it.
// [ReadFromPath] loads a secret from a file or stdin; [Zero] scrubs
// heap copies once they have been moved into a Buffer.
package secret
