// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration for values wikirc stores
// in binary columns, such as the argument lists recorded in the
// moderation journal.
//
// JSON stays the format for everything a human edits or a remote
// server speaks: the permission file and the wiki API. CBOR is used
// only where the bytes never leave the process's own storage.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same value always yields the same bytes:
//
//	data, err := codec.Marshal(arguments)
//	err = codec.Unmarshal(data, &arguments)
package codec
