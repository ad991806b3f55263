// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Wikirc-credentials manages the age keypair and sealed password used by
// wikirc. Subcommands: keygen, seal, version.
package main
