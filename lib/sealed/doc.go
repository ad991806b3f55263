// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts the content-site bot password at rest with
// filippo.io/age so the configuration file never holds it in plain
// text.
//
// [Encrypt] seals plaintext to one or more age x25519 recipients and
// returns base64 ciphertext suitable for a YAML string value.
// [Decrypt] opens it with an identity held in a [secret.Buffer].
// [GenerateKeypair] and [ReadIdentity] manage the identity file that
// wikirc-credentials writes and wikirc reads at startup.
package sealed
