// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Wikirc relays recent changes from a MediaWiki site to an IRC channel
// and runs moderation commands (block, delete, revert, and permission
// management) issued by trusted users in that channel. On first run it
// writes a configuration template and exits. SIGHUP reloads the
// authorization policy file.
package main
