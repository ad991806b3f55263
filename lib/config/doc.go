// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the wikirc YAML configuration file.
//
// Configuration comes from exactly one file named on the command line.
// There is no search path and environment variables never override a
// value; the only expansion is ${VAR} and ${VAR:-default} inside the
// file-path keys (permissions_file, policy_file, journal_path).
//
// When the file is missing, [LoadFile] returns an error matching
// fs.ErrNotExist and the caller writes [Template] in its place so the
// operator has something to fill in.
//
// Key exports:
//
//   - [Config] -- flat struct mirroring the YAML keys
//   - [Default] -- every optional key at its default
//   - [LoadFile], [Config.Validate], [WriteTemplate]
package config
