// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authorization

import "path"

// MatchCommand reports whether a command name matches a glob pattern.
// Malformed patterns return false so that a typo in the policy file can
// only ever take permissions away.
func MatchCommand(pattern, command string) bool {
	matched, err := path.Match(pattern, command)
	return err == nil && matched
}

// firstMatch returns the first pattern in patterns that matches
// command.
func firstMatch(patterns []string, command string) (string, bool) {
	for _, pattern := range patterns {
		if MatchCommand(pattern, command) {
			return pattern, true
		}
	}
	return "", false
}

// validPattern reports whether pattern is well-formed path.Match syntax.
func validPattern(pattern string) bool {
	_, err := path.Match(pattern, "")
	return err == nil
}
