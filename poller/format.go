// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"strings"

	"github.com/bureau-foundation/wikirc/wiki"
)

// Format renders change as a chat line. The second result is false for
// kinds that are not announced.
func Format(change wiki.Change) (string, bool) {
	comment := change.Comment
	if comment == "" {
		comment = "-"
	}

	switch change.Kind {
	case wiki.ChangeNew:
		return change.Actor + " made new page titled " + change.Title + " with comment: " + comment, true
	case wiki.ChangeEdit:
		return change.Actor + " edited " + change.Title + " with comment: " + comment, true
	case wiki.ChangeLog:
		switch change.LogType {
		case "newusers":
			return "New user: " + change.Actor, true
		case "block":
			return change.Actor + " blocked user " + stripNamespace(change.Title) + " with comment " + comment, true
		case "delete":
			return change.Actor + " deleted page " + change.Title + " with comment " + comment, true
		}
	}
	return "", false
}

// stripNamespace turns "User:Spammer" into "Spammer".
func stripNamespace(title string) string {
	if _, name, found := strings.Cut(title, ":"); found {
		return name
	}
	return title
}
