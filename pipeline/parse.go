// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultSigil marks a chat line as a command.
const DefaultSigil = "."

var (
	// ErrNotCommand means the line does not start with the sigil.
	ErrNotCommand = errors.New("pipeline: not a command")

	// ErrUnknownCommand means the line names a command outside the
	// vocabulary. Other bots share the channel, so these are ignored.
	ErrUnknownCommand = errors.New("pipeline: unknown command")

	// ErrMalformed means the line starts with the sigil but carries no
	// command name. It is logged and dropped.
	ErrMalformed = errors.New("pipeline: malformed command")
)

// Envelope is one parsed chat command.
type Envelope struct {
	Command Command
	Args    []string

	// Requester is the sender's nickname, Origin the host part of the
	// sender's hostmask.
	Requester string
	Origin    string

	// RequestID correlates log lines and journal entries for one
	// command.
	RequestID uuid.UUID
}

// Parse splits line into a command envelope. The first whitespace
// separated token, minus the sigil, names the command; the remaining
// tokens are arguments verbatim. There is no quoting.
func Parse(sigil, requester, origin, line string) (Envelope, error) {
	if sigil == "" {
		sigil = DefaultSigil
	}
	rest, found := strings.CutPrefix(line, sigil)
	if !found {
		return Envelope{}, ErrNotCommand
	}
	// ". foo" is a sigil with no name, not a command named "foo".
	fields := strings.Fields(rest)
	if len(fields) == 0 || startsWithSpace(rest) {
		return Envelope{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	command, ok := Lookup(fields[0])
	if !ok {
		return Envelope{}, fmt.Errorf("%w: %s", ErrUnknownCommand, strings.ToLower(fields[0]))
	}
	args := fields[1:]
	if len(args) == 0 {
		args = nil
	}
	return Envelope{
		Command:   command,
		Args:      args,
		Requester: requester,
		Origin:    origin,
		RequestID: uuid.New(),
	}, nil
}

func startsWithSpace(s string) bool {
	return s != "" && (s[0] == ' ' || s[0] == '\t')
}
