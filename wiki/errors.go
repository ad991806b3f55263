// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wiki

import (
	"errors"
	"fmt"
)

// RemoteError is any failure of a content-site call. Code and Info come
// from the API's error object; for transport failures Code is empty and
// Err holds the cause. Callers use errors.As:
//
//	var remoteErr *wiki.RemoteError
//	if errors.As(err, &remoteErr) && remoteErr.Code == wiki.CodeAlreadyRolled { ... }
type RemoteError struct {
	// Action is the API action or gateway step, e.g. "block", "login".
	Action string

	Code string
	Info string

	// StatusCode is the HTTP status, or zero when no response arrived.
	StatusCode int

	Err error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("wiki: %s: %s: %s", e.Action, e.Code, e.Info)
	case e.StatusCode != 0:
		return fmt.Sprintf("wiki: %s: HTTP %d: %s", e.Action, e.StatusCode, e.Info)
	case e.Err != nil:
		return fmt.Sprintf("wiki: %s: %v", e.Action, e.Err)
	default:
		return fmt.Sprintf("wiki: %s failed", e.Action)
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// API error codes the client reacts to.
const (
	CodeBadToken         = "badtoken"
	CodeAssertUserFailed = "assertuserfailed"
	CodeAlreadyRolled    = "alreadyrolled"
	CodeOnlyAuthor       = "onlyauthor"
	CodeMissingTitle     = "missingtitle"
	CodeAlreadyBlocked   = "alreadyblocked"
)

// IsCode reports whether err is a *RemoteError with the given API code.
func IsCode(err error, code string) bool {
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr) && remoteErr.Code == code
}
