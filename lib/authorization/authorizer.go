// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authorization

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/zeebo/blake3"
)

// Authorizer holds the active Policy and reloads it from a file.
// Checks take a read lock; Reload swaps the policy under the write
// lock only after the new file has parsed and validated, so a broken
// edit leaves the previous policy in force.
type Authorizer struct {
	path   string
	logger *slog.Logger

	mu          sync.RWMutex
	policy      *Policy
	fingerprint [32]byte
}

// NewAuthorizer loads the policy at path. An empty path selects
// DefaultPolicy, and Reload becomes a no-op.
func NewAuthorizer(path string, logger *slog.Logger) (*Authorizer, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	authorizer := &Authorizer{path: path, logger: logger, policy: DefaultPolicy()}
	if path == "" {
		return authorizer, nil
	}
	if _, err := authorizer.Reload(); err != nil {
		return nil, err
	}
	return authorizer, nil
}

// Check evaluates command for a requester holding groups.
func (a *Authorizer) Check(groups []string, command string) Result {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.policy.Check(groups, command)
}

// Reload re-reads the policy file. It reports whether the policy
// changed; an unchanged fingerprint skips parsing.
func (a *Authorizer) Reload() (bool, error) {
	if a.path == "" {
		return false, nil
	}
	data, err := os.ReadFile(a.path)
	if err != nil {
		return false, fmt.Errorf("authorization: reading policy: %w", err)
	}
	fingerprint := blake3.Sum256(data)

	a.mu.RLock()
	unchanged := a.fingerprint == fingerprint
	a.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	policy, err := ParsePolicy(data)
	if err != nil {
		return false, err
	}

	a.mu.Lock()
	a.policy = policy
	a.fingerprint = fingerprint
	a.mu.Unlock()

	a.logger.Info("authorization policy loaded",
		"path", a.path,
		"groups", len(policy.Grants),
		"fingerprint", hex.EncodeToString(fingerprint[:8]),
	)
	return true, nil
}
