// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wiki

import (
	"context"
	"sync"
	"time"
)

// Session is the only path to the content site. It owns a Gateway and
// a mutex; each method holds the mutex for exactly one remote call, so
// no two calls are ever in flight and a long multi-step command never
// starves the poller. Session itself satisfies Gateway.
type Session struct {
	mu      sync.Mutex
	gateway Gateway
}

// NewSession wraps gateway. Nothing else may call gateway directly.
func NewSession(gateway Gateway) *Session {
	return &Session{gateway: gateway}
}

func (s *Session) FetchChanges(ctx context.Context, since time.Time) ([]Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gateway.FetchChanges(ctx, since)
}

func (s *Session) FetchContributions(ctx context.Context, user string) ([]Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gateway.FetchContributions(ctx, user)
}

func (s *Session) BlockUser(ctx context.Context, user, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gateway.BlockUser(ctx, user, reason)
}

func (s *Session) DeletePage(ctx context.Context, title, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gateway.DeletePage(ctx, title, reason)
}

func (s *Session) RollbackPage(ctx context.Context, title, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gateway.RollbackPage(ctx, title, actor)
}

var _ Gateway = (*Session)(nil)
