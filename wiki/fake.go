// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wiki

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// Gateway method names as recorded in Call.Method.
const (
	MethodFetchChanges       = "FetchChanges"
	MethodFetchContributions = "FetchContributions"
	MethodBlockUser          = "BlockUser"
	MethodDeletePage         = "DeletePage"
	MethodRollbackPage       = "RollbackPage"
)

// Call is one recorded gateway invocation.
type Call struct {
	Method string
	Args   []string
}

// Fake is an in-memory Gateway for tests. FetchChanges behaves like the
// real adapter: inclusive of since, oldest first, 25 records plus any
// more sharing the last one's timestamp. Every call is recorded, and the fake tracks how many
// calls overlap so tests can assert that access is serialized.
type Fake struct {
	mu            sync.Mutex
	changes       []Change
	contributions map[string][]Contribution
	failures      map[string][]error
	gates         map[string]chan struct{}
	calls         []Call
	inFlight      int
	maxInFlight   int
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{
		contributions: make(map[string][]Contribution),
		failures:      make(map[string][]error),
		gates:         make(map[string]chan struct{}),
	}
}

// AddChanges appends to the recent-changes feed.
func (f *Fake) AddChanges(changes ...Change) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, changes...)
	slices.SortStableFunc(f.changes, func(a, b Change) int { return a.Timestamp.Compare(b.Timestamp) })
}

// SetContributions replaces user's contribution history.
func (f *Fake) SetContributions(user string, contributions ...Contribution) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contributions[user] = contributions
}

// FailNext makes the next call to method return err. Failures queue.
func (f *Fake) FailNext(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = append(f.failures[method], err)
}

// Gate makes calls to method block, after being recorded, until the
// returned function is called or the call's context ends.
func (f *Fake) Gate(method string) (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[method] = gate
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.gates, method)
			f.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns every recorded call in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CallsTo returns the recorded calls to method.
func (f *Fake) CallsTo(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matching []Call
	for _, call := range f.calls {
		if call.Method == method {
			matching = append(matching, call)
		}
	}
	return matching
}

// MaxInFlight returns the largest number of calls that ever overlapped.
func (f *Fake) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

// enter records the call and returns its queued failure, if any.
func (f *Fake) enter(ctx context.Context, method string, args ...string) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: method, Args: args})
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	gate := f.gates[method]
	var err error
	if queued := f.failures[method]; len(queued) > 0 {
		err = queued[0]
		f.failures[method] = queued[1:]
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
		}
	}
	return err
}

func (f *Fake) leave() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *Fake) FetchChanges(ctx context.Context, since time.Time) ([]Change, error) {
	defer f.leave()
	if err := f.enter(ctx, MethodFetchChanges, since.UTC().Format(TimestampFormat)); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []Change
	for _, change := range f.changes {
		if change.Timestamp.Before(since) {
			continue
		}
		if len(result) >= recentChangesLimit && !change.Timestamp.Equal(result[len(result)-1].Timestamp) {
			break
		}
		result = append(result, change)
	}
	return result, nil
}

func (f *Fake) FetchContributions(ctx context.Context, user string) ([]Contribution, error) {
	defer f.leave()
	if err := f.enter(ctx, MethodFetchContributions, user); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.contributions[user]), nil
}

func (f *Fake) BlockUser(ctx context.Context, user, reason string) error {
	defer f.leave()
	return f.enter(ctx, MethodBlockUser, user, reason)
}

func (f *Fake) DeletePage(ctx context.Context, title, reason string) error {
	defer f.leave()
	return f.enter(ctx, MethodDeletePage, title, reason)
}

func (f *Fake) RollbackPage(ctx context.Context, title, actor string) error {
	defer f.leave()
	return f.enter(ctx, MethodRollbackPage, title, actor)
}

// String renders a call as Method(arg, arg) for test failure messages.
func (c Call) String() string {
	return c.Method + "(" + strings.Join(c.Args, ", ") + ")"
}

var _ Gateway = (*Fake)(nil)
