// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package poller relays content-site recent changes to the chat
// channel.
//
// A Poller owns the change cursor: the earliest timestamp that has not
// yet been announced. Each cycle fetches every change at or after the
// cursor, queues one chat line per announced change in fetch order, and
// only then moves the cursor one second past the last change. The
// recentchanges query treats its start timestamp as inclusive, so
// without that one-second step the boundary change would be announced
// again by the next cycle. A failed fetch, or a cancellation while the
// batch is being queued, leaves the cursor where it was and the same
// window is fetched again on the next tick.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/wikirc/lib/clock"
	"github.com/bureau-foundation/wikirc/wiki"
)

// DefaultInterval is the time between poll cycles.
const DefaultInterval = time.Minute

// CursorStep is the smallest timestamp increment the content site
// distinguishes.
const CursorStep = time.Second

// State is the poller's position in its cycle.
type State int32

const (
	Idle State = iota
	Fetching
	Emitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Emitting:
		return "emitting"
	default:
		return "unknown"
	}
}

// Config configures a Poller.
type Config struct {
	// Gateway is the serialized content-site session.
	Gateway wiki.Gateway

	// Outbound receives one chat line per announced change.
	Outbound chan<- string

	// Clock drives the interval ticker and the initial cursor.
	// Defaults to clock.Real().
	Clock clock.Clock

	// Interval between cycles. Default: DefaultInterval.
	Interval time.Duration

	// Start is the initial cursor. Default: the clock's current time
	// truncated to the second, so history before startup is not
	// replayed.
	Start time.Time

	Logger *slog.Logger
}

// Poller periodically announces recent changes. Run must be called at
// most once.
type Poller struct {
	gateway  wiki.Gateway
	outbound chan<- string
	clock    clock.Clock
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cursor time.Time
	state  atomic.Int32
}

// New validates cfg and returns a Poller.
func New(cfg Config) (*Poller, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("poller: gateway is required")
	}
	if cfg.Outbound == nil {
		return nil, errors.New("poller: outbound channel is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Start.IsZero() {
		cfg.Start = cfg.Clock.Now().UTC().Truncate(time.Second)
	}
	return &Poller{
		gateway:  cfg.Gateway,
		outbound: cfg.Outbound,
		clock:    cfg.Clock,
		interval: cfg.Interval,
		logger:   cfg.Logger,
		cursor:   cfg.Start,
	}, nil
}

// Cursor returns the earliest timestamp not yet announced.
func (p *Poller) Cursor() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// State returns the poller's current state.
func (p *Poller) State() State {
	return State(p.state.Load())
}

// Run polls once immediately and then on every tick. Blocks until ctx
// is cancelled; a fetch already in flight is allowed to finish.
func (p *Poller) Run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("poller started", "interval", p.interval, "cursor", p.Cursor())
	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped", "cursor", p.Cursor())
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			p.poll(ctx)
		}
	}
}

// poll runs one cycle. It returns the number of lines queued.
func (p *Poller) poll(ctx context.Context) int {
	defer p.state.Store(int32(Idle))

	cursor := p.Cursor()
	p.state.Store(int32(Fetching))
	changes, err := p.gateway.FetchChanges(context.WithoutCancel(ctx), cursor)
	if err != nil {
		p.logger.Warn("fetching recent changes failed",
			"cursor", cursor.Format(wiki.TimestampFormat),
			"error", err,
		)
		return 0
	}
	if len(changes) == 0 {
		return 0
	}

	p.state.Store(int32(Emitting))
	queued := 0
	for _, change := range changes {
		line, ok := Format(change)
		if !ok {
			continue
		}
		if !p.enqueue(ctx, line) {
			p.logger.Warn("poll cycle cancelled before batch was queued",
				"queued", queued,
				"cursor", cursor.Format(wiki.TimestampFormat),
			)
			return queued
		}
		queued++
	}

	p.advanceCursor(changes[len(changes)-1].Timestamp)
	p.logger.Debug("recent changes relayed",
		"changes", len(changes),
		"queued", queued,
		"cursor", p.Cursor().Format(wiki.TimestampFormat),
	)
	return queued
}

// enqueue sends line, blocking while the outbound channel is full. It
// gives up only when ctx is cancelled and the channel has no room.
func (p *Poller) enqueue(ctx context.Context, line string) bool {
	select {
	case p.outbound <- line:
		return true
	default:
	}
	select {
	case p.outbound <- line:
		return true
	case <-ctx.Done():
		return false
	}
}

// advanceCursor moves the cursor one CursorStep past last, the
// timestamp of the final change in a fully queued batch. The fetch is
// inclusive of its start, so the cursor must never equal a timestamp
// that has already been announced. The cursor never moves backwards.
func (p *Poller) advanceCursor(last time.Time) {
	next := last.Add(CursorStep)
	p.mu.Lock()
	defer p.mu.Unlock()
	if next.After(p.cursor) {
		p.cursor = next
	}
}
