// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package coordinator owns the moving parts between the chat transport
// and the content site: the one serialized content-site session, the
// inbound command queue, the outbound line queue, and the lifecycle of
// the change poller and the command pipeline.
//
// The chat transport only ever calls [Coordinator.Deliver] for lines it
// receives and drains [Coordinator.Outbound] for lines to send. It
// never touches the session or the permission store.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/wikirc/lib/clock"
	"github.com/bureau-foundation/wikirc/pipeline"
	"github.com/bureau-foundation/wikirc/poller"
	"github.com/bureau-foundation/wikirc/wiki"
)

// Default queue capacities. The outbound queue absorbs a full poll
// batch plus replies while the transport is paced at one line per
// second.
const (
	DefaultInboundBuffer  = 64
	DefaultOutboundBuffer = 256
)

var (
	// ErrStopped is returned by Deliver once Stop has been called.
	ErrStopped = errors.New("coordinator: stopped")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("coordinator: already started")
)

// Config configures a Coordinator.
type Config struct {
	// Gateway is the content-site client. The coordinator wraps it in
	// a wiki.Session; nothing else may call it.
	Gateway wiki.Gateway

	Permissions pipeline.Permissions
	Policy      pipeline.Policy

	// Journal is optional.
	Journal pipeline.Recorder

	Clock clock.Clock

	// PollInterval and PollStart configure the poller; zero values
	// take the poller's defaults.
	PollInterval time.Duration
	PollStart    time.Time

	Sigil   string
	Workers int

	InboundBuffer  int
	OutboundBuffer int

	Logger *slog.Logger
}

// Coordinator wires the poller and the pipeline to the two queues.
type Coordinator struct {
	poller   *poller.Poller
	pipeline *pipeline.Pipeline
	inbound  chan pipeline.Envelope
	outbound chan string
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	stopped chan struct{}
	done    chan struct{}
}

// New builds the session, poller and pipeline. Nothing runs until
// Start.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("coordinator: gateway is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.InboundBuffer <= 0 {
		cfg.InboundBuffer = DefaultInboundBuffer
	}
	if cfg.OutboundBuffer <= 0 {
		cfg.OutboundBuffer = DefaultOutboundBuffer
	}

	session := wiki.NewSession(cfg.Gateway)
	outbound := make(chan string, cfg.OutboundBuffer)

	changePoller, err := poller.New(poller.Config{
		Gateway:  session,
		Outbound: outbound,
		Clock:    cfg.Clock,
		Interval: cfg.PollInterval,
		Start:    cfg.PollStart,
		Logger:   cfg.Logger.With("component", "poller"),
	})
	if err != nil {
		return nil, err
	}

	commandPipeline, err := pipeline.New(pipeline.Config{
		Gateway:     session,
		Permissions: cfg.Permissions,
		Policy:      cfg.Policy,
		Outbound:    outbound,
		Journal:     cfg.Journal,
		Sigil:       cfg.Sigil,
		Workers:     cfg.Workers,
		Clock:       cfg.Clock,
		Logger:      cfg.Logger.With("component", "pipeline"),
	})
	if err != nil {
		return nil, err
	}

	return &Coordinator{
		poller:   changePoller,
		pipeline: commandPipeline,
		inbound:  make(chan pipeline.Envelope, cfg.InboundBuffer),
		outbound: outbound,
		logger:   cfg.Logger,
		stopped:  make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the poller and the command dispatcher. They run until
// Stop is called or ctx is cancelled; cancelling ctx is equivalent to
// Stop.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return ErrAlreadyStarted
	}
	select {
	case <-c.stopped:
		return ErrStopped
	default:
	}
	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	var waitGroup sync.WaitGroup
	waitGroup.Add(2)
	go func() {
		defer waitGroup.Done()
		c.poller.Run(runCtx)
	}()
	go func() {
		defer waitGroup.Done()
		c.pipeline.Run(runCtx, c.inbound)
	}()
	go func() {
		<-runCtx.Done()
		c.Stop()
		waitGroup.Wait()
		if dropped := c.drainInbound(); dropped > 0 {
			c.logger.Warn("commands left unhandled at shutdown", "dropped", dropped)
		}
		close(c.done)
		c.logger.Info("coordinator stopped")
	}()

	c.logger.Info("coordinator started")
	return nil
}

// Deliver hands one chat line to the pipeline. Lines that are not
// commands are dropped here. Deliver blocks while the inbound queue is
// full, until ctx ends or the coordinator stops.
func (c *Coordinator) Deliver(ctx context.Context, identity, origin, line string) error {
	select {
	case <-c.stopped:
		return ErrStopped
	default:
	}

	envelope, ok := c.pipeline.Parse(identity, origin, line)
	if !ok {
		return nil
	}
	select {
	case c.inbound <- envelope:
		return nil
	case <-c.stopped:
		return ErrStopped
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) drainInbound() int {
	dropped := 0
	for {
		select {
		case <-c.inbound:
			dropped++
		default:
			return dropped
		}
	}
}

// Outbound returns the queue of lines for the chat transport to send.
// It is never closed.
func (c *Coordinator) Outbound() <-chan string {
	return c.outbound
}

// Cursor reports the poller's change cursor.
func (c *Coordinator) Cursor() time.Time {
	return c.poller.Cursor()
}

// Stop stops the poller's ticks and the dispatcher's dequeuing. Work in
// flight finishes in the background; use Wait to block on it. Stop is
// idempotent.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.stopped:
		return
	default:
	}
	close(c.stopped)
	if c.cancel != nil {
		c.cancel()
	}
	if !c.started {
		close(c.done)
	}
}

// Wait blocks until the poller, the dispatcher and every in-flight
// remote command have returned.
func (c *Coordinator) Wait() {
	<-c.done
}

// Done is closed when Wait would return.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}
