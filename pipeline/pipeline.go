// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/wikirc/journal"
	"github.com/bureau-foundation/wikirc/lib/authorization"
	"github.com/bureau-foundation/wikirc/lib/clock"
	"github.com/bureau-foundation/wikirc/permission"
	"github.com/bureau-foundation/wikirc/wiki"
)

// DefaultWorkers bounds concurrent remote commands. Remote calls are
// serialized by the session anyway; the pool bounds how many commands
// may be waiting for it.
const DefaultWorkers = 4

// DenialMessage is the reply to an unauthorized command. It is the
// same for every command so it reveals nothing about the vocabulary.
const DenialMessage = "Incorrect permission group for this command."

// ErrUnauthorized is recorded when a requester may not run a command.
var ErrUnauthorized = errors.New("pipeline: unauthorized")

// UsageError reports a command given the wrong number of arguments.
type UsageError struct {
	Command Command
	Sigil   string
	Got     int
}

func (e *UsageError) Error() string {
	return "Incorrect usage, use " + e.Command.Usage(e.Sigil)
}

// Permissions is the subset of the permission store the pipeline uses.
type Permissions interface {
	AuthorizedGroups(name, origin string) ([]string, bool)
	AddUser(name, origin, group string) error
	AddGroup(name, group string) error
	AddOrigin(name, origin string) error
	RemoveUser(name string) error
	RemoveGroup(name, group string) error
	RemoveOrigin(name, origin string) error
}

// Policy maps groups to the commands they may run.
type Policy interface {
	Check(groups []string, command string) authorization.Result
}

// Recorder receives one entry per executed or denied command.
type Recorder interface {
	Record(ctx context.Context, entry journal.Entry) error
}

// Config configures a Pipeline.
type Config struct {
	// Gateway is the serialized content-site session.
	Gateway wiki.Gateway

	Permissions Permissions
	Policy      Policy

	// Outbound receives reply lines.
	Outbound chan<- string

	// Journal is optional.
	Journal Recorder

	// Sigil prefixes commands. Default: DefaultSigil.
	Sigil string

	// Workers bounds concurrent remote commands. Default:
	// DefaultWorkers.
	Workers int

	// Clock times commands for the journal. Default: clock.Real().
	Clock clock.Clock

	Logger *slog.Logger
}

// Pipeline authorizes and executes chat commands.
//
// Local commands run on the caller's goroutine. Remote commands are
// handed to a worker goroutine so a slow content-site call never
// delays the next chat line; at most Workers of them execute at once.
// Once the dispatch context is cancelled no new remote command starts,
// and the ones already running finish their remote call.
type Pipeline struct {
	gateway     wiki.Gateway
	permissions Permissions
	policy      Policy
	outbound    chan<- string
	journal     Recorder
	sigil       string
	clock       clock.Clock
	logger      *slog.Logger

	workers  chan struct{}
	inFlight sync.WaitGroup
}

// New validates cfg and returns a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Gateway == nil:
		return nil, errors.New("pipeline: gateway is required")
	case cfg.Permissions == nil:
		return nil, errors.New("pipeline: permissions are required")
	case cfg.Policy == nil:
		return nil, errors.New("pipeline: policy is required")
	case cfg.Outbound == nil:
		return nil, errors.New("pipeline: outbound channel is required")
	}
	if cfg.Sigil == "" {
		cfg.Sigil = DefaultSigil
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		gateway:     cfg.Gateway,
		permissions: cfg.Permissions,
		policy:      cfg.Policy,
		outbound:    cfg.Outbound,
		journal:     cfg.Journal,
		sigil:       cfg.Sigil,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		workers:     make(chan struct{}, cfg.Workers),
	}, nil
}

// Parse turns a chat line into an envelope. Lines that are not
// commands, or that name a command outside the vocabulary, are ignored
// without a log line at Info or above; malformed commands are logged
// and dropped. ok is false in all three cases.
func (p *Pipeline) Parse(requester, origin, line string) (envelope Envelope, ok bool) {
	envelope, err := Parse(p.sigil, requester, origin, line)
	switch {
	case err == nil:
		return envelope, true
	case errors.Is(err, ErrNotCommand):
	case errors.Is(err, ErrUnknownCommand):
		p.logger.Debug("ignoring unknown command", "requester", requester, "error", err)
	default:
		p.logger.Warn("dropping malformed command", "requester", requester, "origin", origin, "error", err)
	}
	return Envelope{}, false
}

// Run dispatches envelopes from inbound until ctx is cancelled or
// inbound is closed, then waits for in-flight remote commands.
func (p *Pipeline) Run(ctx context.Context, inbound <-chan Envelope) {
	defer p.inFlight.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case envelope, ok := <-inbound:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				p.logger.Warn("dropping command received during shutdown",
					"request_id", envelope.RequestID.String(),
					"command", envelope.Command.Name(),
					"requester", envelope.Requester,
				)
				return
			}
			p.Handle(ctx, envelope)
		}
	}
}

// Wait blocks until every started remote command has finished.
func (p *Pipeline) Wait() {
	p.inFlight.Wait()
}

// Handle authorizes envelope, checks its arguments, and executes it.
// Authorization comes first so that usage replies are only ever shown
// to people allowed to run the command.
func (p *Pipeline) Handle(ctx context.Context, envelope Envelope) {
	logger := p.logger.With(
		"request_id", envelope.RequestID.String(),
		"command", envelope.Command.Name(),
		"requester", envelope.Requester,
	)

	groups, _ := p.permissions.AuthorizedGroups(envelope.Requester, envelope.Origin)
	decision := p.policy.Check(groups, envelope.Command.Name())
	if !decision.Allowed() {
		logger.Info("command denied", "origin", envelope.Origin, "reason", decision.Reason.String(),
			"group", decision.Group, "pattern", decision.Pattern)
		p.record(ctx, envelope, journal.OutcomeDenied, ErrUnauthorized, 0)
		p.emit(ctx, DenialMessage)
		return
	}

	if len(envelope.Args) != envelope.Command.Arity() {
		usage := &UsageError{Command: envelope.Command, Sigil: p.sigil, Got: len(envelope.Args)}
		logger.Debug("command usage error", "args", len(envelope.Args))
		p.emit(ctx, usage.Error())
		return
	}

	switch envelope.Command.Kind() {
	case Local:
		p.execute(ctx, ctx, envelope, logger)
	case Remote:
		p.inFlight.Add(1)
		go p.runRemote(ctx, envelope, logger)
	}
}

// runRemote waits for a worker slot and executes envelope. The remote
// call runs on a context detached from dispatch cancellation so that a
// shutdown lets it finish.
func (p *Pipeline) runRemote(ctx context.Context, envelope Envelope, logger *slog.Logger) {
	defer p.inFlight.Done()
	select {
	case p.workers <- struct{}{}:
	case <-ctx.Done():
		logger.Warn("remote command not started before shutdown")
		return
	}
	defer func() { <-p.workers }()
	if ctx.Err() != nil {
		logger.Warn("remote command not started before shutdown")
		return
	}
	p.execute(context.WithoutCancel(ctx), ctx, envelope, logger)
}

// execute runs envelope on callCtx and emits its reply on replyCtx.
func (p *Pipeline) execute(callCtx, replyCtx context.Context, envelope Envelope, logger *slog.Logger) {
	start := p.clock.Now()
	reply, err := p.run(callCtx, envelope)
	duration := p.clock.Now().Sub(start)

	outcome := journal.OutcomeSucceeded
	if err != nil {
		outcome = journal.OutcomeFailed
		reply = p.failureReply(envelope, reply, err, logger)
	} else {
		logger.Info("command executed", "args", envelope.Args, "duration", duration)
	}
	p.record(callCtx, envelope, outcome, err, duration)
	p.emit(replyCtx, reply)
}

// run executes one command. A panic is converted into an error so one
// bad command cannot take the dispatcher down.
func (p *Pipeline) run(ctx context.Context, envelope Envelope) (reply string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			reply = ""
			err = fmt.Errorf("pipeline: panic running %s: %v", envelope.Command, recovered)
		}
	}()

	args := envelope.Args
	switch envelope.Command {
	case CommandBlock:
		if err := p.block(ctx, args[0]); err != nil {
			return "", err
		}
		return "User " + args[0] + " blocked", nil

	case CommandBlockDelete:
		return p.blockDelete(ctx, args[0])

	case CommandDelete:
		if err := p.gateway.DeletePage(ctx, args[0], wiki.DefaultDeleteReason); err != nil {
			return "", err
		}
		return "Page " + args[0] + " deleted", nil

	case CommandRevert:
		actor, title := args[0], args[1]
		if err := p.gateway.RollbackPage(ctx, title, actor); err != nil {
			return "", err
		}
		return "Page " + title + " reverted to previous edit", nil

	case CommandAddUser:
		if err := p.permissions.AddUser(args[0], args[1], args[2]); err != nil {
			return "", err
		}
		return "Created user " + args[0], nil

	case CommandAddUserGroup:
		if err := p.permissions.AddGroup(args[0], args[1]); err != nil {
			return "", err
		}
		return "Added user " + args[0] + " to group " + args[1], nil

	case CommandAddHostmask:
		if err := p.permissions.AddOrigin(args[0], args[1]); err != nil {
			return "", err
		}
		return "Added hostmask " + args[1] + " to user " + args[0], nil

	case CommandRemoveUser:
		if err := p.permissions.RemoveUser(args[0]); err != nil {
			return "", err
		}
		return "Removed user " + args[0], nil

	case CommandRemoveGroup:
		if err := p.permissions.RemoveGroup(args[0], args[1]); err != nil {
			return "", err
		}
		return "Removed user " + args[0] + " from group " + args[1], nil

	case CommandRemoveHostmask:
		if err := p.permissions.RemoveOrigin(args[0], args[1]); err != nil {
			return "", err
		}
		return "Removed hostmask " + args[1] + " from user " + args[0], nil

	case CommandWikiHelp:
		return wikiHelp(p.sigil), nil

	case CommandPermsHelp:
		return permsHelp(p.sigil), nil

	case CommandUnknown, commandCount:
	}
	return "", fmt.Errorf("pipeline: no handler for command %d", envelope.Command)
}

// blockDelete removes the user's pages and then blocks them. The block
// is attempted even when some pages could not be removed.
func (p *Pipeline) blockDelete(ctx context.Context, user string) (string, error) {
	cleanup, cleanupErr := wiki.RemoveNewPages(ctx, p.gateway, user)
	p.logger.Debug("user contributions removed",
		"user", user,
		"deleted", len(cleanup.Deleted),
		"reverted", len(cleanup.Reverted),
		"skipped", len(cleanup.Skipped),
	)
	if err := p.block(ctx, user); err != nil {
		return "", errors.Join(err, cleanupErr)
	}
	if cleanupErr != nil {
		return "User " + user + " blocked, some pages could not be removed", cleanupErr
	}
	return "User " + user + " blocked, pages deleted", nil
}

// block treats a user who is already blocked as blocked.
func (p *Pipeline) block(ctx context.Context, user string) error {
	err := p.gateway.BlockUser(ctx, user, wiki.DefaultBlockReason)
	if wiki.IsCode(err, wiki.CodeAlreadyBlocked) {
		p.logger.Debug("user already blocked", "user", user)
		return nil
	}
	return err
}

// failureReply picks the chat reply for a failed command and logs the
// detail that chat does not get. A non-empty partial reply from the
// command itself is kept.
func (p *Pipeline) failureReply(envelope Envelope, partial string, err error, logger *slog.Logger) string {
	if errors.Is(err, permission.ErrUnknownIdentity) && len(envelope.Args) > 0 {
		logger.Info("command named an unknown user", "error", err)
		return "Unknown user " + strings.ToLower(envelope.Args[0])
	}

	var remote *wiki.RemoteError
	if errors.As(err, &remote) {
		logger.Error("remote command failed",
			"args", envelope.Args,
			"action", remote.Action,
			"code", remote.Code,
			"error", err,
		)
	} else {
		logger.Error("command failed", "args", envelope.Args, "error", err)
	}

	if partial != "" {
		return partial
	}
	return "An error occurred while running " + p.sigil + envelope.Command.Name()
}

// emit queues a reply. After ctx is cancelled the reply is only sent if
// the outbound channel has room; nothing may block shutdown.
func (p *Pipeline) emit(ctx context.Context, line string) {
	select {
	case p.outbound <- line:
		return
	case <-ctx.Done():
	}
	select {
	case p.outbound <- line:
	default:
		p.logger.Warn("dropping reply after shutdown", "reply", line)
	}
}

func (p *Pipeline) record(ctx context.Context, envelope Envelope, outcome journal.Outcome, err error, duration time.Duration) {
	if p.journal == nil {
		return
	}
	entry := journal.Entry{
		RequestID: envelope.RequestID.String(),
		Command:   envelope.Command.Name(),
		Args:      envelope.Args,
		Requester: envelope.Requester,
		Origin:    envelope.Origin,
		Outcome:   outcome,
		Duration:  duration,
		Time:      p.clock.Now(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if recordErr := p.journal.Record(context.WithoutCancel(ctx), entry); recordErr != nil {
		p.logger.Warn("journal write failed", "request_id", entry.RequestID, "error", recordErr)
	}
}
