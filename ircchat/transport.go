// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ircchat connects the coordinator to an IRC channel.
//
// The transport joins one channel, forwards every channel message to
// [Core.Deliver] with the sender's nickname and host, and sends every
// line from [Core.Outbound] to the channel. Private messages are
// answered with a pointer to the channel and go no further, so
// commands are always issued in public. Outbound lines are paced by
// the IRC client's send limiter, and lost connections are re-dialled
// with capped exponential backoff.
package ircchat

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"gopkg.in/irc.v4"

	"github.com/bureau-foundation/wikirc/lib/clock"
	"github.com/bureau-foundation/wikirc/lib/version"
)

// PrivateMessageReply answers anyone who messages the bot directly.
const PrivateMessageReply = "Commands in the public channel only please"

// Defaults for Config.
const (
	DefaultPort       = 6667
	DefaultSendLimit  = time.Second
	DefaultSendBurst  = 4
	DefaultMinBackoff = 2 * time.Second
	DefaultMaxBackoff = 5 * time.Minute
)

// maxMessageBytes bounds the text of one PRIVMSG. Servers cap a whole
// line, prefix and target included, at 512 bytes.
const maxMessageBytes = 400

// Core is the coordinator as seen by the transport.
type Core interface {
	Deliver(ctx context.Context, identity, origin, line string) error
	Outbound() <-chan string
}

// Config configures a Transport.
type Config struct {
	Server   string
	Port     int
	TLS      bool
	Nickname string
	Channel  string

	// SendLimit and SendBurst pace outbound lines. Defaults:
	// DefaultSendLimit, DefaultSendBurst.
	SendLimit time.Duration
	SendBurst int

	// MinBackoff and MaxBackoff bound the reconnect delay.
	MinBackoff time.Duration
	MaxBackoff time.Duration

	// Dial opens the connection. Default: TCP, or TLS when TLS is set.
	Dial func(ctx context.Context, address string) (net.Conn, error)

	Clock  clock.Clock
	Logger *slog.Logger
}

// Transport is an IRC client bound to one channel.
type Transport struct {
	config Config
	core   Core
	clock  clock.Clock
	logger *slog.Logger
}

// New validates cfg and returns a Transport for core.
func New(cfg Config, core Core) (*Transport, error) {
	var errs []error
	if cfg.Server == "" {
		errs = append(errs, errors.New("server is required"))
	}
	if cfg.Nickname == "" {
		errs = append(errs, errors.New("nickname is required"))
	}
	if !isChannel(cfg.Channel) {
		errs = append(errs, fmt.Errorf("channel %q must start with # or &", cfg.Channel))
	}
	if core == nil {
		errs = append(errs, errors.New("core is required"))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("ircchat: %w", errors.Join(errs...))
	}

	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.SendLimit <= 0 {
		cfg.SendLimit = DefaultSendLimit
	}
	if cfg.SendBurst <= 0 {
		cfg.SendBurst = DefaultSendBurst
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = DefaultMinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = max(DefaultMaxBackoff, cfg.MinBackoff)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	transport := &Transport{config: cfg, core: core, clock: cfg.Clock, logger: cfg.Logger}
	if transport.config.Dial == nil {
		transport.config.Dial = transport.dial
	}
	return transport, nil
}

// Run connects and serves the channel until ctx is cancelled,
// reconnecting after every connection loss. It returns ctx.Err().
func (t *Transport) Run(ctx context.Context) error {
	backoff := t.config.MinBackoff
	for {
		joined, err := t.connect(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if joined {
			backoff = t.config.MinBackoff
		}
		t.logger.Warn("chat connection lost", "server", t.address(), "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.clock.After(backoff):
		}
		backoff = min(backoff*2, t.config.MaxBackoff)
	}
}

func (t *Transport) address() string {
	return net.JoinHostPort(t.config.Server, strconv.Itoa(t.config.Port))
}

func (t *Transport) dial(ctx context.Context, address string) (net.Conn, error) {
	if t.config.TLS {
		dialer := &tls.Dialer{Config: &tls.Config{
			ServerName: t.config.Server,
			MinVersion: tls.VersionTLS12,
		}}
		return dialer.DialContext(ctx, "tcp", address)
	}
	var dialer net.Dialer
	return dialer.DialContext(ctx, "tcp", address)
}

// connect runs one connection to completion. joined reports whether
// the channel was joined before the connection ended.
func (t *Transport) connect(ctx context.Context) (joined bool, err error) {
	conn, err := t.config.Dial(ctx, t.address())
	if err != nil {
		return false, fmt.Errorf("ircchat: dialing %s: %w", t.address(), err)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	session := &session{transport: t, ctx: sessionCtx, joined: make(chan struct{})}
	client := irc.NewClient(conn, irc.ClientConfig{
		Nick:          t.config.Nickname,
		User:          t.config.Nickname,
		Name:          version.UserAgent(),
		PingFrequency: time.Minute,
		PingTimeout:   time.Minute,
		SendLimit:     t.config.SendLimit,
		SendBurst:     t.config.SendBurst,
		Handler:       irc.HandlerFunc(session.handle),
	})

	var writer sync.WaitGroup
	writer.Add(1)
	go func() {
		defer writer.Done()
		session.writeLoop(client)
	}()

	t.logger.Info("connecting to chat server", "server", t.address(), "nickname", t.config.Nickname)
	err = client.RunContext(sessionCtx)
	cancel()
	writer.Wait()

	select {
	case <-session.joined:
		joined = true
	default:
	}
	return joined, err
}

// session is the state of one connection.
type session struct {
	transport *Transport
	ctx       context.Context
	joined    chan struct{}
	joinOnce  sync.Once
}

// handle runs on the IRC client's read goroutine.
func (s *session) handle(client *irc.Client, message *irc.Message) {
	t := s.transport
	switch message.Command {
	case "001":
		if err := client.WriteMessage(&irc.Message{Command: "JOIN", Params: []string{t.config.Channel}}); err != nil {
			t.logger.Warn("sending JOIN failed", "channel", t.config.Channel, "error", err)
		}

	case "JOIN":
		if message.Prefix == nil || len(message.Params) == 0 {
			return
		}
		if strings.EqualFold(message.Prefix.Name, client.CurrentNick()) && strings.EqualFold(message.Params[0], t.config.Channel) {
			s.joinOnce.Do(func() {
				t.logger.Info("joined channel", "channel", t.config.Channel)
				close(s.joined)
			})
		}

	case "PRIVMSG":
		s.handlePrivmsg(client, message)
	}
}

func (s *session) handlePrivmsg(client *irc.Client, message *irc.Message) {
	t := s.transport
	if message.Prefix == nil || len(message.Params) < 2 {
		return
	}
	target, text := message.Params[0], message.Trailing()
	sender := message.Prefix.Name

	if !isChannel(target) {
		if strings.EqualFold(target, client.CurrentNick()) {
			reply := &irc.Message{Command: "PRIVMSG", Params: []string{sender, PrivateMessageReply}}
			if err := client.WriteMessage(reply); err != nil {
				t.logger.Warn("replying to private message failed", "sender", sender, "error", err)
			}
		}
		return
	}
	if !strings.EqualFold(target, t.config.Channel) {
		return
	}

	if err := t.core.Deliver(s.ctx, sender, message.Prefix.Host, text); err != nil && s.ctx.Err() == nil {
		t.logger.Warn("delivering chat line failed", "sender", sender, "error", err)
	}
}

// writeLoop sends outbound lines to the channel once it is joined.
// Lines stay queued in the core while disconnected.
func (s *session) writeLoop(client *irc.Client) {
	t := s.transport
	select {
	case <-s.joined:
	case <-s.ctx.Done():
		return
	}
	for {
		select {
		case <-s.ctx.Done():
			return
		case line := <-t.core.Outbound():
			for _, part := range splitLine(line, maxMessageBytes) {
				message := &irc.Message{Command: "PRIVMSG", Params: []string{t.config.Channel, part}}
				if err := client.WriteMessage(message); err != nil {
					t.logger.Warn("sending chat line failed", "error", err)
					return
				}
			}
		}
	}
}

func isChannel(target string) bool {
	return strings.HasPrefix(target, "#") || strings.HasPrefix(target, "&")
}

// splitLine breaks text into pieces of at most limit bytes, preferring
// to break at a space and never splitting a UTF-8 sequence. Line
// breaks in text also split it, since IRC cannot carry them.
func splitLine(text string, limit int) []string {
	var parts []string
	for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' }) {
		for len(line) > limit {
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if space := strings.LastIndexByte(line[:cut], ' '); space > 0 {
				cut = space
			}
			parts = append(parts, line[:cut])
			line = strings.TrimLeft(line[cut:], " ")
		}
		if line != "" {
			parts = append(parts, line)
		}
	}
	return parts
}
