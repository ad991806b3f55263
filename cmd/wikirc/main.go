// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/wikirc/coordinator"
	"github.com/bureau-foundation/wikirc/ircchat"
	"github.com/bureau-foundation/wikirc/journal"
	"github.com/bureau-foundation/wikirc/lib/authorization"
	"github.com/bureau-foundation/wikirc/lib/config"
	"github.com/bureau-foundation/wikirc/lib/sealed"
	"github.com/bureau-foundation/wikirc/lib/secret"
	"github.com/bureau-foundation/wikirc/lib/version"
	"github.com/bureau-foundation/wikirc/permission"
	"github.com/bureau-foundation/wikirc/pipeline"
	"github.com/bureau-foundation/wikirc/wiki"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options are the command-line flags.
type options struct {
	configPath   string
	identityFile string
	verbose      bool
	showVersion  bool
}

// errTemplateWritten stops startup after a first run created the
// configuration template.
var errTemplateWritten = errors.New("configuration template written")

func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("wikirc", pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.StringVarP(&opts.configPath, "config", "c", "wikirc.yaml", "path to the YAML configuration file")
	flagSet.StringVar(&opts.identityFile, "identity-file", "", "age identity that decrypts content_site_password_sealed")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(output, `wikirc relays wiki changes to an IRC channel and runs moderation
commands issued there.

Usage:
  wikirc [flags]

Flags:
%s`, flagSet.FlagUsages())
	}

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if flagSet.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	return opts, nil
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "wikirc %s\n", version.Full())
		return nil
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(opts.configPath, stdout)
	if err != nil {
		if errors.Is(err, errTemplateWritten) {
			return nil
		}
		return err
	}

	password, err := contentSitePassword(cfg, opts.identityFile)
	if err != nil {
		return err
	}
	defer password.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, password, logger)
}

// loadConfig reads and validates path. When path does not exist it
// writes the commented template there and returns errTemplateWritten.
func loadConfig(path string, stdout io.Writer) (*config.Config, error) {
	cfg, err := config.LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := config.WriteTemplate(path); err != nil {
			return nil, err
		}
		fmt.Fprintf(stdout, "Wrote a configuration template to %s. Fill it in and run wikirc again.\n", path)
		return nil, errTemplateWritten
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// contentSitePassword returns the bot password, decrypting the sealed
// form with identityFile when the configuration carries one.
func contentSitePassword(cfg *config.Config, identityFile string) (*secret.Buffer, error) {
	if cfg.ContentSitePasswordSealed == "" {
		password, err := secret.NewFromBytes([]byte(cfg.ContentSitePassword))
		if err != nil {
			return nil, fmt.Errorf("protecting content site password: %w", err)
		}
		return password, nil
	}

	if identityFile == "" {
		return nil, errors.New("content_site_password_sealed is set; --identity-file is required")
	}
	identity, err := sealed.ReadIdentity(identityFile)
	if err != nil {
		return nil, err
	}
	defer identity.Close()

	password, err := sealed.Decrypt(cfg.ContentSitePasswordSealed, identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting content site password: %w", err)
	}
	return password, nil
}

// serve builds every component from cfg and runs until ctx is
// cancelled. SIGHUP reloads the authorization policy.
func serve(ctx context.Context, cfg *config.Config, password *secret.Buffer, logger *slog.Logger) error {
	logger.Info("wikirc starting", "version", version.Info(), "content_site", cfg.ContentSiteAPIURL)

	mediaWiki, err := wiki.NewMediaWiki(wiki.MediaWikiConfig{
		APIURL:    cfg.ContentSiteAPIURL,
		Username:  cfg.ContentSiteUsername,
		Password:  password,
		Timeout:   cfg.RequestTimeout,
		UserAgent: version.UserAgent(),
		Logger:    logger.With("component", "wiki"),
	})
	if err != nil {
		return err
	}
	if err := mediaWiki.Login(ctx); err != nil {
		return fmt.Errorf("logging in to %s: %w", cfg.ContentSiteAPIURL, err)
	}

	permissions, err := permission.Open(cfg.PermissionsFile, logger.With("component", "permission"))
	if err != nil {
		return err
	}

	authorizer, err := authorization.NewAuthorizer(cfg.PolicyFile, logger.With("component", "authorization"))
	if err != nil {
		return err
	}
	go reloadOnHangup(ctx, authorizer, logger)

	var recorder pipeline.Recorder
	if cfg.JournalPath != "" {
		commandJournal, err := journal.Open(cfg.JournalPath, logger.With("component", "journal"))
		if err != nil {
			return err
		}
		defer commandJournal.Close()
		reportRecentActivity(ctx, commandJournal, logger)
		recorder = commandJournal
	}

	core, err := coordinator.New(coordinator.Config{
		Gateway:      mediaWiki,
		Permissions:  permissions,
		Policy:       authorizer,
		Journal:      recorder,
		PollInterval: cfg.PollInterval,
		Sigil:        cfg.CommandSigil,
		Workers:      cfg.RemoteWorkers,
		Logger:       logger.With("component", "coordinator"),
	})
	if err != nil {
		return err
	}

	transport, err := ircchat.New(ircchat.Config{
		Server:   cfg.ChatServer,
		Port:     cfg.ChatPort,
		TLS:      cfg.ChatTLS,
		Nickname: cfg.ChatNickname,
		Channel:  cfg.ChatChannel,
		Logger:   logger.With("component", "ircchat"),
	}, core)
	if err != nil {
		return err
	}

	if err := core.Start(ctx); err != nil {
		return err
	}
	defer func() {
		core.Stop()
		core.Wait()
		logger.Info("wikirc stopped")
	}()

	if err := transport.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Startup summary bounds: how many journal entries are read, and how
// many recent denials are logged individually.
const (
	recentActivityWindow = 100
	recentDenialsLogged  = 5
)

// reportRecentActivity logs a summary of the journal's most recent
// entries and the latest denials among them.
func reportRecentActivity(ctx context.Context, commandJournal *journal.Journal, logger *slog.Logger) {
	entries, err := commandJournal.Recent(ctx, recentActivityWindow)
	if err != nil {
		logger.Warn("reading journal failed", "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	outcomes := make(map[journal.Outcome]int)
	for _, entry := range entries {
		outcomes[entry.Outcome]++
	}
	logger.Info("recent moderation activity",
		"entries", len(entries),
		"succeeded", outcomes[journal.OutcomeSucceeded],
		"failed", outcomes[journal.OutcomeFailed],
		"denied", outcomes[journal.OutcomeDenied],
		"last_command", entries[0].Command,
		"last_at", entries[0].Time,
	)

	logged := 0
	for _, entry := range entries {
		if entry.Outcome != journal.OutcomeDenied {
			continue
		}
		logger.Warn("recently denied command",
			"command", entry.Command,
			"requester", entry.Requester,
			"origin", entry.Origin,
			"at", entry.Time,
		)
		logged++
		if logged == recentDenialsLogged {
			break
		}
	}
}

func reloadOnHangup(ctx context.Context, authorizer *authorization.Authorizer, logger *slog.Logger) {
	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hangup:
			changed, err := authorizer.Reload()
			if err != nil {
				logger.Error("reloading authorization policy failed", "error", err)
				continue
			}
			logger.Info("authorization policy reloaded", "changed", changed)
		}
	}
}
