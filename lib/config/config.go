// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/wikirc/lib/atomicfile"
)

// Config is the complete wikirc configuration.
type Config struct {
	// ContentSiteAPIURL is the MediaWiki action API endpoint, e.g.
	// https://wiki.example.org/w/api.php.
	ContentSiteAPIURL string `yaml:"content_site_api_url"`

	// ContentSiteUsername is the bot account that performs blocks,
	// deletions and rollbacks.
	ContentSiteUsername string `yaml:"content_site_username"`

	// ContentSitePassword is the bot password in plain text. Prefer
	// ContentSitePasswordSealed.
	ContentSitePassword string `yaml:"content_site_password"`

	// ContentSitePasswordSealed is an age ciphertext produced by
	// wikirc-credentials seal. It takes precedence over
	// ContentSitePassword.
	ContentSitePasswordSealed string `yaml:"content_site_password_sealed"`

	ChatServer   string `yaml:"chat_server"`
	ChatPort     int    `yaml:"chat_port"`
	ChatTLS      bool   `yaml:"chat_tls"`
	ChatNickname string `yaml:"chat_nickname"`
	ChatChannel  string `yaml:"chat_channel"`

	// PermissionsFile is the JSON identity store.
	PermissionsFile string `yaml:"permissions_file"`

	// PolicyFile maps groups to command patterns. Empty means the
	// built-in policy: admin may run everything.
	PolicyFile string `yaml:"policy_file"`

	// JournalPath is the SQLite moderation journal. Empty disables it.
	JournalPath string `yaml:"journal_path"`

	CommandSigil   string        `yaml:"command_sigil"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RemoteWorkers  int           `yaml:"remote_workers"`
}

// Default returns a Config with every optional key set. Required keys
// are left empty.
func Default() *Config {
	return &Config{
		ChatPort:        6667,
		PermissionsFile: "wikirc_permissions.json",
		CommandSigil:    ".",
		PollInterval:    60 * time.Second,
		RequestTimeout:  60 * time.Second,
		RemoteWorkers:   4,
	}
}

// LoadFile reads path over Default and expands variables in the
// file-path keys. A missing file yields an error wrapping
// fs.ErrNotExist. LoadFile does not validate; call Validate.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	c.PermissionsFile = expandVars(c.PermissionsFile)
	c.PolicyFile = expandVars(c.PolicyFile)
	c.JournalPath = expandVars(c.JournalPath)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}. An unset or empty
// variable without a default expands to the empty string.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	required := []struct {
		key   string
		value string
	}{
		{"content_site_api_url", c.ContentSiteAPIURL},
		{"content_site_username", c.ContentSiteUsername},
		{"chat_server", c.ChatServer},
		{"chat_nickname", c.ChatNickname},
		{"chat_channel", c.ChatChannel},
		{"permissions_file", c.PermissionsFile},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", field.key))
		}
	}

	if c.ContentSitePassword == "" && c.ContentSitePasswordSealed == "" {
		errs = append(errs, errors.New("one of content_site_password or content_site_password_sealed is required"))
	}
	if c.ContentSiteAPIURL != "" {
		parsed, err := url.Parse(c.ContentSiteAPIURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("content_site_api_url %q must be an http or https URL", c.ContentSiteAPIURL))
		}
	}
	if c.ChatChannel != "" && !strings.HasPrefix(c.ChatChannel, "#") && !strings.HasPrefix(c.ChatChannel, "&") {
		errs = append(errs, fmt.Errorf("chat_channel %q must start with # or &", c.ChatChannel))
	}
	if c.ChatPort < 1 || c.ChatPort > 65535 {
		errs = append(errs, fmt.Errorf("chat_port %d is out of range", c.ChatPort))
	}
	if c.CommandSigil == "" || strings.ContainsFunc(c.CommandSigil, unicode.IsSpace) {
		errs = append(errs, fmt.Errorf("command_sigil %q must be non-empty and contain no whitespace", c.CommandSigil))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.RemoteWorkers < 1 {
		errs = append(errs, fmt.Errorf("remote_workers must be at least 1, got %d", c.RemoteWorkers))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Template is written when the configuration file does not exist.
const Template = `# wikirc configuration. Fill in the required keys and restart.

# Required.
content_site_api_url: ""
content_site_username: ""
content_site_password: ""
# Or seal the password with wikirc-credentials and use:
# content_site_password_sealed: ""
chat_server: ""
chat_nickname: ""
chat_channel: ""

# Optional, shown with their defaults.
chat_port: 6667
chat_tls: false
permissions_file: wikirc_permissions.json
policy_file: ""
journal_path: ""
command_sigil: "."
poll_interval: 60s
request_timeout: 60s
remote_workers: 4
`

// WriteTemplate writes Template to path with owner-only permissions,
// since the operator will put a password in it.
func WriteTemplate(path string) error {
	if err := atomicfile.WriteFile(path, []byte(Template), 0o600); err != nil {
		return fmt.Errorf("config: writing template: %w", err)
	}
	return nil
}
