// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wikirc.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const minimalConfig = `
content_site_api_url: https://wiki.example.org/w/api.php
content_site_username: ModBot
content_site_password: hunter2
chat_server: irc.example.org
chat_nickname: wikirc
chat_channel: "#wiki-mods"
`

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.ChatPort != 6667 {
		t.Errorf("ChatPort = %d, want 6667", cfg.ChatPort)
	}
	if cfg.CommandSigil != "." {
		t.Errorf("CommandSigil = %q, want %q", cfg.CommandSigil, ".")
	}
	if cfg.PollInterval != time.Minute {
		t.Errorf("PollInterval = %s, want 1m", cfg.PollInterval)
	}
	if cfg.RemoteWorkers != 4 {
		t.Errorf("RemoteWorkers = %d, want 4", cfg.RemoteWorkers)
	}
	if cfg.PermissionsFile != "wikirc_permissions.json" {
		t.Errorf("PermissionsFile = %q", cfg.PermissionsFile)
	}
}

func TestLoadFileMinimal(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.ContentSiteUsername != "ModBot" {
		t.Errorf("ContentSiteUsername = %q", cfg.ContentSiteUsername)
	}
	if cfg.ChatChannel != "#wiki-mods" {
		t.Errorf("ChatChannel = %q", cfg.ChatChannel)
	}
	if cfg.PollInterval != time.Minute {
		t.Errorf("PollInterval = %s, want default 1m", cfg.PollInterval)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, minimalConfig+`
chat_port: 6697
chat_tls: true
command_sigil: "!"
poll_interval: 30s
request_timeout: 2m
remote_workers: 2
journal_path: /var/lib/wikirc/journal.db
`))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.ChatPort != 6697 || !cfg.ChatTLS {
		t.Errorf("chat port/tls = %d/%v, want 6697/true", cfg.ChatPort, cfg.ChatTLS)
	}
	if cfg.CommandSigil != "!" {
		t.Errorf("CommandSigil = %q, want !", cfg.CommandSigil)
	}
	if cfg.PollInterval != 30*time.Second || cfg.RequestTimeout != 2*time.Minute {
		t.Errorf("durations = %s/%s", cfg.PollInterval, cfg.RequestTimeout)
	}
	if cfg.RemoteWorkers != 2 {
		t.Errorf("RemoteWorkers = %d, want 2", cfg.RemoteWorkers)
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("LoadFile(missing) error = %v, want fs.ErrNotExist", err)
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	if _, err := LoadFile(writeConfig(t, "chat_port: [unclosed")); err == nil {
		t.Fatal("LoadFile accepted malformed YAML")
	}
}

func TestExpandVariables(t *testing.T) {
	t.Setenv("WIKIRC_STATE", "/srv/wikirc")
	t.Setenv("WIKIRC_UNSET", "")

	cfg, err := LoadFile(writeConfig(t, minimalConfig+`
permissions_file: ${WIKIRC_STATE}/permissions.json
journal_path: ${WIKIRC_UNSET:-/tmp}/journal.db
policy_file: ${WIKIRC_UNSET}
`))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.PermissionsFile != "/srv/wikirc/permissions.json" {
		t.Errorf("PermissionsFile = %q", cfg.PermissionsFile)
	}
	if cfg.JournalPath != "/tmp/journal.db" {
		t.Errorf("JournalPath = %q", cfg.JournalPath)
	}
	if cfg.PolicyFile != "" {
		t.Errorf("PolicyFile = %q, want empty", cfg.PolicyFile)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.ContentSiteAPIURL = "ftp://wiki.example.org"
	cfg.ChatChannel = "wiki-mods"
	cfg.ChatPort = 0
	cfg.CommandSigil = " "
	cfg.PollInterval = 0
	cfg.RemoteWorkers = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted an invalid config")
	}
	for _, want := range []string{
		"content_site_username is required",
		"chat_server is required",
		"content_site_password",
		"http or https",
		"must start with #",
		"chat_port",
		"command_sigil",
		"poll_interval",
		"remote_workers",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate error missing %q:\n%v", want, err)
		}
	}
}

func TestSealedPasswordSatisfiesValidate(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, strings.Replace(minimalConfig,
		"content_site_password: hunter2", "content_site_password_sealed: YWdl", 1)))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestWriteTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wikirc.yaml")
	if err := WriteTemplate(path); err != nil {
		t.Fatalf("WriteTemplate: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("template mode = %v, want 0600", info.Mode().Perm())
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("template does not parse: %v", err)
	}
	if cfg.RemoteWorkers != 4 || cfg.PollInterval != time.Minute {
		t.Errorf("template defaults drifted: %+v", cfg)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("an unfilled template passed Validate")
	}
}
