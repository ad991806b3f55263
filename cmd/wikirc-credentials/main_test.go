// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/wikirc/lib/sealed"
	"github.com/bureau-foundation/wikirc/lib/secret"
)

func TestKeygenSplitsKeys(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"keygen"}, &stdout, &stderr); err != nil {
		t.Fatalf("keygen: %v", err)
	}

	publicKey := strings.TrimSpace(stdout.String())
	if err := sealed.ParsePublicKey(publicKey); err != nil {
		t.Errorf("stdout is not a public key: %v", err)
	}
	if !strings.Contains(stderr.String(), "AGE-SECRET-KEY-1") {
		t.Error("stderr does not carry the private key")
	}
	if strings.Contains(stdout.String(), "AGE-SECRET-KEY-1") {
		t.Error("private key leaked to stdout")
	}
}

func TestSealRoundTrip(t *testing.T) {
	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	defer keypair.Close()

	passwordPath := filepath.Join(t.TempDir(), "password")
	if err := os.WriteFile(passwordPath, []byte("hunter2\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	args := []string{"seal", "--recipient", keypair.PublicKey, "--password-file", passwordPath}
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("seal: %v", err)
	}

	plaintext, err := sealed.Decrypt(strings.TrimSpace(stdout.String()), keypair.PrivateKey)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	defer plaintext.Close()
	if plaintext.String() != "hunter2" {
		t.Errorf("plaintext = %q", plaintext.String())
	}
}

func TestSealErrors(t *testing.T) {
	emptyPath := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(emptyPath, []byte("\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	defer keypair.Close()

	tests := []struct {
		name string
		args []string
	}{
		{name: "no recipient", args: []string{"seal", "--password-file", emptyPath}},
		{name: "bad recipient", args: []string{"seal", "-r", "age1notakey", "--password-file", emptyPath}},
		{name: "empty password", args: []string{"seal", "-r", keypair.PublicKey, "--password-file", emptyPath}},
		{name: "stray argument", args: []string{"seal", "-r", keypair.PublicKey, "extra"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if err := run(test.args, &stdout, &stderr); err == nil {
				t.Errorf("run(%q) succeeded with output %q", test.args, stdout.String())
			}
		})
	}
}

func TestEmptyPasswordIsErrEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "password")
	if err := os.WriteFile(path, []byte("   \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := readPassword(path, &bytes.Buffer{}); err != secret.ErrEmpty {
		t.Errorf("readPassword = %v, want secret.ErrEmpty", err)
	}
}

func TestUnknownSubcommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"frobnicate"}, &stdout, &stderr); err == nil {
		t.Fatal("unknown subcommand succeeded")
	}
	if err := run(nil, &stdout, &stderr); err == nil {
		t.Fatal("missing subcommand succeeded")
	}
	if !strings.Contains(stderr.String(), "Subcommands:") {
		t.Error("usage was not printed")
	}
}
