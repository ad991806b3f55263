// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/wikirc/lib/sealed"
	"github.com/bureau-foundation/wikirc/lib/secret"
	"github.com/bureau-foundation/wikirc/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		printUsage(stderr)
		return fmt.Errorf("subcommand required")
	}

	subcommand := args[0]
	switch subcommand {
	case "keygen":
		return runKeygen(stdout, stderr)
	case "seal":
		return runSeal(args[1:], stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "wikirc-credentials %s\n", version.Info())
		return nil
	case "-h", "--help", "help":
		printUsage(stderr)
		return nil
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown subcommand: %q", subcommand)
	}
}

func printUsage(output io.Writer) {
	fmt.Fprintf(output, `Usage: wikirc-credentials <subcommand> [flags]

Subcommands:
  keygen      Generate an age keypair for sealing the content site password
  seal        Encrypt the content site password to one or more public keys
  version     Print version information

Save the keygen private key to a file and pass it to wikirc with
--identity-file. Put the seal output in content_site_password_sealed.
`)
}

// runKeygen generates a new age keypair. The public key goes to stdout
// and the private key to stderr.
func runKeygen(stdout, stderr io.Writer) error {
	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		return fmt.Errorf("generating keypair: %w", err)
	}
	defer keypair.Close()

	fmt.Fprintf(stderr, "# Private key (keep this secret, pass it to wikirc with --identity-file):\n")
	fmt.Fprintf(stderr, "%s\n", keypair.PrivateKey.String())
	fmt.Fprintf(stdout, "%s\n", keypair.PublicKey)
	return nil
}

// runSeal encrypts the password to every --recipient and prints the
// base64 ciphertext.
func runSeal(args []string, stdout, stderr io.Writer) error {
	flags := pflag.NewFlagSet("seal", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	var (
		recipients   []string
		passwordFile string
	)
	flags.StringArrayVarP(&recipients, "recipient", "r", nil, "age1... public key to seal to (repeatable, required)")
	flags.StringVar(&passwordFile, "password-file", "", `read the password from this file ("-" for stdin) instead of prompting`)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flags.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flags.Arg(0))
	}
	if len(recipients) == 0 {
		flags.Usage()
		return fmt.Errorf("--recipient is required")
	}
	for _, recipient := range recipients {
		if err := sealed.ParsePublicKey(recipient); err != nil {
			return err
		}
	}

	password, err := readPassword(passwordFile, stderr)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	defer password.Close()

	ciphertext, err := sealed.Encrypt(password.Bytes(), recipients)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, ciphertext)
	return nil
}

// readPassword reads from passwordFile when given. Otherwise it prompts
// on the terminal with echo disabled, or reads the first line of stdin
// when stdin is not a terminal.
func readPassword(passwordFile string, stderr io.Writer) (*secret.Buffer, error) {
	if passwordFile != "" {
		return secret.ReadFromPath(passwordFile)
	}

	stdinFileDescriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFileDescriptor) {
		return secret.ReadFromPath("-")
	}

	fmt.Fprint(stderr, "Content site password: ")
	data, err := term.ReadPassword(stdinFileDescriptor)
	fmt.Fprintln(stderr)
	if err != nil {
		return nil, err
	}
	defer secret.Zero(data)
	if len(data) == 0 {
		return nil, secret.ErrEmpty
	}
	return secret.NewFromBytes(data)
}
