// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/bureau-foundation/securemem/lib/lockalloc"
	"github.com/bureau-foundation/securemem/lib/sealed"
	"github.com/bureau-foundation/securemem/lib/secret"
)

// runKeygen generates an age keypair. The public key goes to stdout;
// the private key goes to --output (created 0600) or stderr.
func runKeygen(args []string, stdout, stderr io.Writer) error {
	var outputPath string
	flagSet, common := newFlagSet("keygen", stderr)
	flagSet.StringVarP(&outputPath, "output", "o", "", "write the private key to this file instead of stderr")
	if done, err := parse(flagSet, args); done || err != nil {
		return err
	}
	cfg, logger, err := common.setup(stderr)
	if err != nil {
		return err
	}
	if err := configureProcessAllocator(cfg, logger); err != nil {
		return err
	}
	defer lockalloc.Shutdown()

	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		return err
	}
	defer keypair.Close()

	if outputPath == "" {
		fmt.Fprintf(stderr, "# Private key (keep this secret, store securely):\n")
		if _, err := keypair.PrivateKey.WriteTo(stderr); err != nil {
			return err
		}
		fmt.Fprintln(stderr)
	} else {
		file, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if err != nil {
			return fmt.Errorf("creating private key file: %w", err)
		}
		if _, err := keypair.PrivateKey.WriteTo(file); err != nil {
			file.Close()
			return fmt.Errorf("writing private key: %w", err)
		}
		if err := file.Close(); err != nil {
			return fmt.Errorf("writing private key: %w", err)
		}
	}

	fmt.Fprintln(stdout, keypair.PublicKey)
	return nil
}

// runEncrypt reads plaintext from stdin into locked memory and writes
// base64 age ciphertext to stdout.
func runEncrypt(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var recipients []string
	var limit int
	flagSet, common := newFlagSet("encrypt", stderr)
	flagSet.StringSliceVarP(&recipients, "recipient", "r", nil, "age public key (repeatable)")
	flagSet.IntVar(&limit, "limit", sealed.MaxPlaintextSize, "largest plaintext accepted, in bytes")
	if done, err := parse(flagSet, args); done || err != nil {
		return err
	}
	cfg, logger, err := common.setup(stderr)
	if err != nil {
		return err
	}
	if err := configureProcessAllocator(cfg, logger); err != nil {
		return err
	}
	defer lockalloc.Shutdown()

	for _, recipient := range recipients {
		if err := sealed.ParsePublicKey(recipient); err != nil {
			return err
		}
	}

	plaintext, err := readPlaintext(stdin, stderr, limit)
	if err != nil {
		return fmt.Errorf("reading plaintext: %w", err)
	}
	defer plaintext.Close()

	ciphertext, err := sealed.Encrypt(plaintext.Bytes(), recipients)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, ciphertext)
	return nil
}

// readPlaintext reads the secret to encrypt. From a terminal it
// prompts without echo and reads one line; otherwise it reads stdin
// to EOF.
func readPlaintext(stdin io.Reader, stderr io.Writer, limit int) (*secret.Buffer, error) {
	file, ok := stdin.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		return secret.NewFromReader(stdin, limit)
	}

	fmt.Fprint(stderr, "Secret: ")
	line, err := term.ReadPassword(int(file.Fd()))
	fmt.Fprintln(stderr)
	if err != nil {
		secret.Zero(line)
		return nil, err
	}
	if len(line) > limit {
		secret.Zero(line)
		return nil, secret.ErrTooLarge
	}
	if len(line) == 0 {
		return nil, secret.ErrEmpty
	}
	return secret.NewFromBytes(line)
}

// runDecrypt reads base64 age ciphertext from stdin and writes the
// plaintext to stdout without a heap copy.
func runDecrypt(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var keyPath string
	var limit int
	flagSet, common := newFlagSet("decrypt", stderr)
	flagSet.StringVarP(&keyPath, "key-file", "k", "", "file holding the age private key (required)")
	flagSet.IntVar(&limit, "limit", sealed.MaxPlaintextSize, "largest plaintext accepted, in bytes")
	if done, err := parse(flagSet, args); done || err != nil {
		return err
	}
	if keyPath == "" {
		return fmt.Errorf("--key-file is required")
	}
	cfg, logger, err := common.setup(stderr)
	if err != nil {
		return err
	}
	if err := configureProcessAllocator(cfg, logger); err != nil {
		return err
	}
	defer lockalloc.Shutdown()

	privateKey, err := secret.ReadFromPath(keyPath)
	if err != nil {
		return fmt.Errorf("reading private key: %w", err)
	}
	defer privateKey.Close()

	ciphertext, err := io.ReadAll(stdin)
	if err != nil {
		return fmt.Errorf("reading ciphertext: %w", err)
	}

	plaintext, err := sealed.Decrypt(strings.TrimSpace(string(ciphertext)), privateKey, limit)
	if err != nil {
		return err
	}
	defer plaintext.Close()

	_, err = plaintext.WriteTo(stdout)
	return err
}
