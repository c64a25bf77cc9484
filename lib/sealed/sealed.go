// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"filippo.io/age"

	"github.com/bureau-foundation/securemem/lib/secret"
)

// MaxPlaintextSize is a reasonable Decrypt limit for key material and
// small credential bundles.
const MaxPlaintextSize = 64 * 1024

// ErrEmptyPlaintext is returned by Decrypt when the ciphertext holds
// no data. A secret buffer cannot be empty.
var ErrEmptyPlaintext = errors.New("sealed: plaintext is empty")

// Keypair holds an age x25519 keypair. The private key is stored in a
// secret.Buffer. The public key is a plain string (safe to publish).
//
// The caller must call Close when the keypair is no longer needed.
type Keypair struct {
	// PrivateKey is the secret key in AGE-SECRET-KEY-1... format. Must
	// never be logged, stored in plaintext on disk, or included in CLI
	// arguments.
	PrivateKey *secret.Buffer

	// PublicKey is the corresponding public key in age1... format.
	PublicKey string
}

// Close releases the private key memory. Idempotent.
func (k *Keypair) Close() error {
	if k.PrivateKey != nil {
		return k.PrivateKey.Close()
	}
	return nil
}

// GenerateKeypair generates a new age x25519 keypair with the private
// key in a secret.Buffer.
//
// The caller must call Close on the returned Keypair when done.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age keypair: %w", err)
	}

	// age only exposes the key as a string, so one heap copy exists
	// until the garbage collector reclaims it. The byte copy is zeroed
	// by NewFromBytes.
	privateKey, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("protecting private key: %w", err)
	}

	return &Keypair{
		PrivateKey: privateKey,
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// Encrypt encrypts plaintext to one or more recipients specified by their age
// public key strings (age1... format). Returns the ciphertext as a standard
// base64-encoded string.
func Encrypt(plaintext []byte, recipientKeys []string) (string, error) {
	if len(recipientKeys) == 0 {
		return "", fmt.Errorf("at least one recipient is required")
	}

	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return "", fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var ciphertextBuffer bytes.Buffer
	encoder := base64.NewEncoder(base64.StdEncoding, &ciphertextBuffer)
	writer, err := age.Encrypt(encoder, recipients...)
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return "", fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalizing age encryption: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("finalizing base64 encoding: %w", err)
	}

	return ciphertextBuffer.String(), nil
}

// Decrypt decrypts a base64-encoded ciphertext string using the given
// private key. The plaintext streams from the decryptor straight into
// a secret.Buffer; it never exists on the heap. Plaintext longer than
// limit fails with secret.ErrTooLarge.
//
// The private key is borrowed and is NOT closed by this function. The
// caller must call Close on the returned buffer.
func Decrypt(ciphertext string, privateKey *secret.Buffer, limit int) (*secret.Buffer, error) {
	// age.ParseX25519Identity requires a string. The heap copy is brief
	// and request-scoped.
	identity, err := age.ParseX25519Identity(privateKey.String())
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	decoder := base64.NewDecoder(base64.StdEncoding, strings.NewReader(ciphertext))
	reader, err := age.Decrypt(decoder, identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}

	plaintext, err := secret.NewFromReader(reader, limit)
	switch {
	case errors.Is(err, secret.ErrEmpty):
		return nil, ErrEmptyPlaintext
	case err != nil:
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	return plaintext, nil
}

// ParsePublicKey validates an age public key string.
func ParsePublicKey(publicKey string) error {
	_, err := age.ParseX25519Recipient(publicKey)
	if err != nil {
		return fmt.Errorf("invalid age public key: %w", err)
	}
	return nil
}

// ParsePrivateKey validates an age private key stored in a
// secret.Buffer.
func ParsePrivateKey(privateKey *secret.Buffer) error {
	_, err := age.ParseX25519Identity(privateKey.String())
	if err != nil {
		return fmt.Errorf("invalid age private key: %w", err)
	}
	return nil
}
