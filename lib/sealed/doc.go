// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed provides age encryption and decryption for secrets
// that must stay out of swap and core dumps once opened. It wraps
// filippo.io/age for three operations: generate x25519 keypairs,
// encrypt to multiple recipients, and decrypt with a private key.
//
// Ciphertext is base64-encoded text. [Decrypt] streams the age payload
// directly into a [secret.Buffer], so the plaintext only ever lives in
// memory from lib/lockalloc and is zeroed on Close. Private keys are
// held the same way.
//
// Key exports:
//
//   - [GenerateKeypair] -- new age x25519 keypair in a secret.Buffer
//   - [Encrypt] -- encrypt to age public key recipients
//   - [Decrypt] -- decrypt with a secret.Buffer key, bounded by a limit
//   - [ParsePublicKey] / [ParsePrivateKey] -- key validation
//
// Depends on lib/secret for secure memory allocation.
package sealed
