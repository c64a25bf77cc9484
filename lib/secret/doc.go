// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret provides a memory-safe buffer for sensitive data such
// as passwords, access tokens, and encryption keys.
//
// [Buffer] memory comes from lib/lockalloc: a page-locked pool that is
// excluded from core dumps and wiped in forked children, falling back
// to the Go heap when the process cannot lock memory or the pool is
// full. Either way the bytes are zeroed on Close, and nothing else in
// the process holds a copy.
//
// Constructors:
//
//   - [New] -- allocates a zero-filled buffer from the process-wide allocator
//   - [NewIn] -- the same, from a caller-supplied [Allocator]
//   - [NewFromBytes] -- copies into protected memory, zeros the source
//   - [NewFromReader] -- reads from an io.Reader with a size limit
//   - [ReadFromPath] -- reads a file or one line of stdin, trimmed
//
// Access via [Buffer.Bytes] (slice into protected memory) or
// [Buffer.String] (heap copy for API boundaries). [Buffer.Equal] uses
// constant-time comparison. [Buffer.WriteTo] implements io.WriterTo
// for transfer without heap intermediaries. After Close, any access
// panics. Close is idempotent.
//
// Imported by lib/sealed for age keypair and plaintext protection.
package secret
