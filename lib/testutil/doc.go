// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the secure-memory
// packages.
//
// [AlignedRegion] returns a heap-backed region whose first byte sits on
// a requested power-of-two boundary. Pool tests use it in place of
// locked pages so they run without RLIMIT_MEMLOCK headroom while still
// exercising the alignment post-condition honestly.
//
// [RequireZero] fails the test if any byte of a slice is non-zero. It
// is the check behind every "zeroed on free" assertion.
//
// [RunConcurrently] starts a fixed number of worker goroutines and
// waits for all of them under a wall-clock timeout, so a deadlocked
// allocator fails the test instead of hanging the suite. It is the only
// place in these tests that uses real timeouts.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no Bureau-internal dependencies.
package testutil
