// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lockalloc is the single entry point for secret-holding
// memory. It decides between the locked pool and the Go heap and owns
// the lifetime of the locked region.
//
// An [Allocator] asks its page provider how much memory the process may
// lock, maps one region of that size, and builds a lib/mempool pool
// over it. Requests the pool cannot serve (too small, too large, pool
// exhausted, or no locked memory on this machine) fall back to a zeroed
// heap slice. That fallback is silent: from the caller's point of view
// [Allocator.Allocate] always returns usable memory.
//
// [Allocator.Deallocate] zeroes the bytes before doing anything else,
// whatever their source, then returns pool memory to the pool and
// leaves heap memory to the garbage collector. Callers never need to
// zero secrets themselves, and never need to know where a buffer came
// from.
//
// Most code uses the process-wide allocator via [Instance], created on
// first use. Binaries call [Configure] before that to shape it from
// their configuration; otherwise it uses [DefaultConfig] over the
// platform page provider. [Shutdown] erases, unlocks and unmaps its
// region; call it once at process exit, after every secret buffer has
// been released. While any pool allocation is live, [Allocator.Close]
// and Shutdown return [ErrInUse] and keep the region mapped. Code that
// needs its own region (tests, the stress tool) calls [New] directly
// and owns the result.
//
// Allocation sizes are element count times element size. A product
// that overflows panics with [ErrSizeOverflow]; so does a negative
// count or size. Passing a different count or size to Deallocate than
// was given to Allocate is a contract violation.
//
// [Allocator.Stats] exposes pool and heap counters, and [NewCollector]
// adapts them for Prometheus.
package lockalloc
