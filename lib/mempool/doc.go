// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mempool sub-allocates one fixed byte region with a sorted,
// coalescing free-list and best-fit placement.
//
// The pool never talks to the operating system. It borrows a region
// (normally the locked pages from lib/pages) and keeps all bookkeeping
// in a slice of [Span] values, each an (offset, length) pair relative
// to the region start. There is no per-allocation header: the caller
// hands back the exact slice it was given, and its length is the size
// that gets returned to the free-list.
//
// Free-list invariants, held whenever the pool mutex is released:
//
//   - spans are sorted by ascending offset
//   - no two spans overlap
//   - no two spans are adjacent (adjacent spans are merged on creation)
//   - free spans plus live allocations cover exactly [0, Size)
//
// [Pool.Allocate] first looks for a perfect fit (exact length, offset
// already aligned). Failing that it takes the smallest span that can
// hold the request plus its alignment padding, lowest offset winning
// ties. Padding skipped at the front of a span stays on the free-list
// as its own span. Bytes are zeroed before they are handed out and
// again when they come back through [Pool.Deallocate], in both cases
// outside the mutex since no other allocation can see them.
//
// Configuration errors are reported by [New] and wrap
// [ErrInvalidConfig]. Internal-consistency violations (a misaligned
// result, a freed range overlapping a free span) panic.
package mempool
