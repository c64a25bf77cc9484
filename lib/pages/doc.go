// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pages obtains memory from the operating system that is pinned
// in physical RAM and, where the platform allows, excluded from core
// dumps. It is the leaf of the secure-memory stack: lib/lockalloc asks
// it for one region per process and lib/mempool carves that region up.
//
// [Provider] is the capability interface the rest of the stack depends
// on. [NewSystem] returns the implementation for the build platform:
//
//   - linux, darwin: mmap(MAP_ANON) + mlock via golang.org/x/sys/unix.
//     On Linux the region is also advised MADV_DONTDUMP and
//     MADV_WIPEONFORK (both best effort).
//   - windows: VirtualAlloc + VirtualLock via golang.org/x/sys/windows.
//   - everything else: [Provider.Limit] reports zero and
//     [Provider.Allocate] fails with [ErrUnsupported], which callers
//     treat as "use the heap".
//
// A region that cannot be locked is erased and released rather than
// handed out swappable. Failure to allocate or lock is an expected
// outcome (unprivileged processes often have a tiny RLIMIT_MEMLOCK) and
// is reported as an error value, never a panic.
//
// [Provider.Limit] is the number of bytes this process may pin: the
// RLIMIT_MEMLOCK soft limit (raised to the hard limit when permitted),
// capped by the ceiling passed to [NewSystem] and optionally lowered by
// the BUREAU_MLOCK_POOL_SIZE environment variable (KiB). Malformed
// values of the variable are ignored.
//
// [Erase] is the zeroing primitive shared by every layer above.
//
// Depends on golang.org/x/sys. No Bureau-internal dependencies.
package pages
