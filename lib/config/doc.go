// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the YAML configuration for secure-memory
// commands.
//
// Configuration is loaded from a single file specified by either the
// BUREAU_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search, and environment
// variables do not override values in the file. The one exception
// lives outside this package: BUREAU_MLOCK_POOL_SIZE can only lower
// the locked-memory ceiling, and is applied by lib/pages.
//
// The file supports environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production defaults to
// require_locked: a command refuses to run when no memory can be
// locked, rather than keeping secrets on the heap.
//
// Key exports:
//
//   - [Config] -- master struct with Pool and Metrics sections
//   - [Default] -- returns a Config with the build-time pool defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [PoolConfig.AllocatorConfig] -- bridge to lib/lockalloc
package config
