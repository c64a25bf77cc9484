// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pages

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// LimitEnvironmentVariable names the operator override for the number
// of KiB the process will try to lock. It can only lower the ceiling.
const LimitEnvironmentVariable = "BUREAU_MLOCK_POOL_SIZE"

// DefaultPageSize is used when the OS page size cannot be determined.
const DefaultPageSize = 4096

var (
	// ErrUnsupported is returned by Allocate on platforms without a
	// page-locking implementation.
	ErrUnsupported = errors.New("locked pages are not supported on this platform")

	// ErrLockFailed is wrapped by Allocate when the OS refused to pin
	// the region. The region has already been erased and released.
	ErrLockFailed = errors.New("locking pages failed")
)

// Provider is the page-level capability the pool and the locking
// allocator are built on. Implementations must be safe for concurrent
// use.
type Provider interface {
	// Allocate returns a locked region of at least length bytes,
	// rounded up to a page multiple. The returned slice must be passed
	// unmodified (same start, same length) to Free.
	Allocate(length int) ([]byte, error)

	// Erase overwrites region with zeros.
	Erase(region []byte)

	// Free erases, unlocks and releases a region returned by Allocate.
	// An empty region is a no-op.
	Free(region []byte) error

	// Limit returns how many bytes this process may lock. Zero means
	// locking is unavailable and callers should not call Allocate.
	Limit() int

	// PageSize returns the OS page granularity.
	PageSize() int
}

// System is the Provider for the build platform.
type System struct {
	ceiling int
}

var _ Provider = (*System)(nil)

// NewSystem returns the platform Provider. ceiling caps Limit; a
// non-positive ceiling disables locking entirely.
func NewSystem(ceiling int) *System {
	return &System{ceiling: max(ceiling, 0)}
}

// PageSize returns the OS page size, or DefaultPageSize if the runtime
// reports something unusable.
func (s *System) PageSize() int {
	size := os.Getpagesize()
	if size <= 0 {
		return DefaultPageSize
	}
	return size
}

// Erase overwrites region with zeros.
func (s *System) Erase(region []byte) {
	Erase(region)
}

// Erase overwrites every byte of data with zero. The KeepAlive keeps
// the stores observable even when data is about to be unmapped.
func Erase(data []byte) {
	if len(data) == 0 {
		return
	}
	clear(data)
	runtime.KeepAlive(data)
}

// lockCeiling applies the environment override to ceiling. The
// override is in KiB and never raises the ceiling.
func lockCeiling(ceiling int) int {
	value, ok := os.LookupEnv(LimitEnvironmentVariable)
	if !ok {
		return ceiling
	}
	kibibytes, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return ceiling
	}
	if kibibytes > uint64(ceiling)/1024 {
		return ceiling
	}
	return int(kibibytes * 1024)
}

// roundUp rounds length up to a multiple of pageSize.
func roundUp(length, pageSize int) int {
	if remainder := length % pageSize; remainder != 0 {
		return length + pageSize - remainder
	}
	return length
}

// lockFailure builds the Allocate error for a region the OS would not
// pin. releaseErr is the result of unmapping it and is joined on when
// set, so a leaked mapping is never silent.
func lockFailure(call string, size int, lockErr, releaseErr error) error {
	err := fmt.Errorf("pages: %s %d bytes: %w: %w", call, size, ErrLockFailed, lockErr)
	if releaseErr != nil {
		err = errors.Join(err, fmt.Errorf("pages: releasing unlocked region: %w", releaseErr))
	}
	return err
}
