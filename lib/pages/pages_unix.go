// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux || darwin

package pages

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Allocate maps an anonymous private region of at least length bytes,
// advises it out of core dumps where supported, and locks it into RAM.
// If the lock fails the region is erased and unmapped and the error
// wraps ErrLockFailed.
func (s *System) Allocate(length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("pages: allocation length must be positive, got %d", length)
	}
	size := roundUp(length, s.PageSize())

	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("pages: mmap %d bytes: %w", size, err)
	}

	adviseRegion(region)

	if err := unix.Mlock(region); err != nil {
		Erase(region)
		return nil, lockFailure("mlock", size, err, unix.Munmap(region))
	}

	return region, nil
}

// Free erases the region, then unlocks and unmaps it. All three steps
// run even if one fails; the first error is returned.
func (s *System) Free(region []byte) error {
	if len(region) == 0 {
		return nil
	}

	Erase(region)

	var firstError error
	if err := unix.Munlock(region); err != nil {
		firstError = fmt.Errorf("pages: munlock: %w", err)
	}
	if err := unix.Munmap(region); err != nil && firstError == nil {
		firstError = fmt.Errorf("pages: munmap: %w", err)
	}
	return firstError
}

// Limit returns the number of bytes this process may lock: the
// RLIMIT_MEMLOCK soft limit, raised to the hard limit if the kernel
// allows it, capped by the configured ceiling.
func (s *System) Limit() int {
	ceiling := lockCeiling(s.ceiling)
	if ceiling == 0 {
		return 0
	}

	var limits unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &limits); err != nil {
		return 0
	}

	if limits.Cur < limits.Max {
		raised := unix.Rlimit{Cur: limits.Max, Max: limits.Max}
		if err := unix.Setrlimit(unix.RLIMIT_MEMLOCK, &raised); err == nil {
			if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &limits); err != nil {
				return 0
			}
		}
	}

	return int(min(limits.Cur, uint64(ceiling)))
}
