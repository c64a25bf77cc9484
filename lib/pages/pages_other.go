// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux && !darwin && !windows

package pages

// Allocate always fails: this platform has no page-locking support.
func (s *System) Allocate(int) ([]byte, error) {
	return nil, ErrUnsupported
}

// Free erases region. Nothing was ever mapped by Allocate here.
func (s *System) Free(region []byte) error {
	Erase(region)
	return nil
}

// Limit is always zero, telling callers to skip the locked pool.
func (s *System) Limit() int {
	return 0
}
