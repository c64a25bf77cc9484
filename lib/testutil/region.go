// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"unsafe"
)

// TestingT is the subset of testing.TB the helpers need.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
}

// AlignedRegion returns a zeroed size-byte slice whose first byte is a
// multiple of alignment. alignment must be a power of two.
//
//	region := testutil.AlignedRegion(t, 4096, 64)
func AlignedRegion(t TestingT, size, alignment int) []byte {
	t.Helper()
	if size <= 0 {
		t.Fatalf("AlignedRegion: size must be positive, got %d", size)
	}
	if alignment <= 0 || alignment&(alignment-1) != 0 {
		t.Fatalf("AlignedRegion: alignment must be a power of two, got %d", alignment)
	}

	backing := make([]byte, size+alignment)
	address := uintptr(unsafe.Pointer(unsafe.SliceData(backing)))
	skip := int(-address & uintptr(alignment-1))
	return backing[skip : skip+size : skip+size]
}

// RequireZero fails the test if any byte of data is non-zero.
//
//	testutil.RequireZero(t, freed, "bytes after Deallocate")
func RequireZero(t TestingT, data []byte, msgAndArgs ...any) {
	t.Helper()
	for index, value := range data {
		if value != 0 {
			t.Fatalf("byte %d of %d is %#x, want 0: %s", index, len(data), value, formatMessage(msgAndArgs))
		}
	}
}
