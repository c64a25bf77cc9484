// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pages

import (
	"errors"
	"os"
	"strings"
	"testing"
)

func TestErase(t *testing.T) {
	data := []byte("correct horse battery staple")
	Erase(data)

	for index, value := range data {
		if value != 0 {
			t.Fatalf("byte %d not erased: got %d", index, value)
		}
	}
}

func TestErase_Empty(t *testing.T) {
	// Must not panic on nil or empty input.
	Erase(nil)
	Erase([]byte{})
}

func TestRoundUp(t *testing.T) {
	tests := []struct {
		length   int
		pageSize int
		expected int
	}{
		{length: 1, pageSize: 4096, expected: 4096},
		{length: 4095, pageSize: 4096, expected: 4096},
		{length: 4096, pageSize: 4096, expected: 4096},
		{length: 4097, pageSize: 4096, expected: 8192},
		{length: 65536, pageSize: 16384, expected: 65536},
	}

	for _, test := range tests {
		if got := roundUp(test.length, test.pageSize); got != test.expected {
			t.Errorf("roundUp(%d, %d) = %d, want %d", test.length, test.pageSize, got, test.expected)
		}
	}
}

func TestLockCeiling(t *testing.T) {
	const ceiling = 512 * 1024

	tests := []struct {
		name     string
		value    string
		expected int
	}{
		{name: "lowers ceiling", value: "64", expected: 64 * 1024},
		{name: "whitespace tolerated", value: " 128\n", expected: 128 * 1024},
		{name: "zero disables locking", value: "0", expected: 0},
		{name: "equal to ceiling", value: "512", expected: ceiling},
		{name: "cannot raise ceiling", value: "4096", expected: ceiling},
		{name: "malformed ignored", value: "lots", expected: ceiling},
		{name: "negative ignored", value: "-5", expected: ceiling},
		{name: "empty ignored", value: "", expected: ceiling},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Setenv(LimitEnvironmentVariable, test.value)
			if got := lockCeiling(ceiling); got != test.expected {
				t.Errorf("lockCeiling(%d) with %s=%q = %d, want %d",
					ceiling, LimitEnvironmentVariable, test.value, got, test.expected)
			}
		})
	}
}

func TestLockCeiling_Unset(t *testing.T) {
	// t.Setenv registers the restore; then clear the variable.
	t.Setenv(LimitEnvironmentVariable, "")
	os.Unsetenv(LimitEnvironmentVariable)

	if got := lockCeiling(8192); got != 8192 {
		t.Errorf("lockCeiling(8192) without override = %d, want 8192", got)
	}
}

func TestSystem_PageSize(t *testing.T) {
	size := NewSystem(0).PageSize()
	if size <= 0 {
		t.Fatalf("PageSize() = %d, want positive", size)
	}
	if size&(size-1) != 0 {
		t.Errorf("PageSize() = %d, want a power of two", size)
	}
}

func TestSystem_ZeroCeilingDisablesLocking(t *testing.T) {
	if limit := NewSystem(0).Limit(); limit != 0 {
		t.Errorf("Limit() with zero ceiling = %d, want 0", limit)
	}
	if limit := NewSystem(-1).Limit(); limit != 0 {
		t.Errorf("Limit() with negative ceiling = %d, want 0", limit)
	}
}

func TestSystem_LimitNeverExceedsCeiling(t *testing.T) {
	const ceiling = 64 * 1024
	if limit := NewSystem(ceiling).Limit(); limit > ceiling {
		t.Errorf("Limit() = %d, exceeds ceiling %d", limit, ceiling)
	}
}

func TestSystem_Free_Empty(t *testing.T) {
	if err := NewSystem(0).Free(nil); err != nil {
		t.Errorf("Free(nil) = %v, want nil", err)
	}
}

func TestLockFailure(t *testing.T) {
	lockErr := errors.New("operation not permitted")

	err := lockFailure("mlock", 4096, lockErr, nil)
	if !errors.Is(err, ErrLockFailed) || !errors.Is(err, lockErr) {
		t.Fatalf("error %v does not wrap ErrLockFailed and the lock error", err)
	}
	if !strings.Contains(err.Error(), "mlock 4096 bytes") {
		t.Errorf("error %q does not name the call and size", err)
	}

	releaseErr := errors.New("invalid argument")
	err = lockFailure("mlock", 4096, lockErr, releaseErr)
	if !errors.Is(err, ErrLockFailed) {
		t.Errorf("error %v lost ErrLockFailed when the release also failed", err)
	}
	if !errors.Is(err, releaseErr) {
		t.Errorf("error %v dropped the release failure", err)
	}
}
