// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux || darwin

package pages

import (
	"errors"
	"testing"
)

// lockableSystem returns a System able to lock at least one page, or
// skips the test when RLIMIT_MEMLOCK leaves no room.
func lockableSystem(t *testing.T) *System {
	t.Helper()
	system := NewSystem(1 << 20)
	if system.Limit() < system.PageSize() {
		t.Skip("RLIMIT_MEMLOCK too small to lock a page")
	}
	return system
}

func TestSystem_AllocateAndFree(t *testing.T) {
	system := lockableSystem(t)
	pageSize := system.PageSize()

	region, err := system.Allocate(100)
	if err != nil {
		if errors.Is(err, ErrLockFailed) {
			t.Skipf("mlock refused: %v", err)
		}
		t.Fatalf("Allocate(100) failed: %v", err)
	}

	if len(region) != pageSize {
		t.Errorf("expected region rounded up to %d bytes, got %d", pageSize, len(region))
	}

	// Anonymous mappings are zero-filled.
	for index, value := range region {
		if value != 0 {
			t.Fatalf("expected zero at index %d, got %d", index, value)
		}
	}

	copy(region, []byte("private key material"))

	if err := system.Free(region); err != nil {
		t.Fatalf("Free failed: %v", err)
	}
}

func TestSystem_Allocate_InvalidLength(t *testing.T) {
	system := NewSystem(1 << 20)

	for _, length := range []int{0, -1} {
		if _, err := system.Allocate(length); err == nil {
			t.Errorf("Allocate(%d) succeeded, want error", length)
		}
	}
}

func TestSystem_Limit_EnvironmentOverride(t *testing.T) {
	t.Setenv(LimitEnvironmentVariable, "4")

	if limit := NewSystem(1 << 20).Limit(); limit > 4*1024 {
		t.Errorf("Limit() = %d with %s=4, want at most 4096", limit, LimitEnvironmentVariable)
	}
}

func TestSystem_Limit_OverrideZero(t *testing.T) {
	t.Setenv(LimitEnvironmentVariable, "0")

	if limit := NewSystem(1 << 20).Limit(); limit != 0 {
		t.Errorf("Limit() = %d with %s=0, want 0", limit, LimitEnvironmentVariable)
	}
}
