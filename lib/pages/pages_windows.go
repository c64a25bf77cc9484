// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package pages

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// x/sys/windows does not wrap GetProcessWorkingSetSize.
var procGetProcessWorkingSetSize = windows.NewLazySystemDLL("kernel32.dll").NewProc("GetProcessWorkingSetSize")

// workingSetOverheadPages is the part of the minimum working set that
// VirtualLock will not hand out. Measured as 11 pages on Windows 7
// through 10.
const workingSetOverheadPages = 11

// Allocate commits a read-write region of at least length bytes and
// locks it into the working set. If the lock fails the region is erased
// and released and the error wraps ErrLockFailed.
func (s *System) Allocate(length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("pages: allocation length must be positive, got %d", length)
	}
	size := roundUp(length, s.PageSize())

	address, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("pages: VirtualAlloc %d bytes: %w", size, err)
	}
	region := unsafe.Slice((*byte)(unsafe.Pointer(address)), size)

	if err := windows.VirtualLock(address, uintptr(size)); err != nil {
		Erase(region)
		return nil, lockFailure("VirtualLock", size, err, windows.VirtualFree(address, 0, windows.MEM_RELEASE))
	}

	return region, nil
}

// Free erases the region, then unlocks and releases it.
func (s *System) Free(region []byte) error {
	if len(region) == 0 {
		return nil
	}

	Erase(region)

	address := uintptr(unsafe.Pointer(unsafe.SliceData(region)))
	var firstError error
	if err := windows.VirtualUnlock(address, uintptr(len(region))); err != nil {
		firstError = fmt.Errorf("pages: VirtualUnlock: %w", err)
	}
	if err := windows.VirtualFree(address, 0, windows.MEM_RELEASE); err != nil && firstError == nil {
		firstError = fmt.Errorf("pages: VirtualFree: %w", err)
	}
	return firstError
}

// Limit returns the minimum working-set size minus the lock overhead,
// capped by the configured ceiling.
func (s *System) Limit() int {
	ceiling := lockCeiling(s.ceiling)
	if ceiling == 0 {
		return 0
	}

	var minimum, maximum uintptr
	result, _, _ := procGetProcessWorkingSetSize.Call(
		uintptr(windows.CurrentProcess()),
		uintptr(unsafe.Pointer(&minimum)),
		uintptr(unsafe.Pointer(&maximum)),
	)
	if result == 0 {
		return 0
	}

	overhead := uintptr(s.PageSize() * workingSetOverheadPages)
	if minimum <= overhead {
		return 0
	}
	return min(int(minimum-overhead), ceiling)
}
