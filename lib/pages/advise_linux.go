// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pages

import "golang.org/x/sys/unix"

// adviseRegion keeps the region out of core dumps and zero-fills it in
// forked children. Older kernels reject either flag; the region is
// still protected against swap by mlock, so failures are ignored.
func adviseRegion(region []byte) {
	_ = unix.Madvise(region, unix.MADV_DONTDUMP)
	_ = unix.Madvise(region, unix.MADV_WIPEONFORK)
}
