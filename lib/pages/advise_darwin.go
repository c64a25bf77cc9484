// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pages

// adviseRegion is a no-op: darwin has no madvise flag that excludes
// anonymous memory from core dumps.
func adviseRegion([]byte) {}
