// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lockalloc

// Stats is a point-in-time snapshot of allocator activity. Counters
// are read individually, so a snapshot taken under concurrent load is
// not a consistent cut.
type Stats struct {
	// Locked is true while a locked pool backs the allocator.
	Locked bool

	// RegionBytes is the size of the locked region (0 when heap-only).
	RegionBytes int

	// PoolFreeBytes is the pool's free-list total.
	PoolFreeBytes int

	// PoolBytesInUse is the sum of live pool allocations.
	PoolBytesInUse int64

	PoolAllocations   uint64
	PoolDeallocations uint64
	HeapAllocations   uint64
	HeapDeallocations uint64
}

// Stats returns current counters.
func (a *Allocator) Stats() Stats {
	stats := Stats{
		PoolBytesInUse:    a.poolBytesInUse.Load(),
		PoolAllocations:   a.poolAllocations.Load(),
		PoolDeallocations: a.poolDeallocations.Load(),
		HeapAllocations:   a.heapAllocations.Load(),
		HeapDeallocations: a.heapDeallocations.Load(),
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if pool := a.pool.Load(); pool != nil {
		stats.Locked = true
		stats.RegionBytes = pool.Size()
		stats.PoolFreeBytes = pool.FreeBytes()
	}
	return stats
}
