// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lockalloc

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/securemem/lib/mempool"
	"github.com/bureau-foundation/securemem/lib/pages"
)

// Build-time defaults for the process-wide allocator.
const (
	// DefaultMinAllocation is the smallest request served from the pool.
	DefaultMinAllocation = 16

	// DefaultMaxAllocation is the largest request served from the pool.
	// Post-quantum secret keys run to a few KiB.
	DefaultMaxAllocation = 4096

	// DefaultAlignmentBits aligns pool allocations to 16 bytes.
	DefaultAlignmentBits = 4

	// DefaultMaxLockedBytes caps the locked region.
	DefaultMaxLockedBytes = 512 * 1024
)

// ErrSizeOverflow is the panic value (wrapped) for a byte length that
// cannot be represented.
var ErrSizeOverflow = errors.New("allocation size overflows")

// ErrInUse is returned by Close while pool allocations are outstanding.
// The region stays mapped and locked.
var ErrInUse = errors.New("locked pool has allocations outstanding")

// Config controls an Allocator.
type Config struct {
	// MinAllocation, MaxAllocation and AlignmentBits are passed to the
	// pool. See mempool.Config.
	MinAllocation int
	MaxAllocation int
	AlignmentBits int

	// MaxLockedBytes caps the region size below the provider's Limit.
	// Zero or negative disables locking, the same as a zero ceiling
	// passed to pages.NewSystem.
	MaxLockedBytes int

	// Logger receives lifecycle messages. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the build-time defaults.
func DefaultConfig() Config {
	return Config{
		MinAllocation:  DefaultMinAllocation,
		MaxAllocation:  DefaultMaxAllocation,
		AlignmentBits:  DefaultAlignmentBits,
		MaxLockedBytes: DefaultMaxLockedBytes,
	}
}

// Allocator routes secret allocations to a locked pool or the heap.
type Allocator struct {
	provider pages.Provider
	logger   *slog.Logger

	// mu is held for reading around every use of the pool and for
	// writing by Close, so the region is never released under a
	// running Allocate or Deallocate.
	mu     sync.RWMutex
	pool   atomic.Pointer[mempool.Pool]
	region []byte

	poolAllocations   atomic.Uint64
	poolDeallocations atomic.Uint64
	heapAllocations   atomic.Uint64
	heapDeallocations atomic.Uint64
	poolBytesInUse    atomic.Int64
}

// New creates an Allocator over provider. When the provider reports no
// lockable memory, or the region cannot be allocated, the Allocator
// runs heap-only; that is logged, not returned as an error. An error is
// returned only for an invalid pool configuration.
func New(provider pages.Provider, config Config) (*Allocator, error) {
	poolConfig, err := newPoolConfig(provider, config)
	if err != nil {
		return nil, err
	}
	pageSize := poolConfig.PageSize

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	allocator := &Allocator{
		provider: provider,
		logger:   logger,
	}

	limit := min(provider.Limit(), config.MaxLockedBytes)
	limit -= limit % pageSize
	if limit <= 0 {
		logger.Info("locked memory unavailable, secret allocations will use the heap",
			"page_size", pageSize,
			"max_locked_bytes", config.MaxLockedBytes,
		)
		return allocator, nil
	}

	region, err := provider.Allocate(limit)
	if err != nil {
		logger.Warn("allocating locked region failed, secret allocations will use the heap",
			"bytes", limit,
			"error", err,
		)
		return allocator, nil
	}

	pool, err := mempool.New(region, poolConfig)
	if err != nil {
		if freeErr := provider.Free(region); freeErr != nil {
			logger.Warn("releasing locked region failed", "bytes", len(region), "error", freeErr)
		}
		return nil, fmt.Errorf("lockalloc: %w", err)
	}

	allocator.region = region
	allocator.pool.Store(pool)
	logger.Info("locked memory pool ready",
		"region_bytes", len(region),
		"page_size", pageSize,
		"min_allocation", config.MinAllocation,
		"max_allocation", config.MaxAllocation,
		"alignment", 1<<config.AlignmentBits,
	)
	return allocator, nil
}

// newPoolConfig derives and validates the pool configuration for
// provider.
func newPoolConfig(provider pages.Provider, config Config) (mempool.Config, error) {
	if provider == nil {
		return mempool.Config{}, errors.New("lockalloc: nil page provider")
	}
	pageSize := provider.PageSize()
	if pageSize <= 0 {
		pageSize = pages.DefaultPageSize
	}
	poolConfig := mempool.Config{
		MinAllocation: config.MinAllocation,
		MaxAllocation: config.MaxAllocation,
		AlignmentBits: config.AlignmentBits,
		PageSize:      pageSize,
	}
	if err := poolConfig.Validate(); err != nil {
		return mempool.Config{}, fmt.Errorf("lockalloc: %w", err)
	}
	return poolConfig, nil
}

// Allocate returns elementCount*elementSize zeroed bytes, from the
// locked pool when it can and from the heap otherwise. A zero total
// returns an empty, non-nil slice.
//
// Panics with ErrSizeOverflow if the product overflows or either
// argument is negative.
func (a *Allocator) Allocate(elementCount, elementSize int) []byte {
	length := byteLength(elementCount, elementSize)
	if length == 0 {
		return []byte{}
	}

	if data := a.allocateFromPool(length); data != nil {
		return data
	}

	a.heapAllocations.Add(1)
	return make([]byte, length)
}

// Deallocate zeroes data and releases it. elementCount and elementSize
// must match the Allocate call that produced data. A nil slice is a
// no-op.
func (a *Allocator) Deallocate(data []byte, elementCount, elementSize int) {
	if data == nil {
		return
	}
	length := byteLength(elementCount, elementSize)
	if length == 0 {
		return
	}
	data = data[:length]

	a.mu.RLock()
	pages.Erase(data)
	pool := a.pool.Load()
	released := pool != nil && pool.Deallocate(data)
	if released {
		a.poolDeallocations.Add(1)
		a.poolBytesInUse.Add(-int64(length))
	}
	a.mu.RUnlock()

	if released {
		return
	}

	// Heap memory: already zeroed, the garbage collector reclaims it.
	a.heapDeallocations.Add(1)
}

// allocateFromPool returns length bytes from the pool, or nil when
// there is no pool or it cannot serve the request.
func (a *Allocator) allocateFromPool(length int) []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()

	pool := a.pool.Load()
	if pool == nil {
		return nil
	}
	data := pool.Allocate(length)
	if data != nil {
		a.poolAllocations.Add(1)
		a.poolBytesInUse.Add(int64(length))
	}
	return data
}

// Locked reports whether a locked pool backs this Allocator.
func (a *Allocator) Locked() bool {
	return a.pool.Load() != nil
}

// Close zeroes the pool, then erases, unlocks and unmaps the region
// through the page provider. Later allocations come from the heap.
// Close is idempotent.
//
// While any pool allocation is outstanding Close returns an error
// wrapping ErrInUse and leaves the pool in service; deallocate
// everything and call it again.
func (a *Allocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	pool := a.pool.Load()
	if pool == nil {
		return nil
	}

	if inUse := a.poolBytesInUse.Load(); inUse != 0 {
		a.logger.Warn("not releasing locked pool with allocations outstanding", "bytes_in_use", inUse)
		return fmt.Errorf("lockalloc: %w: %d bytes", ErrInUse, inUse)
	}

	a.pool.Store(nil)
	pool.Reset()
	region := a.region
	a.region = nil

	if err := a.provider.Free(region); err != nil {
		a.logger.Warn("releasing locked region failed", "bytes", len(region), "error", err)
		return fmt.Errorf("lockalloc: releasing locked region: %w", err)
	}
	return nil
}

// byteLength multiplies with overflow detection.
func byteLength(elementCount, elementSize int) int {
	if elementCount < 0 || elementSize < 0 {
		panic(fmt.Errorf("lockalloc: %w: negative element count %d or size %d", ErrSizeOverflow, elementCount, elementSize))
	}
	high, low := bits.Mul64(uint64(elementCount), uint64(elementSize))
	if high != 0 || low > math.MaxInt {
		panic(fmt.Errorf("lockalloc: %w: %d elements of %d bytes", ErrSizeOverflow, elementCount, elementSize))
	}
	return int(low)
}
