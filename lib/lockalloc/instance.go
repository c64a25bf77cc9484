// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lockalloc

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/securemem/lib/pages"
)

// ErrAlreadyCreated is returned by Configure once the process-wide
// Allocator exists with a different pool shape.
var ErrAlreadyCreated = errors.New("process-wide allocator already created")

var process struct {
	mu        sync.Mutex
	provider  pages.Provider
	config    Config
	allocator atomic.Pointer[Allocator]
}

// Configure sets the provider and configuration the process-wide
// Allocator is built from. It must run before the first Instance call;
// later calls succeed only when config has the same pool shape as the
// existing Allocator (the provider and logger are then ignored) and
// otherwise return ErrAlreadyCreated. The configuration is validated
// here so Instance cannot fail on it.
func Configure(provider pages.Provider, config Config) error {
	process.mu.Lock()
	defer process.mu.Unlock()

	if process.allocator.Load() != nil {
		if !sameShape(process.config, config) {
			return fmt.Errorf("lockalloc: %w with a different configuration", ErrAlreadyCreated)
		}
		return nil
	}
	if _, err := newPoolConfig(provider, config); err != nil {
		return err
	}
	process.provider = provider
	process.config = config
	return nil
}

// Instance returns the process-wide Allocator, creating its locked
// region on first call from the Configure settings, or from
// DefaultConfig over pages.NewSystem when Configure was never called.
// Concurrent first calls create exactly one region.
func Instance() *Allocator {
	if allocator := process.allocator.Load(); allocator != nil {
		return allocator
	}

	process.mu.Lock()
	defer process.mu.Unlock()
	if allocator := process.allocator.Load(); allocator != nil {
		return allocator
	}

	provider, config := process.provider, process.config
	if provider == nil {
		config = DefaultConfig()
		provider = pages.NewSystem(config.MaxLockedBytes)
		process.config = config
	}
	allocator, err := New(provider, config)
	if err != nil {
		// Configure validated the configuration and DefaultConfig is
		// constant.
		panic(err)
	}
	process.allocator.Store(allocator)
	return allocator
}

// Shutdown closes the process-wide Allocator if it was ever created.
// After Shutdown, Instance still works but serves only from the heap.
// Like Close, it refuses with ErrInUse while secrets are outstanding.
func Shutdown() error {
	allocator := process.allocator.Load()
	if allocator == nil {
		return nil
	}
	return allocator.Close()
}

// sameShape reports whether two configurations build the same pool.
func sameShape(a, b Config) bool {
	return a.MinAllocation == b.MinAllocation &&
		a.MaxAllocation == b.MaxAllocation &&
		a.AlignmentBits == b.AlignmentBits &&
		a.MaxLockedBytes == b.MaxLockedBytes
}
