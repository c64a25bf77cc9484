// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mempool

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"unsafe"

	"github.com/bureau-foundation/securemem/lib/pages"
)

// MaxAlignmentBits is the largest supported alignment exponent (64
// bytes, one cache line).
const MaxAlignmentBits = 6

// ErrInvalidConfig is wrapped by New for every configuration problem.
var ErrInvalidConfig = errors.New("invalid pool configuration")

// Config holds the pool parameters. They are fixed for the lifetime of
// the pool.
type Config struct {
	// MinAllocation is the smallest request the pool accepts. Must be
	// at least 1.
	MinAllocation int

	// MaxAllocation is the largest request the pool accepts.
	MaxAllocation int

	// AlignmentBits is the alignment exponent: every returned slice
	// starts on a 1<<AlignmentBits byte boundary. Range 0 through
	// MaxAlignmentBits.
	AlignmentBits int

	// PageSize is the host page size. Informational; zero means
	// pages.DefaultPageSize.
	PageSize int
}

// Validate reports every problem with the parameters. The returned
// error wraps ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	if c.MinAllocation < 1 {
		errs = append(errs, fmt.Errorf("minimum allocation must be at least 1, got %d", c.MinAllocation))
	}
	if c.MinAllocation > c.MaxAllocation {
		errs = append(errs, fmt.Errorf("minimum allocation %d exceeds maximum %d", c.MinAllocation, c.MaxAllocation))
	}
	if c.AlignmentBits < 0 || c.AlignmentBits > MaxAlignmentBits {
		errs = append(errs, fmt.Errorf("alignment exponent must be 0 through %d, got %d", MaxAlignmentBits, c.AlignmentBits))
	}
	if len(errs) > 0 {
		return fmt.Errorf("mempool: %w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Span is one free range of the region.
type Span struct {
	Offset int
	Length int
}

func (s Span) end() int {
	return s.Offset + s.Length
}

// Pool carves allocations out of a single region. It is safe for
// concurrent use.
type Pool struct {
	region    []byte
	base      uintptr
	config    Config
	alignment int

	mu   sync.Mutex
	free []Span
}

// New builds a pool over region. The pool borrows region: the caller
// keeps ownership and must not use it directly while the pool is live.
func New(region []byte, config Config) (*Pool, error) {
	if len(region) == 0 {
		return nil, fmt.Errorf("mempool: %w: region is empty", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.PageSize <= 0 {
		config.PageSize = pages.DefaultPageSize
	}

	region = region[:len(region):len(region)]
	return &Pool{
		region:    region,
		base:      addressOf(region),
		config:    config,
		alignment: 1 << config.AlignmentBits,
		free:      []Span{{Offset: 0, Length: len(region)}},
	}, nil
}

// Allocate returns a zeroed slice of exactly length bytes from the
// region, or nil if length is outside the configured bounds or no free
// span can hold it. The returned slice has its capacity clipped to
// length.
func (p *Pool) Allocate(length int) []byte {
	if length < p.config.MinAllocation || length > p.config.MaxAllocation || length > len(p.region) {
		return nil
	}

	offset, ok := p.carve(length)
	if !ok {
		return nil
	}

	if address := p.base + uintptr(offset); address&uintptr(p.alignment-1) != 0 {
		panic(fmt.Sprintf("mempool: allocation at offset %d (address %#x) is not %d-byte aligned; region base is misaligned",
			offset, address, p.alignment))
	}

	data := p.region[offset : offset+length : offset+length]
	pages.Erase(data)
	return data
}

// carve removes length bytes (plus alignment padding) from the
// free-list and returns the offset of the allocation.
func (p *Pool) carve(length int) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for index, span := range p.free {
		if span.Length == length && p.padding(span.Offset) == 0 {
			p.free = slices.Delete(p.free, index, index+1)
			return span.Offset, true
		}
	}

	best := -1
	for index, span := range p.free {
		if span.Length < length+p.padding(span.Offset) {
			continue
		}
		// Strictly smaller: on ties the earlier (lower offset) span wins.
		if best == -1 || span.Length < p.free[best].Length {
			best = index
		}
	}
	if best == -1 {
		return 0, false
	}

	span := p.free[best]
	padding := p.padding(span.Offset)
	offset := span.Offset + padding
	remainder := Span{Offset: offset + length, Length: span.Length - padding - length}

	switch {
	case padding == 0 && remainder.Length == 0:
		p.free = slices.Delete(p.free, best, best+1)
	case padding == 0:
		p.free[best] = remainder
	case remainder.Length == 0:
		p.free[best] = Span{Offset: span.Offset, Length: padding}
	default:
		p.free[best] = Span{Offset: span.Offset, Length: padding}
		p.free = slices.Insert(p.free, best+1, remainder)
	}

	return offset, true
}

// padding returns how many bytes must be skipped from offset to reach
// the next aligned offset.
func (p *Pool) padding(offset int) int {
	return -offset & (p.alignment - 1)
}

// Deallocate zeroes data and returns it to the free-list, merging it
// with adjacent free spans. It returns false, touching nothing, when
// data does not lie entirely inside the region; the caller then owns
// the memory and must release it some other way.
//
// data must be a slice previously returned by Allocate, with the same
// start and length. Freeing a range that is already free panics.
func (p *Pool) Deallocate(data []byte) bool {
	if !p.InPool(data) {
		return false
	}

	pages.Erase(data)
	freed := Span{Offset: int(addressOf(data) - p.base), Length: len(data)}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.release(freed)
	return true
}

func (p *Pool) release(freed Span) {
	index, _ := slices.BinarySearchFunc(p.free, freed.Offset, func(span Span, offset int) int {
		return span.Offset - offset
	})

	if index < len(p.free) && freed.end() > p.free[index].Offset {
		panic(fmt.Sprintf("mempool: freed range [%d, %d) overlaps free span [%d, %d)",
			freed.Offset, freed.end(), p.free[index].Offset, p.free[index].end()))
	}
	if index > 0 && p.free[index-1].end() > freed.Offset {
		panic(fmt.Sprintf("mempool: freed range [%d, %d) overlaps free span [%d, %d)",
			freed.Offset, freed.end(), p.free[index-1].Offset, p.free[index-1].end()))
	}

	mergeNext := index < len(p.free) && freed.end() == p.free[index].Offset
	mergePrevious := index > 0 && p.free[index-1].end() == freed.Offset

	switch {
	case mergePrevious && mergeNext:
		p.free[index-1].Length += freed.Length + p.free[index].Length
		p.free = slices.Delete(p.free, index, index+1)
	case mergePrevious:
		p.free[index-1].Length += freed.Length
	case mergeNext:
		p.free[index].Offset = freed.Offset
		p.free[index].Length += freed.Length
	default:
		p.free = slices.Insert(p.free, index, freed)
	}
}

// InPool reports whether data lies entirely inside the region.
func (p *Pool) InPool(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	address := addressOf(data)
	if address < p.base {
		return false
	}
	offset := address - p.base
	size := uintptr(len(p.region))
	return offset < size && uintptr(len(data)) <= size-offset
}

// Reset returns the pool to a single free span covering the region and
// zeroes the region. Outstanding allocations become invalid; only call
// this at teardown or in tests.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.free = append(p.free[:0], Span{Offset: 0, Length: len(p.region)})
	pages.Erase(p.region)
}

// Size returns the region length in bytes.
func (p *Pool) Size() int {
	return len(p.region)
}

// Config returns the pool parameters.
func (p *Pool) Config() Config {
	return p.config
}

// FreeBytes returns the total length of all free spans.
func (p *Pool) FreeBytes() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0
	for _, span := range p.free {
		total += span.Length
	}
	return total
}

// FreeSpans returns a copy of the free-list.
func (p *Pool) FreeSpans() []Span {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.free)
}

// Check verifies the free-list invariants: spans in bounds, non-empty,
// sorted, non-overlapping and non-adjacent.
func (p *Pool) Check() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for index, span := range p.free {
		if span.Length <= 0 {
			return fmt.Errorf("mempool: span %d at offset %d has length %d", index, span.Offset, span.Length)
		}
		if span.Offset < 0 || span.end() > len(p.region) {
			return fmt.Errorf("mempool: span %d [%d, %d) outside region of %d bytes", index, span.Offset, span.end(), len(p.region))
		}
		if index == 0 {
			continue
		}
		previous := p.free[index-1]
		switch {
		case previous.end() > span.Offset:
			return fmt.Errorf("mempool: spans [%d, %d) and [%d, %d) overlap or are unsorted",
				previous.Offset, previous.end(), span.Offset, span.end())
		case previous.end() == span.Offset:
			return fmt.Errorf("mempool: spans [%d, %d) and [%d, %d) are adjacent but not merged",
				previous.Offset, previous.end(), span.Offset, span.end())
		}
	}
	return nil
}

func addressOf(data []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(data)))
}
