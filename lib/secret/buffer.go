// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/bureau-foundation/securemem/lib/lockalloc"
	"github.com/bureau-foundation/securemem/lib/pages"
)

// ErrEmpty is returned by NewFromReader when the reader holds no data.
var ErrEmpty = errors.New("secret: source is empty")

// ErrTooLarge is returned by NewFromReader when the reader holds more
// than the limit.
var ErrTooLarge = errors.New("secret: source exceeds size limit")

// Allocator is the memory source for a Buffer. *lockalloc.Allocator
// implements it.
type Allocator interface {
	Allocate(elementCount, elementSize int) []byte
	Deallocate(data []byte, elementCount, elementSize int)
}

// Buffer holds sensitive data in locked memory when the process has
// any to spare, and zeroes it on Close.
//
// A Buffer must not be copied after creation. Use Close to release the
// memory when the secret is no longer needed. After Close, any access
// to the buffer's contents will panic.
type Buffer struct {
	allocator Allocator

	mu     sync.Mutex
	data   []byte
	length int
	closed bool
}

// New allocates a zero-filled secret buffer of the given size from
// the process-wide locking allocator.
//
// The caller must call Close when the secret is no longer needed.
func New(size int) (*Buffer, error) {
	return NewIn(lockalloc.Instance(), size)
}

// NewIn allocates a zero-filled secret buffer from allocator.
func NewIn(allocator Allocator, size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}

	return &Buffer{
		allocator: allocator,
		data:      allocator.Allocate(size, 1),
		length:    size,
	}, nil
}

// NewFromBytes creates a secret buffer from existing data. The source
// bytes are copied into the buffer and then zeroed in place, so the
// caller's original slice no longer holds the secret.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("secret: cannot create buffer from empty source")
	}

	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}

	copy(buffer.data, source)
	Zero(source)

	return buffer, nil
}

// NewFromReader reads reader to EOF into a secret buffer. Reading more
// than limit bytes fails with ErrTooLarge. An empty reader is an error.
// No intermediate copy of the data is left on the heap.
func NewFromReader(reader io.Reader, limit int) (*Buffer, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("secret: read limit must be positive, got %d", limit)
	}

	scratch, err := New(limit)
	if err != nil {
		return nil, err
	}
	defer func() { scratch.Close() }()

	length, err := io.ReadFull(reader, scratch.data)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
	case err != nil:
		return nil, fmt.Errorf("secret: reading source: %w", err)
	default:
		// Exactly limit bytes so far; anything more is too much.
		var probe [1]byte
		extra, probeErr := reader.Read(probe[:])
		Zero(probe[:])
		if extra > 0 {
			return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, limit)
		}
		if probeErr != nil && !errors.Is(probeErr, io.EOF) {
			return nil, fmt.Errorf("secret: reading source: %w", probeErr)
		}
	}

	if length == 0 {
		return nil, ErrEmpty
	}
	if length == limit {
		buffer := scratch
		scratch = nil
		return buffer, nil
	}

	buffer, err := New(length)
	if err != nil {
		return nil, err
	}
	copy(buffer.data, scratch.data[:length])
	return buffer, nil
}

// Bytes returns the secret data. The returned slice points directly into
// the buffer's memory; do not hold references to it beyond the lifetime
// of the Buffer. Panics if the buffer has been closed.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}

	return b.data[:b.length]
}

// String returns the secret data as a string. The returned string is
// backed by a heap-allocated copy (Go strings are immutable and must
// live on the heap), so this should only be used at API boundaries
// that require string arguments. Prefer Bytes() when possible.
//
// Panics if the buffer has been closed.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}

	return string(b.data[:b.length])
}

// Len returns the size of the secret data.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.length
}

// Equal reports whether the buffer holds exactly other, in time that
// depends only on the lengths. Panics if the buffer has been closed.
func (b *Buffer) Equal(other []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}

	return subtle.ConstantTimeCompare(b.data[:b.length], other) == 1
}

// WriteTo writes the secret to writer without an intermediate copy.
// Panics if the buffer has been closed.
func (b *Buffer) WriteTo(writer io.Writer) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}

	written, err := writer.Write(b.data[:b.length])
	return int64(written), err
}

// Close zeroes the buffer and returns its memory to the allocator.
// After Close, any access to the buffer's Bytes() will panic.
// Close is idempotent and safe to call on a nil Buffer.
func (b *Buffer) Close() error {
	if b == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	b.allocator.Deallocate(b.data, b.length, 1)
	b.data = nil
	return nil
}

// Zero overwrites data with zeroes in a way the compiler will not
// elide.
func Zero(data []byte) {
	pages.Erase(data)
}

var (
	_ io.WriterTo = (*Buffer)(nil)
	_ io.Closer   = (*Buffer)(nil)
	_ Allocator   = (*lockalloc.Allocator)(nil)
)
