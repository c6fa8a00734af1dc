// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package mempool implements a grow-only bump-pointer allocator.
//
// Memory is carved out of chunks by atomically advancing a cursor. There is
// no per-allocation free: all chunks are dropped together by Free. Several
// goroutines can allocate from the same pool at once, every cursor and the
// chunk list are only ever updated with compare-and-swap.
package mempool

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"
)

var (
	// ErrInvalidArgument is returned for zero or negative sizes.
	ErrInvalidArgument = errors.New("mempool: invalid argument")
	// ErrExhausted is returned when the pool limit does not allow another
	// chunk, or when a request is too big for any chunk.
	ErrExhausted = errors.New("mempool: exhausted")
)

// Align is the granularity byte allocations are rounded up to.
const Align = int(unsafe.Sizeof(uint64(0)))

const (
	defaultChunkSize = 10 * 1024
	defaultLookback  = 3

	// maxChunkBytes bounds a single chunk. Requests that would need a
	// bigger chunk fail with ErrExhausted.
	maxChunkBytes = math.MaxInt32
)

// Option configures a Pool or a Slab.
type Option func(*config)

type config struct {
	limit int64
}

// WithLimit caps the total size of the chunks a pool may hold, in
// elements (bytes for a Pool). Allocations that would need a chunk past the
// limit fail with ErrExhausted.
func WithLimit(max int64) Option {
	return func(c *config) {
		c.limit = max
	}
}

// Stats describes the state of a pool.
type Stats struct {
	Chunks uint64
	// Reserved counts elements held in chunks (bytes for a Pool).
	Reserved uint64
	// AllocRetries counts lost CAS races on a chunk cursor.
	AllocRetries uint64
	// ChunkRetries counts lost CAS races installing a new chunk.
	ChunkRetries uint64
}

type chunk[T any] struct {
	next  *chunk[T]
	buf   []T
	avail atomic.Int64
}

// claim reserves n elements at the cursor. It fails once the chunk cannot fit n.
func (c *chunk[T]) claim(n int, retries *atomic.Uint64) ([]T, bool) {
	for {
		avail := c.avail.Load()
		end := avail + int64(n)
		if end > int64(len(c.buf)) {
			return nil, false
		}
		if c.avail.CompareAndSwap(avail, end) {
			return c.buf[avail:end:end], true
		}
		retries.Add(1)
	}
}

// arena holds the chunk algorithm shared by Pool and Slab.
type arena[T any] struct {
	chunks atomic.Pointer[chunk[T]]
	_      cpu.CacheLinePad

	chunkSize int
	lookback  int
	limit     int64
	// maximum elements in a chunk
	maxLen int

	reserved     atomic.Int64
	nchunks      atomic.Uint64
	allocRetries atomic.Uint64
	chunkRetries atomic.Uint64
}

func newArena[T any](chunkSize, lookback int, opts []Option) (*arena[T], error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d", ErrInvalidArgument, chunkSize)
	}
	if lookback < 0 {
		return nil, fmt.Errorf("%w: lookback %d", ErrInvalidArgument, lookback)
	}
	maxLen := maxChunkBytes
	var zero T
	if size := int(unsafe.Sizeof(zero)); size > 0 {
		maxLen /= size
	}
	if chunkSize >= maxLen {
		return nil, fmt.Errorf("%w: chunk size %d above %d", ErrInvalidArgument, chunkSize, maxLen-1)
	}
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	return &arena[T]{chunkSize: chunkSize, lookback: lookback, limit: cfg.limit,
		maxLen: maxLen}, nil
}

func (a *arena[T]) alloc(n int) ([]T, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: allocation of %d", ErrInvalidArgument, n)
	}
	for {
		head := a.chunks.Load()
		// the newest chunk plus up to lookback older ones
		c := head
		for i := 0; c != nil && i <= a.lookback; i++ {
			if buf, ok := c.claim(n, &a.allocRetries); ok {
				return buf, nil
			}
			c = c.next
		}

		// another goroutine already installed a chunk, try it first
		if head != a.chunks.Load() {
			continue
		}

		if n > a.maxLen-a.chunkSize {
			return nil, fmt.Errorf("%w: %d elements requested, chunks hold at most %d",
				ErrExhausted, n, a.maxLen)
		}
		size := n + a.chunkSize
		if a.limit > 0 && a.reserved.Add(int64(size)) > a.limit {
			a.reserved.Add(-int64(size))
			return nil, fmt.Errorf("%w: %d elements requested, %d of %d reserved",
				ErrExhausted, n, a.reserved.Load(), a.limit)
		}
		next := &chunk[T]{next: head, buf: make([]T, size)}
		next.avail.Store(int64(n))
		if a.chunks.CompareAndSwap(head, next) {
			if a.limit <= 0 {
				a.reserved.Add(int64(size))
			}
			a.nchunks.Add(1)
			return next.buf[:n:n], nil
		}
		// Lost the install race. Nothing references next, so it is
		// collected; give its budget back and retry on the winner's chunk.
		if a.limit > 0 {
			a.reserved.Add(-int64(size))
		}
		a.chunkRetries.Add(1)
	}
}

// contains reports whether p is inside one of the chunks.
func (a *arena[T]) contains(p *T) bool {
	for c := a.chunks.Load(); c != nil; c = c.next {
		if len(c.buf) == 0 {
			continue
		}
		start := uintptr(unsafe.Pointer(&c.buf[0]))
		end := start + uintptr(len(c.buf))*unsafe.Sizeof(c.buf[0])
		if addr := uintptr(unsafe.Pointer(p)); addr >= start && addr < end {
			return true
		}
	}
	return false
}

func (a *arena[T]) free() {
	a.chunks.Store(nil)
	a.reserved.Store(0)
	a.nchunks.Store(0)
}

func (a *arena[T]) stats() Stats {
	return Stats{
		Chunks:       a.nchunks.Load(),
		Reserved:     uint64(a.reserved.Load()),
		AllocRetries: a.allocRetries.Load(),
		ChunkRetries: a.chunkRetries.Load(),
	}
}

// Pool hands out byte ranges from shared chunks.
type Pool struct {
	a *arena[byte]
}

// New creates an empty pool. chunkSize is how many bytes beyond the
// triggering request a new chunk gets; lookback is how many chunks older
// than the newest one are still searched for free space.
func New(chunkSize, lookback int, opts ...Option) (*Pool, error) {
	a, err := newArena[byte](chunkSize, lookback, opts)
	if err != nil {
		return nil, err
	}
	return &Pool{a: a}, nil
}

// NewDefault creates a pool with 10KiB chunks and a lookback of 3.
func NewDefault() *Pool {
	p, _ := New(defaultChunkSize, defaultLookback)
	return p
}

// Alloc returns n bytes, rounded up to a multiple of Align. The returned
// slice has its capacity clipped so it cannot grow into memory handed to
// another caller. Memory in a fresh chunk is zero, but callers that need
// zeroed memory should use Calloc.
func (p *Pool) Alloc(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: allocation of %d bytes", ErrInvalidArgument, n)
	}
	if n > math.MaxInt-Align {
		return nil, fmt.Errorf("%w: allocation of %d bytes", ErrInvalidArgument, n)
	}
	return p.a.alloc((n + Align - 1) / Align * Align)
}

// Calloc allocates count*size zeroed bytes.
func (p *Pool) Calloc(count, size int) ([]byte, error) {
	if count <= 0 || size <= 0 {
		return nil, fmt.Errorf("%w: calloc(%d, %d)", ErrInvalidArgument, count, size)
	}
	if count > math.MaxInt/size {
		return nil, fmt.Errorf("%w: calloc(%d, %d) overflows", ErrInvalidArgument, count, size)
	}
	buf, err := p.Alloc(count * size)
	if err != nil {
		return nil, err
	}
	for i := range buf {
		buf[i] = 0
	}
	return buf, nil
}

// Contains reports whether b starts inside memory owned by the pool.
func (p *Pool) Contains(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	return p.a.contains(&b[0])
}

// Free drops every chunk. It must not run concurrently with Alloc, and
// memory handed out before must not be used afterwards.
func (p *Pool) Free() {
	p.a.free()
}

// Stats returns the pool counters.
func (p *Pool) Stats() Stats {
	return p.a.stats()
}
