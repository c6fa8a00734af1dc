// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package mempool

// Slab is a Pool of values of a single type. Chunks are typed slices, so
// values may hold pointers and remain visible to the garbage collector.
type Slab[T any] struct {
	a *arena[T]
}

// NewSlab creates an empty slab. chunkLen is the number of values a new
// chunk holds; lookback is as for New.
func NewSlab[T any](chunkLen, lookback int, opts ...Option) (*Slab[T], error) {
	a, err := newArena[T](chunkLen, lookback, opts)
	if err != nil {
		return nil, err
	}
	return &Slab[T]{a: a}, nil
}

// New returns a pointer to a zero T carved out of the slab.
func (s *Slab[T]) New() (*T, error) {
	buf, err := s.a.alloc(1)
	if err != nil {
		return nil, err
	}
	return &buf[0], nil
}

// Contains reports whether p points into the slab's chunks.
func (s *Slab[T]) Contains(p *T) bool {
	return s.a.contains(p)
}

// Free drops every chunk. Values already handed out stay valid for as
// long as they are referenced, but are no longer accounted for.
func (s *Slab[T]) Free() {
	s.a.free()
}

// Stats returns the slab counters. Reserved is in values, not bytes.
func (s *Slab[T]) Stats() Stats {
	return s.a.stats()
}
