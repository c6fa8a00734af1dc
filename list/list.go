// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package list implements lock-free singly-linked lists.
//
// List only supports adding, which makes it safe to walk at any time. It
// is the staging buffer of package reclaim. EpochList also supports
// deleting values; deleted nodes are released once every participating
// goroutine has checked in with the list's epoch barrier.
package list

import "sync/atomic"

type node[T any] struct {
	next atomic.Pointer[node[T]]
	val  T

	// Set on the markers EpochList links behind a node it is deleting.
	marker bool
	back   bool
}

// Stats holds CAS retry counters, which are only meant for tests and for
// estimating contention.
type Stats struct {
	RetriesEmpty     uint64
	RetriesPopulated uint64
}

// List is an append-only list. New values are linked in front of the
// current head, so walking the list visits the newest values first.
// The zero value is an empty list.
type List[T any] struct {
	head atomic.Pointer[node[T]]
	len  atomic.Int64

	retriesEmpty     atomic.Uint64
	retriesPopulated atomic.Uint64
}

// New returns an empty List.
func New[T any]() *List[T] {
	return &List[T]{}
}

// Add prepends v.
func (l *List[T]) Add(v T) {
	n := &node[T]{val: v}
	for {
		head := l.head.Load()
		n.next.Store(head)
		if l.head.CompareAndSwap(head, n) {
			l.len.Add(1)
			return
		}
		if head == nil {
			l.retriesEmpty.Add(1)
		} else {
			l.retriesPopulated.Add(1)
		}
	}
}

// Len returns the number of values in the list.
func (l *List[T]) Len() int {
	if n := l.len.Load(); n > 0 {
		return int(n)
	}
	return 0
}

// Range calls fn on each value, newest first, until fn returns false.
func (l *List[T]) Range(fn func(T) bool) {
	for n := l.head.Load(); n != nil; n = n.next.Load() {
		if !fn(n.val) {
			return
		}
	}
}

// Detach atomically takes every value out of the list and returns them,
// oldest first. Values added concurrently either make it into the result
// or stay in the list.
func (l *List[T]) Detach() []T {
	var head *node[T]
	for {
		head = l.head.Load()
		if head == nil {
			return nil
		}
		if l.head.CompareAndSwap(head, nil) {
			break
		}
	}
	var vals []T
	for n := head; n != nil; n = n.next.Load() {
		vals = append(vals, n.val)
	}
	l.len.Add(-int64(len(vals)))
	for i, j := 0, len(vals)-1; i < j; i, j = i+1, j-1 {
		vals[i], vals[j] = vals[j], vals[i]
	}
	return vals
}

// Stats returns the retry counters.
func (l *List[T]) Stats() Stats {
	return Stats{
		RetriesEmpty:     l.retriesEmpty.Load(),
		RetriesPopulated: l.retriesPopulated.Load(),
	}
}
