// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package hashmap

import (
	"fmt"
	"sync/atomic"

	"github.com/aristanetworks/lockfree/mempool"
	"github.com/aristanetworks/lockfree/reclaim"
)

// Node is a map entry. Its key and value do not change once it is in a
// bucket; replacing a value swaps in a new Node.
type Node[K, V any] struct {
	next  atomic.Pointer[Node[K, V]]
	key   K
	value V
	// A marker is linked behind a node that is being removed. It holds
	// the removed node's successor in next.
	marker bool
}

// Init sets the key and value of a node that is not in a map yet.
func (n *Node[K, V]) Init(key K, value V) {
	n.key = key
	n.value = value
}

// Key returns the node's key.
func (n *Node[K, V]) Key() K {
	return n.key
}

// Value returns the node's value.
func (n *Node[K, V]) Value() V {
	return n.value
}

func (n *Node[K, V]) marked() bool {
	next := n.next.Load()
	return next != nil && next.marker
}

func (n *Node[K, V]) successor() *Node[K, V] {
	next := n.next.Load()
	if next != nil && next.marker {
		return next.next.Load()
	}
	return next
}

// Lifecycle creates the nodes of new entries and disposes of the nodes of
// removed ones. Destroy is called once per node, right after the node was
// unlinked, while concurrent readers may still be looking at it.
type Lifecycle[K, V any] interface {
	Create(key K, value V) (*Node[K, V], error)
	Destroy(n *Node[K, V]) error
}

// deferred hands removed nodes to a Reclaimer.
type deferred[K, V any] struct {
	reclaimer    *reclaim.Reclaimer
	releaseKey   func(K)
	releaseValue func(V)
}

func clearNode[K, V any](n *Node[K, V]) {
	var (
		k K
		v V
	)
	n.key = k
	n.value = v
}

func (d *deferred[K, V]) destroy(n *Node[K, V]) error {
	if d.reclaimer == nil {
		return nil
	}
	// nothing is registered at all once the reclaimer is closed
	if d.reclaimer.Closed() {
		return reclaim.ErrClosed
	}
	if d.releaseKey != nil {
		if err := reclaim.Defer(d.reclaimer, n.key, d.releaseKey); err != nil {
			return err
		}
	}
	if d.releaseValue != nil {
		if err := reclaim.Defer(d.reclaimer, n.value, d.releaseValue); err != nil {
			return err
		}
	}
	return reclaim.Defer(d.reclaimer, n, clearNode[K, V])
}

type heapLifecycle[K, V any] struct {
	deferred deferred[K, V]
}

func (h *heapLifecycle[K, V]) Create(key K, value V) (*Node[K, V], error) {
	return &Node[K, V]{key: key, value: value}, nil
}

func (h *heapLifecycle[K, V]) Destroy(n *Node[K, V]) error {
	return h.deferred.destroy(n)
}

// SlabLifecycle allocates nodes from a mempool.Slab. Removed nodes are
// deferred to a Reclaimer like with the default Lifecycle; their memory
// stays in the slab until the slab is freed.
type SlabLifecycle[K, V any] struct {
	slab     *mempool.Slab[Node[K, V]]
	deferred deferred[K, V]
}

// NewSlabLifecycle returns a Lifecycle allocating from slab. r may be nil
// if releaseKey and releaseValue are nil too.
func NewSlabLifecycle[K, V any](slab *mempool.Slab[Node[K, V]], r *reclaim.Reclaimer,
	releaseKey func(K), releaseValue func(V)) (*SlabLifecycle[K, V], error) {
	if slab == nil {
		return nil, fmt.Errorf("%w: nil slab", ErrInvalidArgument)
	}
	if r == nil && (releaseKey != nil || releaseValue != nil) {
		return nil, ErrNoReclaimer
	}
	return &SlabLifecycle[K, V]{
		slab: slab,
		deferred: deferred[K, V]{
			reclaimer:    r,
			releaseKey:   releaseKey,
			releaseValue: releaseValue,
		},
	}, nil
}

// Create carves a node out of the slab.
func (s *SlabLifecycle[K, V]) Create(key K, value V) (*Node[K, V], error) {
	n, err := s.slab.New()
	if err != nil {
		return nil, fmt.Errorf("hashmap: allocating node: %w", err)
	}
	n.Init(key, value)
	return n, nil
}

// Destroy defers the release of n's key and value.
func (s *SlabLifecycle[K, V]) Destroy(n *Node[K, V]) error {
	return s.deferred.destroy(n)
}
