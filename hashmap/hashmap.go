// Copyright (c) 2020 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package hashmap implements a lock-free hash map with a fixed number of
// buckets.
//
// Each bucket is a singly-linked chain of nodes updated with
// compare-and-swap only. Get never blocks and never writes. Put and Del
// retry until their CAS lands. Nodes that Put replaces or Del removes may
// still be in use by concurrent readers, so they are handed to the map's
// Lifecycle instead of being dropped; the default one registers them with
// a reclaim.Reclaimer.
package hashmap

import (
	"errors"
	"fmt"
	"hash/maphash"
	"runtime"
	"sync/atomic"

	"github.com/aristanetworks/lockfree/reclaim"
	"golang.org/x/sys/cpu"
)

var (
	// ErrInvalidArgument is returned for a zero bucket count or nil functions.
	ErrInvalidArgument = errors.New("hashmap: invalid argument")
	// ErrNoReclaimer is returned when release functions are given without
	// a Reclaimer to defer them to.
	ErrNoReclaimer = errors.New("hashmap: release functions need a reclaimer")
)

// Hashable represents the key for an entry in a Map that cannot natively be hashed
type Hashable interface {
	Hash() uint64
	Equal(other interface{}) bool
}

// HashableHash and HashableEqual let a Map use Hashable keys.
func HashableHash[K Hashable](k K) uint64 { return k.Hash() }

// HashableEqual reports whether a and b are equal Hashable keys.
func HashableEqual[K Hashable](a, b K) bool { return a.Equal(b) }

// EqualFromCompare turns a comparison function, which returns 0 for
// equal keys, into the equality function a Map needs.
func EqualFromCompare[K any](cmp func(a, b K) int) func(a, b K) bool {
	return func(a, b K) bool {
		return cmp(a, b) == 0
	}
}

// StringHasher returns a hash function for string keys.
func StringHasher() func(string) uint64 {
	seed := maphash.MakeSeed()
	return func(s string) uint64 {
		return maphash.String(seed, s)
	}
}

// Options configures a Map.
type Options[K, V any] struct {
	// Reclaimer receives the keys, values and nodes of removed entries.
	Reclaimer *reclaim.Reclaimer
	// ReleaseKey and ReleaseValue are deferred through Reclaimer for
	// every removed or replaced entry.
	ReleaseKey   func(K)
	ReleaseValue func(V)
	// Lifecycle replaces the default node creation and destruction. When
	// it is set, the fields above are ignored.
	Lifecycle Lifecycle[K, V]
}

// Stats holds CAS failure counters, which are only meant for tests and
// for estimating contention.
type Stats struct {
	// PutRetries counts lost races inserting at a bucket head.
	PutRetries uint64
	// PutReplaceFail and PutHeadFail count lost races swapping a
	// replacement node in after a predecessor or at the bucket head.
	PutReplaceFail uint64
	PutHeadFail    uint64
	// DelFail and DelFailNewHead count lost races unlinking a node after
	// a predecessor or at the bucket head.
	DelFail        uint64
	DelFailNewHead uint64
	// MarkFail counts lost races claiming a node for removal.
	MarkFail uint64
	// Busy counts waits on a node another goroutine was removing.
	Busy uint64
	// DestroyErrors counts removed nodes the Lifecycle could not dispose of.
	DestroyErrors uint64
}

type counters struct {
	putRetries     atomic.Uint64
	putReplaceFail atomic.Uint64
	putHeadFail    atomic.Uint64
	delFail        atomic.Uint64
	delFailNewHead atomic.Uint64
	markFail       atomic.Uint64
	busy           atomic.Uint64
	destroyErrors  atomic.Uint64
}

// Map is a lock-free hash map.
type Map[K, V any] struct {
	buckets []atomic.Pointer[Node[K, V]]
	hash    func(K) uint64
	equal   func(a, b K) bool
	life    Lifecycle[K, V]

	_      cpu.CacheLinePad
	length atomic.Int64
	_      cpu.CacheLinePad
	stats  counters
}

// New creates a Map with numBuckets buckets. hash must be deterministic
// and equal(a, b) must imply hash(a) == hash(b).
func New[K, V any](numBuckets uint32, hash func(K) uint64,
	equal func(a, b K) bool) (*Map[K, V], error) {
	return NewWithOptions(numBuckets, hash, equal, Options[K, V]{})
}

// NewWithOptions creates a Map, see New.
func NewWithOptions[K, V any](numBuckets uint32, hash func(K) uint64,
	equal func(a, b K) bool, opts Options[K, V]) (*Map[K, V], error) {
	if numBuckets == 0 {
		return nil, fmt.Errorf("%w: zero buckets", ErrInvalidArgument)
	}
	if hash == nil || equal == nil {
		return nil, fmt.Errorf("%w: nil hash or equal function", ErrInvalidArgument)
	}
	life := opts.Lifecycle
	if life == nil {
		if opts.Reclaimer == nil && (opts.ReleaseKey != nil || opts.ReleaseValue != nil) {
			return nil, ErrNoReclaimer
		}
		life = &heapLifecycle[K, V]{deferred: deferred[K, V]{
			reclaimer:    opts.Reclaimer,
			releaseKey:   opts.ReleaseKey,
			releaseValue: opts.ReleaseValue,
		}}
	}
	return &Map[K, V]{
		buckets: make([]atomic.Pointer[Node[K, V]], numBuckets),
		hash:    hash,
		equal:   equal,
		life:    life,
	}, nil
}

func (m *Map[K, V]) bucket(key K) *atomic.Pointer[Node[K, V]] {
	return &m.buckets[m.hash(key)%uint64(len(m.buckets))]
}

// Len returns the number of entries. It is exact once no Put or Del is in
// flight.
func (m *Map[K, V]) Len() int {
	return int(m.length.Load())
}

// Buckets returns the number of buckets.
func (m *Map[K, V]) Buckets() int {
	return len(m.buckets)
}

// Get returns the value associated with key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	for n := m.bucket(key).Load(); n != nil; n = n.successor() {
		if m.equal(key, n.key) {
			return n.value, true
		}
	}
	var v V
	return v, false
}

// find scans the chain from head for key. busy is set when the node
// holding key is being removed by another goroutine.
func (m *Map[K, V]) find(head *Node[K, V], key K) (pred, match *Node[K, V], busy bool) {
	for n := head; n != nil; n = n.successor() {
		if m.equal(key, n.key) {
			return pred, n, n.marked()
		}
		pred = n
	}
	return nil, nil, false
}

// predecessor returns the node linking to n, or nil if n is the head.
func (m *Map[K, V]) predecessor(b *atomic.Pointer[Node[K, V]], n *Node[K, V]) *Node[K, V] {
	var pred *Node[K, V]
	for cur := b.Load(); cur != nil && cur != n; cur = cur.successor() {
		pred = cur
	}
	return pred
}

// unlink takes match out of the chain of bucket b, putting repl in its
// place if it is not nil. It returns false if another goroutine claimed
// match first.
func (m *Map[K, V]) unlink(b *atomic.Pointer[Node[K, V]], pred, match, repl *Node[K, V],
	predFail, headFail *atomic.Uint64) bool {
	next := match.next.Load()
	if next != nil && next.marker {
		m.stats.markFail.Add(1)
		return false
	}
	// Claim match. From here on its next pointer never changes and only
	// this goroutine may unlink it.
	mark := &Node[K, V]{marker: true}
	mark.next.Store(next)
	if !match.next.CompareAndSwap(next, mark) {
		m.stats.markFail.Add(1)
		return false
	}
	target := next
	if repl != nil {
		repl.next.Store(next)
		target = repl
	}
	for {
		if pred == nil {
			if b.CompareAndSwap(match, target) {
				return true
			}
			headFail.Add(1)
		} else {
			if pred.next.CompareAndSwap(match, target) {
				return true
			}
			predFail.Add(1)
		}
		// the predecessor changed or is being removed itself
		runtime.Gosched()
		pred = m.predecessor(b, match)
	}
}

// Put associates value with key. It returns true if it replaced an
// existing entry and false if it inserted a new one. An error is only
// returned when the Lifecycle fails to create a node, in which case the
// map is unchanged.
func (m *Map[K, V]) Put(key K, value V) (bool, error) {
	b := m.bucket(key)
	var n *Node[K, V]
	for {
		head := b.Load()
		pred, match, busy := m.find(head, key)
		if busy {
			m.stats.busy.Add(1)
			runtime.Gosched()
			continue
		}
		if n == nil {
			var err error
			if n, err = m.life.Create(key, value); err != nil {
				return false, err
			}
		}
		if match != nil {
			// replace in place so the chain order stays the same
			if m.unlink(b, pred, match, n, &m.stats.putReplaceFail, &m.stats.putHeadFail) {
				m.destroy(match)
				return true, nil
			}
			continue
		}
		n.next.Store(head)
		if b.CompareAndSwap(head, n) {
			m.length.Add(1)
			return false, nil
		}
		m.stats.putRetries.Add(1)
	}
}

// Del removes key and reports whether it was present. When several
// goroutines delete the same key concurrently, exactly one gets true.
func (m *Map[K, V]) Del(key K) bool {
	b := m.bucket(key)
	for {
		pred, match, busy := m.find(b.Load(), key)
		if busy {
			m.stats.busy.Add(1)
			runtime.Gosched()
			continue
		}
		if match == nil {
			return false
		}
		if m.unlink(b, pred, match, nil, &m.stats.delFail, &m.stats.delFailNewHead) {
			m.length.Add(-1)
			m.destroy(match)
			return true
		}
	}
}

func (m *Map[K, V]) destroy(n *Node[K, V]) {
	if err := m.life.Destroy(n); err != nil {
		m.stats.destroyErrors.Add(1)
	}
}

// Stats returns the map's counters.
func (m *Map[K, V]) Stats() Stats {
	return Stats{
		PutRetries:     m.stats.putRetries.Load(),
		PutReplaceFail: m.stats.putReplaceFail.Load(),
		PutHeadFail:    m.stats.putHeadFail.Load(),
		DelFail:        m.stats.delFail.Load(),
		DelFailNewHead: m.stats.delFailNewHead.Load(),
		MarkFail:       m.stats.markFail.Load(),
		Busy:           m.stats.busy.Load(),
		DestroyErrors:  m.stats.destroyErrors.Load(),
	}
}
