// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package list

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/aristanetworks/lockfree/epoch"
)

// Special thread ids accepted by EpochList in place of a participant id.
const (
	// OnlyThread is for lists used by a single goroutine. Deleted nodes
	// are released right away.
	OnlyThread = -1
	// NoopThread performs the operation without checking in.
	NoopThread = -2
)

// ErrInvalidThread is returned for a thread id outside [0, maxThreads)
// that is not one of the special ids.
var ErrInvalidThread = errors.New("list: invalid thread id")

// EpochStats describes an EpochList.
type EpochStats struct {
	Retries    uint64
	Pending    int
	Released   uint64
	Generation uint64
}

// EpochOption configures an EpochList.
type EpochOption[T any] func(*EpochList[T])

// WithRelease sets a function called on each deleted value once no
// goroutine can still be looking at it.
func WithRelease[T any](fn func(T)) EpochOption[T] {
	return func(l *EpochList[T]) {
		l.releaseFn = fn
	}
}

// EpochList is a list that appends at the tail and supports deletion.
//
// Every Add and Del is made on behalf of a participant id and checks in
// with an epoch.Barrier afterwards. Deleted nodes are parked on an
// "eventually" list. When a round of the barrier completes, the nodes that
// were parked before the previous round completed are released and the
// "eventually" list is promoted to take their place, so a node is released
// only after every participant finished at least one whole operation
// since it was unlinked. Releasing at the end of the round that parked a
// node would be too early: a participant that checked in before the node
// was unlinked may have started its next operation and still hold it.
//
// A node being deleted gets a marker node linked behind it first. A marker
// freezes the node's next pointer, so nothing can be appended to it and a
// concurrent delete of its successor cannot be lost. The marker of a tail
// node points back to the predecessor, which is where appenders retry.
//
// An EpochList must not be copied after first use.
type EpochList[T any] struct {
	root node[T]
	last atomic.Pointer[node[T]]

	equal     func(a, b T) bool
	releaseFn func(T)
	barrier   *epoch.Barrier

	// deleted nodes, by age
	eventually List[*node[T]]
	now        List[*node[T]]

	len      atomic.Int64
	retries  atomic.Uint64
	released atomic.Uint64
}

// NewEpoch creates an EpochList comparing values with ==.
func NewEpoch[T comparable](maxThreads int, opts ...EpochOption[T]) (*EpochList[T], error) {
	return NewEpochFunc(maxThreads, func(a, b T) bool { return a == b }, opts...)
}

// NewEpochFunc creates an EpochList comparing values with equal.
func NewEpochFunc[T any](maxThreads int, equal func(a, b T) bool,
	opts ...EpochOption[T]) (*EpochList[T], error) {
	if equal == nil {
		return nil, errors.New("list: nil equal function")
	}
	b, err := epoch.NewBarrier(maxThreads)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	l := &EpochList[T]{equal: equal, barrier: b}
	l.last.Store(&l.root)
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *EpochList[T]) checkID(id int) error {
	if id == OnlyThread || id == NoopThread || l.barrier.Valid(id) {
		return nil
	}
	return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidThread, id, l.barrier.Participants())
}

func marked[T any](n *node[T]) bool {
	nx := n.next.Load()
	return nx != nil && nx.marker
}

// succ returns the node after n, seeing through a marker. If n is a tail
// being deleted, next is nil and back is the predecessor it points at.
func succ[T any](n *node[T]) (next, back *node[T]) {
	nx := n.next.Load()
	if nx == nil || !nx.marker {
		return nx, nil
	}
	if nx.back {
		return nil, nx.next.Load()
	}
	return nx.next.Load(), nil
}

// Add appends v to the list.
func (l *EpochList[T]) Add(id int, v T) error {
	if err := l.checkID(id); err != nil {
		return err
	}
	n := &node[T]{val: v}
	cur := l.last.Load()
	for {
		next, back := succ(cur)
		if back != nil {
			// cur is a tail being removed, extend its predecessor instead
			l.retries.Add(1)
			runtime.Gosched()
			if marked(back) {
				cur = &l.root
			} else {
				cur = back
			}
			continue
		}
		if next != nil {
			cur = next
			continue
		}
		if cur.next.CompareAndSwap(nil, n) {
			break
		}
		l.retries.Add(1)
	}
	l.last.Store(n)
	l.len.Add(1)
	l.checkIn(id)
	return nil
}

// Del unlinks the first value equal to v and reports whether there was
// one. It checks in whether or not a value was found.
func (l *EpochList[T]) Del(id int, v T) (bool, error) {
	if err := l.checkID(id); err != nil {
		return false, err
	}
	n := l.unlink(v)
	if n != nil {
		l.len.Add(-1)
		l.eventually.Add(n)
	}
	l.checkIn(id)
	return n != nil, nil
}

// find returns the first live node holding v and the node before it.
func (l *EpochList[T]) find(v T) (pred, match *node[T]) {
	pred = &l.root
	for {
		cur, back := succ(pred)
		if back != nil || cur == nil {
			return nil, nil
		}
		if !marked(cur) && l.equal(cur.val, v) {
			return pred, cur
		}
		pred = cur
	}
}

// findPred returns the node whose next pointer is n, if any.
func (l *EpochList[T]) findPred(n *node[T]) *node[T] {
	cur := &l.root
	for cur != nil {
		if cur.next.Load() == n {
			return cur
		}
		next, back := succ(cur)
		if back != nil {
			return nil
		}
		cur = next
	}
	return nil
}

func (l *EpochList[T]) unlink(v T) *node[T] {
	for {
		pred, match := l.find(v)
		if match == nil {
			return nil
		}
		next := match.next.Load()
		if next != nil && next.marker {
			// someone else is deleting it
			l.retries.Add(1)
			continue
		}
		mark := &node[T]{marker: true}
		if next == nil {
			mark.back = true
			mark.next.Store(pred)
		} else {
			mark.next.Store(next)
		}
		if !match.next.CompareAndSwap(next, mark) {
			l.retries.Add(1)
			continue
		}
		// match is ours, only this goroutine unlinks it
		for !pred.next.CompareAndSwap(match, next) {
			l.retries.Add(1)
			runtime.Gosched()
			if p := l.findPred(match); p != nil {
				pred = p
			}
		}
		return match
	}
}

func (l *EpochList[T]) checkIn(id int) {
	switch {
	case id == NoopThread:
	case id == OnlyThread:
		l.release(l.now.Detach())
		l.release(l.eventually.Detach())
	case l.barrier.CheckIn(id):
		l.release(l.now.Detach())
		for _, n := range l.eventually.Detach() {
			l.now.Add(n)
		}
	}
}

func (l *EpochList[T]) release(nodes []*node[T]) {
	for _, n := range nodes {
		if l.releaseFn != nil {
			l.releaseFn(n.val)
		}
	}
	l.released.Add(uint64(len(nodes)))
}

// Flush releases every deleted value that is still pending. It is meant
// for teardown, once no goroutine uses the list.
func (l *EpochList[T]) Flush() {
	l.release(l.now.Detach())
	l.release(l.eventually.Detach())
}

// Len returns the number of values in the list.
func (l *EpochList[T]) Len() int {
	if n := l.len.Load(); n > 0 {
		return int(n)
	}
	return 0
}

// Range calls fn on each value from head to tail until fn returns false.
func (l *EpochList[T]) Range(fn func(T) bool) {
	cur, back := succ(&l.root)
	for cur != nil && back == nil {
		if !marked(cur) && !fn(cur.val) {
			return
		}
		cur, back = succ(cur)
	}
}

// Stats returns the list counters.
func (l *EpochList[T]) Stats() EpochStats {
	return EpochStats{
		Retries:    l.retries.Load(),
		Pending:    l.eventually.Len() + l.now.Len(),
		Released:   l.released.Load(),
		Generation: l.barrier.Generation(),
	}
}
