// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package spinlock provides a CAS-based busy-wait lock.
//
// It is meant for critical sections that are a handful of instructions
// long. It is still a user-space mutex, so it has no place inside the
// lock-free structures themselves.
package spinlock

import (
	"runtime"
	"sync/atomic"
)

// Lock is a spin lock. The zero value is unlocked.
type Lock struct {
	state atomic.Uint32
	spins atomic.Uint64
}

// Lock spins until the lock is acquired.
func (l *Lock) Lock() {
	for !l.state.CompareAndSwap(0, 1) {
		l.spins.Add(1)
		runtime.Gosched()
	}
}

// TryLock acquires the lock if it is free and reports whether it did.
func (l *Lock) TryLock() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Unlock releases the lock. Unlocking an unlocked Lock panics, like sync.Mutex.
func (l *Lock) Unlock() {
	if !l.state.CompareAndSwap(1, 0) {
		panic("spinlock: unlock of unlocked lock")
	}
}

// Spins returns how many times Lock found the lock held.
func (l *Lock) Spins() uint64 {
	return l.spins.Load()
}
