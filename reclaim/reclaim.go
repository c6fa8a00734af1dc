// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package reclaim defers releasing objects until no goroutine can still
// be using them.
//
// Lock-free structures cannot release what they remove right away: other
// goroutines may be in the middle of reading it. Instead they register
// the object and a release function with a Reclaimer. The application
// then drives reclamation in two phases:
//
//	r.Stage() // before a round of work: seal everything registered so far
//	...       // every worker makes progress past its old references
//	r.Run()   // release everything that was sealed
//
// Stage and Run do not check that workers did make progress; Grace and
// Driver can be used for that.
package reclaim

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/aristanetworks/lockfree/list"
	"github.com/aristanetworks/lockfree/logger"
	"github.com/aristanetworks/lockfree/sync/spinlock"
	"golang.org/x/sys/cpu"
)

var (
	// ErrInvalidArgument is returned when registering a nil release function.
	ErrInvalidArgument = errors.New("reclaim: invalid argument")
	// ErrClosed is returned by Register after Term.
	ErrClosed = errors.New("reclaim: terminated")
)

type entry struct {
	obj     any
	release func(any)
}

// buffer collects registrations until it is sealed by Stage.
type buffer struct {
	entries list.List[entry]
	// registrations that loaded this buffer as the active one and have
	// not finished adding to it yet
	inflight atomic.Int64
	sealed   atomic.Bool
}

// Stats holds the Reclaimer counters.
type Stats struct {
	Registered uint64
	Released   uint64
	// Pending is the number of registered objects not yet released.
	Pending uint64
	Stages  uint64
	Runs    uint64
}

// Option configures a Reclaimer.
type Option func(*Reclaimer)

// WithLogger sets the logger used by Term.
func WithLogger(l logger.Logger) Option {
	return func(r *Reclaimer) {
		r.log = l
	}
}

// Reclaimer is a two-buffer deferred release service.
type Reclaimer struct {
	active atomic.Pointer[buffer]
	_      cpu.CacheLinePad

	// guards staged, and makes Stage and Run mutually exclusive
	lock   spinlock.Lock
	staged *buffer

	closed atomic.Bool
	log    logger.Logger

	registered atomic.Uint64
	released   atomic.Uint64
	stages     atomic.Uint64
	runs       atomic.Uint64
}

// New creates a Reclaimer ready for use.
func New(opts ...Option) *Reclaimer {
	r := &Reclaimer{log: logger.Discard}
	r.active.Store(&buffer{})
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register arranges for release(obj) to be called by a later Run, once
// the buffer obj lands in has been staged. obj may be nil.
func (r *Reclaimer) Register(obj any, release func(any)) error {
	if release == nil {
		return fmt.Errorf("%w: nil release function", ErrInvalidArgument)
	}
	if r.closed.Load() {
		return ErrClosed
	}
	e := entry{obj: obj, release: release}
	for {
		b := r.active.Load()
		b.inflight.Add(1)
		if b.sealed.Load() {
			// Stage swapped it out under us, use the new one
			b.inflight.Add(-1)
			continue
		}
		b.entries.Add(e)
		b.inflight.Add(-1)
		r.registered.Add(1)
		return nil
	}
}

// Defer registers obj with a typed release function.
func Defer[T any](r *Reclaimer, obj T, release func(T)) error {
	if release == nil {
		return fmt.Errorf("%w: nil release function", ErrInvalidArgument)
	}
	return r.Register(obj, func(any) {
		release(obj)
	})
}

// Closed reports whether Term was called.
func (r *Reclaimer) Closed() bool {
	return r.closed.Load()
}

// Stage seals the active buffer and starts a new one. If the previously
// staged buffer has not been drained by Run yet, Stage does nothing and
// returns false: staged work is never discarded.
func (r *Reclaimer) Stage() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.staged != nil && (r.staged.entries.Len() > 0 || r.staged.inflight.Load() != 0) {
		return false
	}
	old := r.active.Swap(&buffer{})
	old.sealed.Store(true)
	r.staged = old
	r.stages.Add(1)
	return true
}

// Run releases every object of the staged buffer, in registration
// order, and returns how many it released.
func (r *Reclaimer) Run() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	b := r.staged
	if b == nil {
		return 0
	}
	// let registrations that raced with Stage finish
	for b.inflight.Load() != 0 {
		runtime.Gosched()
	}
	entries := b.entries.Detach()
	for _, e := range entries {
		e.release(e.obj)
	}
	r.staged = nil
	r.released.Add(uint64(len(entries)))
	r.runs.Add(1)
	return len(entries)
}

// Term releases everything still registered. Register fails once Term
// started; registrations must not race with Term. Calling Term again is a
// no-op.
func (r *Reclaimer) Term() error {
	if r.closed.Swap(true) {
		return nil
	}
	// drain what is staged, then stage and drain the rest
	n := r.Run()
	r.Stage()
	n += r.Run()
	r.log.Infof("reclaim: terminated, released %d objects at shutdown", n)
	if p := r.Stats().Pending; p != 0 {
		return fmt.Errorf("reclaim: %d objects left unreleased", p)
	}
	return nil
}

// Stats returns the Reclaimer counters.
func (r *Reclaimer) Stats() Stats {
	s := Stats{
		Registered: r.registered.Load(),
		Released:   r.released.Load(),
		Stages:     r.stages.Load(),
		Runs:       r.runs.Load(),
	}
	if s.Registered > s.Released {
		s.Pending = s.Registered - s.Released
	}
	return s
}
