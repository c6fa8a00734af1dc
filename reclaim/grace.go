// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package reclaim

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

type graceSlot struct {
	seen    atomic.Uint64
	offline atomic.Bool
	_       cpu.CacheLinePad
}

// Grace tracks grace periods for a fixed set of participants.
//
// A participant calls Quiesce between units of work, at a point where it
// holds no reference into any shared structure. A participant that goes
// idle for a while calls Offline so it does not hold up reclamation, and
// Online before it touches shared structures again.
//
// Participant ids are in [0, participants); other ids panic.
type Grace struct {
	gen   atomic.Uint64
	_     cpu.CacheLinePad
	slots []graceSlot
}

// NewGrace creates a tracker for the given number of participants.
func NewGrace(participants int) (*Grace, error) {
	if participants <= 0 {
		return nil, fmt.Errorf("%w: %d grace participants", ErrInvalidArgument, participants)
	}
	return &Grace{slots: make([]graceSlot, participants)}, nil
}

// Participants returns the number of participants.
func (g *Grace) Participants() int {
	return len(g.slots)
}

// Quiesce declares that participant id holds no reference it obtained
// before this call.
func (g *Grace) Quiesce(id int) {
	g.slots[id].seen.Store(g.gen.Load())
}

// Offline takes participant id out of grace period accounting.
func (g *Grace) Offline(id int) {
	g.slots[id].offline.Store(true)
}

// Online puts participant id back into grace period accounting.
func (g *Grace) Online(id int) {
	g.slots[id].seen.Store(g.gen.Load())
	g.slots[id].offline.Store(false)
}

// Begin starts a grace period and returns its generation. References
// obtained before Begin are gone once Elapsed returns true for it.
func (g *Grace) Begin() uint64 {
	return g.gen.Add(1)
}

// Elapsed reports whether every online participant quiesced since the
// grace period gen began.
func (g *Grace) Elapsed(gen uint64) bool {
	for i := range g.slots {
		s := &g.slots[i]
		if !s.offline.Load() && s.seen.Load() < gen {
			return false
		}
	}
	return true
}
