// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// Package epoch implements a cooperative check-in barrier.
//
// A fixed number of participants, each identified by an integer in
// [0, participants), check in after finishing a unit of work. A shared
// counter starts at 0 and only advances when the participant whose id
// equals the counter checks in. Once every participant has advanced it, a
// round is complete: no participant can still be in the middle of work it
// started before the round began, and the one participant that completed
// the round is told so it can reclaim memory retired before it.
//
// Check-ins are strictly round-robin. A participant that checks in out of
// turn is ignored, and a participant that stops checking in stalls every
// later round.
package epoch

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrInvalidParticipants is returned for a barrier with no participants.
var ErrInvalidParticipants = errors.New("epoch: participant count must be positive")

// Barrier is a rotating check-in counter.
type Barrier struct {
	participants uint32
	next         atomic.Uint32
	generation   atomic.Uint64
}

// NewBarrier creates a barrier for the given number of participants.
func NewBarrier(participants int) (*Barrier, error) {
	if participants <= 0 || participants > 1<<16 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidParticipants, participants)
	}
	return &Barrier{participants: uint32(participants)}, nil
}

// Participants returns the participant count.
func (b *Barrier) Participants() int {
	return int(b.participants)
}

// Valid reports whether id names a participant.
func (b *Barrier) Valid(id int) bool {
	return id >= 0 && id < int(b.participants)
}

// CheckIn records that participant id finished a unit of work. It returns
// true to exactly one caller per round: the one whose check-in completed it.
func (b *Barrier) CheckIn(id int) bool {
	if !b.Valid(id) {
		return false
	}
	cur := uint32(id)
	if b.next.Load() != cur {
		return false
	}
	if cur+1 < b.participants {
		b.next.CompareAndSwap(cur, cur+1)
		return false
	}
	// last participant, start the next round
	if !b.next.CompareAndSwap(cur, 0) {
		return false
	}
	b.generation.Add(1)
	return true
}

// Next returns the id of the participant the barrier is waiting on.
func (b *Barrier) Next() int {
	return int(b.next.Load())
}

// Generation returns how many rounds have completed.
func (b *Barrier) Generation() uint64 {
	return b.generation.Load()
}
