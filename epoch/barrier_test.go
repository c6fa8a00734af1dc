// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package epoch

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/aristanetworks/lockfree/test"
)

func TestNewBarrier(t *testing.T) {
	for _, n := range []int{0, -1, 1<<16 + 1} {
		if _, err := NewBarrier(n); !errors.Is(err, ErrInvalidParticipants) {
			t.Errorf("NewBarrier(%d): got %v", n, err)
		}
	}
	b, err := NewBarrier(4)
	if err != nil {
		t.Fatal(err)
	}
	if b.Participants() != 4 || b.Next() != 0 || b.Generation() != 0 {
		t.Errorf("unexpected initial state: participants=%d next=%d generation=%d",
			b.Participants(), b.Next(), b.Generation())
	}
}

func TestCheckInRound(t *testing.T) {
	b, err := NewBarrier(3)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		id         int
		done       bool
		next       int
		generation uint64
	}{
		{id: 1, next: 0},                   // out of turn
		{id: 0, next: 1},                   // advances
		{id: 0, next: 1},                   // already checked in
		{id: 5, next: 1},                   // not a participant
		{id: -1, next: 1},                  // not a participant
		{id: 1, next: 2},                   // advances
		{id: 2, done: true, generation: 1}, // completes the round
		{id: 2, generation: 1},             // new round waits on 0
		{id: 0, next: 1, generation: 1},
	}
	for i, tcase := range tests {
		if done := b.CheckIn(tcase.id); done != tcase.done {
			t.Errorf("step %d: CheckIn(%d) = %t, expected %t", i, tcase.id, done, tcase.done)
		}
		if b.Next() != tcase.next {
			t.Errorf("step %d: next is %d, expected %d", i, b.Next(), tcase.next)
		}
		if b.Generation() != tcase.generation {
			t.Errorf("step %d: generation is %d, expected %d", i, b.Generation(), tcase.generation)
		}
	}
}

func TestSingleParticipant(t *testing.T) {
	b, err := NewBarrier(1)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		if !b.CheckIn(0) {
			t.Fatalf("check-in %d did not complete a round", i)
		}
	}
	if b.Generation() != 3 {
		t.Errorf("generation is %d, expected 3", b.Generation())
	}
}

func TestConcurrentCheckIn(t *testing.T) {
	const participants = 8
	b, err := NewBarrier(participants)
	if err != nil {
		t.Fatal(err)
	}
	var completed atomic.Uint64
	test.Parallel(t, participants, func(id int) error {
		for round := uint64(0); round < 50; {
			if b.CheckIn(id) {
				completed.Add(1)
			}
			// wait until this participant's check-in for the round landed
			if b.Generation() > round || (b.Next() > id && b.Generation() == round) {
				round++
			}
		}
		return nil
	})
	if completed.Load() != b.Generation() {
		t.Errorf("%d callers completed a round but generation is %d",
			completed.Load(), b.Generation())
	}
}
