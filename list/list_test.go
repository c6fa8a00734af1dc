// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package list

import (
	"testing"

	"github.com/aristanetworks/lockfree/test"
)

func values[T any](l *List[T]) []T {
	var vals []T
	l.Range(func(v T) bool {
		vals = append(vals, v)
		return true
	})
	return vals
}

func TestListAdd(t *testing.T) {
	var l List[string]
	if l.Len() != 0 || values(&l) != nil {
		t.Fatal("zero List is not empty")
	}
	for _, v := range []string{"a", "b", "c"} {
		l.Add(v)
	}
	if d := test.Diff([]string{"c", "b", "a"}, values(&l)); d != "" {
		t.Errorf("unexpected values: %s", d)
	}
	if l.Len() != 3 {
		t.Errorf("Len is %d, expected 3", l.Len())
	}
}

func TestListRangeStops(t *testing.T) {
	l := New[int]()
	for i := 0; i < 5; i++ {
		l.Add(i)
	}
	n := 0
	l.Range(func(int) bool {
		n++
		return n < 2
	})
	if n != 2 {
		t.Errorf("Range visited %d values after being told to stop at 2", n)
	}
}

func TestListDetach(t *testing.T) {
	l := New[int]()
	if vals := l.Detach(); vals != nil {
		t.Fatalf("Detach on an empty list returned %v", vals)
	}
	for i := 0; i < 4; i++ {
		l.Add(i)
	}
	if d := test.Diff([]int{0, 1, 2, 3}, l.Detach()); d != "" {
		t.Errorf("Detach is not oldest first: %s", d)
	}
	if l.Len() != 0 || values(l) != nil {
		t.Error("list not empty after Detach")
	}
	l.Add(9)
	if d := test.Diff([]int{9}, values(l)); d != "" {
		t.Errorf("list unusable after Detach: %s", d)
	}
}

func TestListConcurrentAdd(t *testing.T) {
	const (
		goroutines = 10
		work       = 10
	)
	l := New[int]()
	// retry until the CAS failure paths have been hit, like the
	// stress loop this is modelled on, but give up after a while
	for loop := 1; loop <= 200; loop++ {
		test.Parallel(t, goroutines, func(id int) error {
			for j := 0; j < work; j++ {
				l.Add(id*work + j)
			}
			return nil
		})
		checks := make([]int, goroutines*work)
		l.Range(func(v int) bool {
			checks[v]++
			return true
		})
		for v, n := range checks {
			if n != loop {
				t.Fatalf("loop %d: value %d is in the list %d times", loop, v, n)
			}
		}
		if s := l.Stats(); s.RetriesPopulated > 0 {
			break
		}
	}
}
