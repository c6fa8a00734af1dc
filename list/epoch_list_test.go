// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package list

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aristanetworks/lockfree/epoch"
	"github.com/aristanetworks/lockfree/test"
)

func epochValues[T any](l *EpochList[T]) []T {
	var vals []T
	l.Range(func(v T) bool {
		vals = append(vals, v)
		return true
	})
	return vals
}

func TestNewEpochInvalid(t *testing.T) {
	if _, err := NewEpoch[int](0); !errors.Is(err, epoch.ErrInvalidParticipants) {
		t.Errorf("expected ErrInvalidParticipants, got %v", err)
	}
	if _, err := NewEpochFunc[int](1, nil); err == nil {
		t.Error("expected an error for a nil equal function")
	}
}

func TestEpochListInvalidThread(t *testing.T) {
	l, err := NewEpoch[int](2)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []int{2, -3, 100} {
		if err := l.Add(id, 1); !errors.Is(err, ErrInvalidThread) {
			t.Errorf("Add(%d): got %v, expected ErrInvalidThread", id, err)
		}
		if _, err := l.Del(id, 1); !errors.Is(err, ErrInvalidThread) {
			t.Errorf("Del(%d): got %v, expected ErrInvalidThread", id, err)
		}
	}
	if l.Len() != 0 {
		t.Errorf("rejected calls changed the list, Len=%d", l.Len())
	}
}

func TestEpochListAddDel(t *testing.T) {
	l, err := NewEpoch[string](1)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []string{"a", "b", "c", "b", "d"} {
		if err := l.Add(0, v); err != nil {
			t.Fatal(err)
		}
	}
	tests := []struct {
		del   string
		found bool
		want  []string
	}{
		{del: "x", found: false, want: []string{"a", "b", "c", "b", "d"}},
		{del: "b", found: true, want: []string{"a", "c", "b", "d"}}, // first match only
		{del: "d", found: true, want: []string{"a", "c", "b"}},      // tail
		{del: "a", found: true, want: []string{"c", "b"}},           // head
		{del: "d", found: false, want: []string{"c", "b"}},          // already gone
		{del: "b", found: true, want: []string{"c"}},                // tail again
		{del: "c", found: true, want: nil},                          // last one
		{del: "c", found: false, want: nil},
	}
	for i, tcase := range tests {
		found, err := l.Del(0, tcase.del)
		if err != nil {
			t.Fatal(err)
		}
		if found != tcase.found {
			t.Errorf("step %d: Del(%q) = %t, expected %t", i, tcase.del, found, tcase.found)
		}
		if d := test.Diff(tcase.want, epochValues(l)); d != "" {
			t.Errorf("step %d: unexpected values after Del(%q): %s", i, tcase.del, d)
		}
		if l.Len() != len(tcase.want) {
			t.Errorf("step %d: Len is %d, expected %d", i, l.Len(), len(tcase.want))
		}
	}
	// appending after the list emptied out through tail deletes
	if err := l.Add(0, "e"); err != nil {
		t.Fatal(err)
	}
	if d := test.Diff([]string{"e"}, epochValues(l)); d != "" {
		t.Errorf("unexpected values: %s", d)
	}
}

func TestEpochListReleaseAfterTwoRounds(t *testing.T) {
	var released []string
	l, err := NewEpoch(2, WithRelease(func(v string) {
		released = append(released, v)
	}))
	if err != nil {
		t.Fatal(err)
	}
	mustAdd := func(id int, v string) {
		t.Helper()
		if err := l.Add(id, v); err != nil {
			t.Fatal(err)
		}
	}
	mustDel := func(id int, v string) {
		t.Helper()
		if _, err := l.Del(id, v); err != nil {
			t.Fatal(err)
		}
	}

	mustAdd(0, "a")
	mustAdd(1, "b") // round 1
	mustDel(0, "a")
	if s := l.Stats(); s.Pending != 1 || s.Generation != 1 {
		t.Fatalf("unexpected stats after delete: %+v", s)
	}
	mustDel(1, "zzz") // round 2: "a" promoted, not released
	if released != nil {
		t.Fatalf("released %v one round after the delete", released)
	}
	mustAdd(0, "c")
	if released != nil {
		t.Fatalf("released %v before the round completed", released)
	}
	mustAdd(1, "d") // round 3
	if d := test.Diff([]string{"a"}, released); d != "" {
		t.Fatalf("unexpected releases: %s", d)
	}
	if d := test.Diff(EpochStats{Released: 1, Generation: 3}, l.Stats()); d != "" {
		t.Errorf("unexpected stats: %s", d)
	}
}

func TestEpochListOutOfTurnStalls(t *testing.T) {
	released := 0
	l, err := NewEpoch(2, WithRelease(func(string) { released++ }))
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Add(1, "a"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		// participant 0 never checks in, so no round ever completes
		if _, err := l.Del(1, "a"); err != nil {
			t.Fatal(err)
		}
		if err := l.Add(1, "a"); err != nil {
			t.Fatal(err)
		}
	}
	if s := l.Stats(); s.Generation != 0 || s.Pending != 10 || released != 0 {
		t.Errorf("expected a stalled barrier, got %+v, released=%d", s, released)
	}
	l.Flush()
	if released != 10 {
		t.Errorf("Flush released %d values, expected 10", released)
	}
}

func TestEpochListSpecialThreads(t *testing.T) {
	var released []int
	l, err := NewEpoch(4, WithRelease(func(v int) { released = append(released, v) }))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := l.Add(NoopThread, i); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := l.Del(NoopThread, 0); err != nil {
		t.Fatal(err)
	}
	if released != nil || l.Stats().Pending != 1 {
		t.Fatalf("NoopThread released values: %v", released)
	}
	if _, err := l.Del(OnlyThread, 1); err != nil {
		t.Fatal(err)
	}
	if d := test.Diff([]int{0, 1}, released); d != "" {
		t.Errorf("OnlyThread should release everything pending: %s", d)
	}
	if l.Stats().Generation != 0 {
		t.Error("special ids must not check in with the barrier")
	}
}

func TestEpochListConcurrent(t *testing.T) {
	const (
		goroutines = 8
		work       = 200
	)
	var (
		mu       sync.Mutex
		released = map[string]int{}
	)
	l, err := NewEpoch(goroutines, WithRelease(func(v string) {
		mu.Lock()
		released[v]++
		mu.Unlock()
	}))
	if err != nil {
		t.Fatal(err)
	}
	test.Parallel(t, goroutines, func(id int) error {
		for i := 0; i < work; i++ {
			if err := l.Add(id, fmt.Sprintf("%d-%d", id, i)); err != nil {
				return err
			}
			// delete every other value, including ones that are
			// likely the tail of the list
			if i%2 == 1 {
				v := fmt.Sprintf("%d-%d", id, i-1)
				if i%4 == 3 {
					v = fmt.Sprintf("%d-%d", id, i)
				}
				found, err := l.Del(id, v)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("goroutine %d: %s not found", id, v)
				}
			}
		}
		return nil
	})

	var want []string
	for id := 0; id < goroutines; id++ {
		for i := 0; i < work; i++ {
			deleted := (i%4 == 0) || (i%4 == 3)
			if !deleted {
				want = append(want, fmt.Sprintf("%d-%d", id, i))
			}
		}
	}
	got := epochValues(l)
	sort.Strings(want)
	sort.Strings(got)
	if d := test.Diff(want, got); d != "" {
		t.Fatalf("unexpected list contents: %s", d)
	}
	if l.Len() != len(want) {
		t.Errorf("Len is %d, expected %d", l.Len(), len(want))
	}

	l.Flush()
	deleted := goroutines * work / 2
	if len(released) != deleted {
		t.Errorf("released %d distinct values, expected %d", len(released), deleted)
	}
	for v, n := range released {
		if n != 1 {
			t.Errorf("%s released %d times", v, n)
		}
		if !strings.Contains(v, "-") {
			t.Errorf("unexpected released value %q", v)
		}
	}
	if s := l.Stats(); s.Pending != 0 || s.Released != uint64(deleted) {
		t.Errorf("unexpected stats after Flush: %+v", s)
	}
}

func BenchmarkEpochListAdd(b *testing.B) {
	l, err := NewEpoch[int](1)
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < b.N; i++ {
		if err := l.Add(0, i); err != nil {
			b.Fatal(err)
		}
	}
}
