// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package test

import (
	"testing"

	"golang.org/x/sync/errgroup"
)

// Parallel runs fn in n goroutines, passing each its index in [0, n), and
// waits for all of them. The first non-nil error fails the test.
//
// All goroutines are released at the same time to maximise contention.
func Parallel(t testing.TB, n int, fn func(id int) error) {
	t.Helper()
	var (
		g     errgroup.Group
		start = make(chan struct{})
	)
	for i := 0; i < n; i++ {
		id := i
		g.Go(func() error {
			<-start
			return fn(id)
		})
	}
	close(start)
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
