// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package main

import (
	"context"
	"testing"
	"time"

	"github.com/aristanetworks/lockfree/logger"
	"github.com/aristanetworks/lockfree/monitor"
)

func TestStressRun(t *testing.T) {
	config := &Config{
		Workers:         4,
		Ops:             2000,
		Seed:            3,
		ReclaimInterval: time.Millisecond,
		Map: &MapWorkload{
			Buckets: 8, Keys: 64, Get: 2, Put: 2, Del: 1,
			Slab: &SlabConfig{ChunkLen: 128, Lookback: 2},
		},
		List: &ListWorkload{Values: 16},
		Pool: &PoolWorkload{ChunkSize: 256, Lookback: 2, MaxAlloc: 24, Limit: 1 << 16},
	}
	if err := config.validate(); err != nil {
		t.Fatal(err)
	}
	coll := monitor.NewCollector()
	s := &stress{config: config, log: logger.Discard, coll: coll}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	results, err := s.run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %v", results)
	}
	for _, r := range results {
		if r.ops != 8000 {
			t.Errorf("%s: %d ops", r.name, r.ops)
		}
		t.Log(r)
	}
	snap := coll.Snapshot()
	if len(snap["pools"].(map[string]interface{})) != 2 {
		t.Errorf("expected the map slab and the pool to be exported: %v", snap["pools"])
	}
}

func TestStressCancelled(t *testing.T) {
	config := defaultConfig()
	s := &stress{config: config, log: logger.Discard, coll: monitor.NewCollector()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.run(ctx); err == nil {
		t.Fatal("expected the cancelled context to stop the workload")
	}
}
