// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristanetworks/lockfree/hashmap"
	"github.com/aristanetworks/lockfree/list"
	"github.com/aristanetworks/lockfree/logger"
	"github.com/aristanetworks/lockfree/mempool"
	"github.com/aristanetworks/lockfree/monitor"
	"github.com/aristanetworks/lockfree/reclaim"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
)

// How many operations a map worker performs between quiescent states.
const quiesceEvery = 64

type stress struct {
	config *Config
	log    logger.Logger
	coll   *monitor.Collector
}

// result summarizes one workload.
type result struct {
	name     string
	ops      int
	elapsed  time.Duration
	residual int
}

func (r result) String() string {
	rate := float64(r.ops) / r.elapsed.Seconds()
	return fmt.Sprintf("%s: %d ops in %v (%.0f ops/s), %d entries left",
		r.name, r.ops, r.elapsed, rate, r.residual)
}

func (s *stress) run(ctx context.Context) ([]result, error) {
	var results []result
	if s.config.Map != nil {
		r, err := s.runMap(ctx, s.config.Map)
		if err != nil {
			return nil, fmt.Errorf("map workload: %w", err)
		}
		results = append(results, r)
	}
	if s.config.List != nil {
		r, err := s.runList(ctx, s.config.List)
		if err != nil {
			return nil, fmt.Errorf("list workload: %w", err)
		}
		results = append(results, r)
	}
	if s.config.Pool != nil {
		r, err := s.runPool(ctx, s.config.Pool)
		if err != nil {
			return nil, fmt.Errorf("pool workload: %w", err)
		}
		results = append(results, r)
	}
	return results, nil
}

func (s *stress) rng(id int) *rand.Rand {
	return rand.New(rand.NewSource(s.config.Seed + uint64(id)))
}

func (s *stress) newMap(w *MapWorkload, r *reclaim.Reclaimer) (*hashmap.Map[int, int], error) {
	hash := func(k int) uint64 { return uint64(k) * 0x9e3779b97f4a7c15 }
	equal := func(a, b int) bool { return a == b }
	opts := hashmap.Options[int, int]{Reclaimer: r}
	if w.Slab != nil {
		var poolOpts []mempool.Option
		if w.Slab.Limit > 0 {
			poolOpts = append(poolOpts, mempool.WithLimit(w.Slab.Limit))
		}
		slab, err := mempool.NewSlab[hashmap.Node[int, int]](w.Slab.ChunkLen,
			w.Slab.Lookback, poolOpts...)
		if err != nil {
			return nil, err
		}
		if err := s.coll.AddPool("map-slab", slab); err != nil {
			return nil, err
		}
		if opts.Lifecycle, err = hashmap.NewSlabLifecycle[int, int](slab, r, nil, nil); err != nil {
			return nil, err
		}
	}
	return hashmap.NewWithOptions(w.Buckets, hash, equal, opts)
}

func (s *stress) runMap(ctx context.Context, w *MapWorkload) (result, error) {
	workers := s.config.Workers
	r := reclaim.New(reclaim.WithLogger(s.log))
	grace, err := reclaim.NewGrace(workers)
	if err != nil {
		return result{}, err
	}
	m, err := s.newMap(w, r)
	if err != nil {
		return result{}, err
	}
	if err := s.coll.AddMap("map", m); err != nil {
		return result{}, err
	}
	if err := s.coll.AddReclaimer("map", r); err != nil {
		return result{}, err
	}

	driverCtx, stopDriver := context.WithCancel(ctx)
	defer stopDriver()
	driver := reclaim.NewDriver(r, grace, s.config.ReclaimInterval, s.log)
	driverDone := make(chan error, 1)
	go func() { driverDone <- driver.Run(driverCtx) }()

	start := time.Now()
	g, gCtx := errgroup.WithContext(ctx)
	for id := 0; id < workers; id++ {
		id := id
		g.Go(func() error {
			defer grace.Offline(id)
			rng := s.rng(id)
			total := w.Get + w.Put + w.Del
			for i := 0; i < s.config.Ops; i++ {
				if i%quiesceEvery == 0 {
					if err := gCtx.Err(); err != nil {
						return err
					}
					grace.Quiesce(id)
				}
				k := rng.Intn(w.Keys)
				switch op := rng.Intn(total); {
				case op < w.Get:
					m.Get(k)
				case op < w.Get+w.Put:
					if _, err := m.Put(k, i); err != nil {
						return err
					}
				default:
					m.Del(k)
				}
			}
			return nil
		})
	}
	err = g.Wait()
	elapsed := time.Since(start)
	stopDriver()
	if derr := <-driverDone; !errors.Is(derr, context.Canceled) {
		s.log.Errorf("reclaim driver stopped: %v", derr)
	}
	if termErr := r.Term(); termErr != nil && err == nil {
		err = termErr
	}
	if err != nil {
		return result{}, err
	}
	s.log.Infof("map stats: %+v", m.Stats())
	return result{name: "map", ops: workers * s.config.Ops, elapsed: elapsed,
		residual: m.Len()}, nil
}

func (s *stress) runList(ctx context.Context, w *ListWorkload) (result, error) {
	workers := s.config.Workers
	l, err := list.NewEpoch[int](workers)
	if err != nil {
		return result{}, err
	}
	if err := s.coll.AddList("list", l); err != nil {
		return result{}, err
	}
	start := time.Now()
	g, gCtx := errgroup.WithContext(ctx)
	for id := 0; id < workers; id++ {
		id := id
		g.Go(func() error {
			rng := s.rng(id)
			for i := 0; i < s.config.Ops; i++ {
				if err := gCtx.Err(); err != nil {
					return err
				}
				// values are disjoint across workers
				v := rng.Intn(w.Values)*workers + id
				if rng.Intn(2) == 0 {
					if err := l.Add(id, v); err != nil {
						return err
					}
				} else if _, err := l.Del(id, v); err != nil {
					return err
				}
			}
			return nil
		})
	}
	err = g.Wait()
	elapsed := time.Since(start)
	l.Flush()
	if err != nil {
		return result{}, err
	}
	s.log.Infof("list stats: %+v", l.Stats())
	return result{name: "list", ops: workers * s.config.Ops, elapsed: elapsed,
		residual: l.Len()}, nil
}

func (s *stress) runPool(ctx context.Context, w *PoolWorkload) (result, error) {
	workers := s.config.Workers
	var opts []mempool.Option
	if w.Limit > 0 {
		opts = append(opts, mempool.WithLimit(w.Limit))
	}
	p, err := mempool.New(w.ChunkSize, w.Lookback, opts...)
	if err != nil {
		return result{}, err
	}
	if err := s.coll.AddPool("pool", p); err != nil {
		return result{}, err
	}
	start := time.Now()
	g, gCtx := errgroup.WithContext(ctx)
	for id := 0; id < workers; id++ {
		id := id
		g.Go(func() error {
			rng := s.rng(id)
			var bufs [][]byte
			for i := 0; i < s.config.Ops; i++ {
				if err := gCtx.Err(); err != nil {
					return err
				}
				buf, err := p.Alloc(1 + rng.Intn(w.MaxAlloc))
				if errors.Is(err, mempool.ErrExhausted) {
					break
				} else if err != nil {
					return err
				}
				for j := range buf {
					buf[j] = byte(id)
				}
				bufs = append(bufs, buf)
			}
			// another worker writing into our ranges would show here
			for _, buf := range bufs {
				if !p.Contains(buf) {
					return errors.New("allocation outside of the pool")
				}
				for _, b := range buf {
					if b != byte(id) {
						return fmt.Errorf("worker %d found byte %d in its allocation", id, b)
					}
				}
			}
			return nil
		})
	}
	err = g.Wait()
	elapsed := time.Since(start)
	if err != nil {
		return result{}, err
	}
	stats := p.Stats()
	s.log.Infof("pool stats: %+v", stats)
	p.Free()
	return result{name: "pool", ops: workers * s.config.Ops, elapsed: elapsed,
		residual: int(stats.Chunks)}, nil
}
