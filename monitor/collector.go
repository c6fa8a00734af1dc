// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package monitor

import (
	"fmt"
	"sync"

	"github.com/aristanetworks/lockfree/hashmap"
	"github.com/aristanetworks/lockfree/list"
	"github.com/aristanetworks/lockfree/mempool"
	"github.com/aristanetworks/lockfree/reclaim"
	"github.com/prometheus/client_golang/prometheus"
)

// MapSource is implemented by hashmap.Map.
type MapSource interface {
	Len() int
	Buckets() int
	Stats() hashmap.Stats
}

// PoolSource is implemented by mempool.Pool and mempool.Slab.
type PoolSource interface {
	Stats() mempool.Stats
}

// ListSource is implemented by list.EpochList.
type ListSource interface {
	Len() int
	Stats() list.EpochStats
}

// ReclaimSource is implemented by reclaim.Reclaimer.
type ReclaimSource interface {
	Stats() reclaim.Stats
}

const namespace = "lockfree"

var (
	mapEntries = prometheus.NewDesc(namespace+"_map_entries",
		"Number of entries in the map.", []string{"name"}, nil)
	mapBuckets = prometheus.NewDesc(namespace+"_map_buckets",
		"Number of buckets of the map.", []string{"name"}, nil)
	mapCASFailures = prometheus.NewDesc(namespace+"_map_cas_failures_total",
		"Lost compare-and-swap races by operation.", []string{"name", "op"}, nil)
	mapDestroyErrors = prometheus.NewDesc(namespace+"_map_destroy_errors_total",
		"Removed nodes that could not be disposed of.", []string{"name"}, nil)

	poolChunks = prometheus.NewDesc(namespace+"_pool_chunks",
		"Number of chunks held by the pool.", []string{"name"}, nil)
	poolReserved = prometheus.NewDesc(namespace+"_pool_reserved",
		"Elements reserved in the pool's chunks.", []string{"name"}, nil)
	poolRetries = prometheus.NewDesc(namespace+"_pool_retries_total",
		"Lost compare-and-swap races by kind.", []string{"name", "kind"}, nil)

	listEntries = prometheus.NewDesc(namespace+"_list_entries",
		"Number of values in the list.", []string{"name"}, nil)
	listPending = prometheus.NewDesc(namespace+"_list_pending",
		"Deleted nodes waiting for the epoch barrier.", []string{"name"}, nil)
	listReleased = prometheus.NewDesc(namespace+"_list_released_total",
		"Deleted nodes released.", []string{"name"}, nil)
	listRetries = prometheus.NewDesc(namespace+"_list_retries_total",
		"Lost compare-and-swap races.", []string{"name"}, nil)
	listGeneration = prometheus.NewDesc(namespace+"_list_generation",
		"Completed epoch barrier rounds.", []string{"name"}, nil)

	reclaimRegistered = prometheus.NewDesc(namespace+"_reclaim_registered_total",
		"Objects registered for deferred release.", []string{"name"}, nil)
	reclaimReleased = prometheus.NewDesc(namespace+"_reclaim_released_total",
		"Objects released.", []string{"name"}, nil)
	reclaimPending = prometheus.NewDesc(namespace+"_reclaim_pending",
		"Objects registered and not released yet.", []string{"name"}, nil)
	reclaimStages = prometheus.NewDesc(namespace+"_reclaim_stages_total",
		"Successful stage calls.", []string{"name"}, nil)
	reclaimRuns = prometheus.NewDesc(namespace+"_reclaim_runs_total",
		"Run calls.", []string{"name"}, nil)
)

// Collector exports the counters of lock-free structures to prometheus.
// Sources are read on every scrape.
type Collector struct {
	m        sync.Mutex
	maps     map[string]MapSource
	pools    map[string]PoolSource
	lists    map[string]ListSource
	reclaims map[string]ReclaimSource
}

// NewCollector returns a Collector without sources.
func NewCollector() *Collector {
	return &Collector{
		maps:     map[string]MapSource{},
		pools:    map[string]PoolSource{},
		lists:    map[string]ListSource{},
		reclaims: map[string]ReclaimSource{},
	}
}

func add[S any](c *Collector, sources map[string]S, name string, s S) error {
	c.m.Lock()
	defer c.m.Unlock()
	if _, ok := sources[name]; ok {
		return fmt.Errorf("monitor: duplicate source %q", name)
	}
	sources[name] = s
	return nil
}

// AddMap exports m under name.
func (c *Collector) AddMap(name string, m MapSource) error {
	return add(c, c.maps, name, m)
}

// AddPool exports p under name.
func (c *Collector) AddPool(name string, p PoolSource) error {
	return add(c, c.pools, name, p)
}

// AddList exports l under name.
func (c *Collector) AddList(name string, l ListSource) error {
	return add(c, c.lists, name, l)
}

// AddReclaimer exports r under name.
func (c *Collector) AddReclaimer(name string, r ReclaimSource) error {
	return add(c, c.reclaims, name, r)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		mapEntries, mapBuckets, mapCASFailures, mapDestroyErrors,
		poolChunks, poolReserved, poolRetries,
		listEntries, listPending, listReleased, listRetries, listGeneration,
		reclaimRegistered, reclaimReleased, reclaimPending, reclaimStages, reclaimRuns,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.m.Lock()
	defer c.m.Unlock()
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	for name, m := range c.maps {
		s := m.Stats()
		gauge(mapEntries, float64(m.Len()), name)
		gauge(mapBuckets, float64(m.Buckets()), name)
		for op, v := range mapFailures(s) {
			counter(mapCASFailures, v, name, op)
		}
		counter(mapDestroyErrors, s.DestroyErrors, name)
	}
	for name, p := range c.pools {
		s := p.Stats()
		gauge(poolChunks, float64(s.Chunks), name)
		gauge(poolReserved, float64(s.Reserved), name)
		counter(poolRetries, s.AllocRetries, name, "alloc")
		counter(poolRetries, s.ChunkRetries, name, "chunk")
	}
	for name, l := range c.lists {
		s := l.Stats()
		gauge(listEntries, float64(l.Len()), name)
		gauge(listPending, float64(s.Pending), name)
		counter(listReleased, s.Released, name)
		counter(listRetries, s.Retries, name)
		gauge(listGeneration, float64(s.Generation), name)
	}
	for name, r := range c.reclaims {
		s := r.Stats()
		counter(reclaimRegistered, s.Registered, name)
		counter(reclaimReleased, s.Released, name)
		gauge(reclaimPending, float64(s.Pending), name)
		counter(reclaimStages, s.Stages, name)
		counter(reclaimRuns, s.Runs, name)
	}
}

func mapFailures(s hashmap.Stats) map[string]uint64 {
	return map[string]uint64{
		"put":         s.PutRetries,
		"put_replace": s.PutReplaceFail,
		"put_head":    s.PutHeadFail,
		"del":         s.DelFail,
		"del_head":    s.DelFailNewHead,
		"mark":        s.MarkFail,
		"busy":        s.Busy,
	}
}

// Snapshot returns the current counters of every source keyed by kind
// and name, as published on /debug/vars.
func (c *Collector) Snapshot() map[string]interface{} {
	c.m.Lock()
	defer c.m.Unlock()
	maps := map[string]interface{}{}
	for name, m := range c.maps {
		maps[name] = struct {
			Len, Buckets int
			hashmap.Stats
		}{m.Len(), m.Buckets(), m.Stats()}
	}
	pools := map[string]interface{}{}
	for name, p := range c.pools {
		pools[name] = p.Stats()
	}
	lists := map[string]interface{}{}
	for name, l := range c.lists {
		lists[name] = struct {
			Len int
			list.EpochStats
		}{l.Len(), l.Stats()}
	}
	reclaims := map[string]interface{}{}
	for name, r := range c.reclaims {
		reclaims[name] = r.Stats()
	}
	return map[string]interface{}{
		"maps":       maps,
		"pools":      pools,
		"lists":      lists,
		"reclaimers": reclaims,
	}
}
