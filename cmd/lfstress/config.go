// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package main

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the representation of lfstress's YAML config file.
type Config struct {
	// Goroutines per workload.
	Workers int
	// Operations per goroutine.
	Ops int
	// Seed of the per-worker random streams.
	Seed uint64
	// How often the reclaim driver stages and releases removed entries.
	ReclaimInterval time.Duration `yaml:"reclaim-interval"`

	Map  *MapWorkload
	List *ListWorkload
	Pool *PoolWorkload
}

// MapWorkload drives a hashmap.Map with a mix of operations.
type MapWorkload struct {
	Buckets uint32
	// Keys are drawn from [0, Keys).
	Keys int
	// Relative weights of each operation.
	Get int
	Put int
	Del int
	// Allocate nodes from a slab instead of the heap when set.
	Slab *SlabConfig
}

// SlabConfig sizes the slab of map nodes.
type SlabConfig struct {
	ChunkLen int `yaml:"chunk-len"`
	Lookback int
	// Maximum number of nodes, 0 for no limit.
	Limit int64
}

// ListWorkload adds and deletes values in an epoch list.
type ListWorkload struct {
	// Values each worker cycles through.
	Values int
}

// PoolWorkload allocates from a shared memory pool.
type PoolWorkload struct {
	ChunkSize int `yaml:"chunk-size"`
	Lookback  int
	// Allocation sizes are drawn from [1, MaxAlloc].
	MaxAlloc int `yaml:"max-alloc"`
	// Maximum bytes in the pool, 0 for no limit.
	Limit int64
}

func defaultConfig() *Config {
	return &Config{
		Workers:         4,
		Ops:             100000,
		Seed:            1,
		ReclaimInterval: 10 * time.Millisecond,
		Map: &MapWorkload{
			Buckets: 1024,
			Keys:    4096,
			Get:     8,
			Put:     1,
			Del:     1,
		},
	}
}

// Parses the config and applies defaults to missing fields.
func parseConfig(cfg []byte) (*Config, error) {
	config := defaultConfig()
	// a config file replaces the default workloads
	config.Map = nil
	if err := yaml.UnmarshalStrict(cfg, config); err != nil {
		return nil, fmt.Errorf("Failed to parse config: %v", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("invalid number of workers: %d", c.Workers)
	}
	if c.Ops <= 0 {
		return fmt.Errorf("invalid number of operations: %d", c.Ops)
	}
	if c.ReclaimInterval <= 0 {
		return fmt.Errorf("invalid reclaim interval: %v", c.ReclaimInterval)
	}
	if c.Map == nil && c.List == nil && c.Pool == nil {
		return errors.New("no workload configured")
	}
	if m := c.Map; m != nil {
		if m.Buckets == 0 || m.Keys <= 0 {
			return fmt.Errorf("map: invalid buckets %d or keys %d", m.Buckets, m.Keys)
		}
		if m.Get < 0 || m.Put < 0 || m.Del < 0 || m.Get+m.Put+m.Del == 0 {
			return fmt.Errorf("map: invalid operation weights %d/%d/%d", m.Get, m.Put, m.Del)
		}
		if s := m.Slab; s != nil && (s.ChunkLen <= 0 || s.Lookback < 0 || s.Limit < 0) {
			return fmt.Errorf("map: invalid slab %+v", *s)
		}
	}
	if l := c.List; l != nil && l.Values <= 0 {
		return fmt.Errorf("list: invalid number of values: %d", l.Values)
	}
	if p := c.Pool; p != nil {
		if p.ChunkSize <= 0 || p.Lookback < 0 || p.MaxAlloc <= 0 || p.Limit < 0 {
			return fmt.Errorf("pool: invalid config %+v", *p)
		}
	}
	return nil
}
