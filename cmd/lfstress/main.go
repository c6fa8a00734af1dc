// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

// The lfstress command runs concurrent workloads against the lock-free map,
// list and memory pool and reports their throughput and contention.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/aristanetworks/glog"
	lfglog "github.com/aristanetworks/lockfree/glog"
	"github.com/aristanetworks/lockfree/monitor"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configFlag := flag.String("config", "", "YAML `file` describing the workloads")
	workers := flag.Int("workers", 0, "Goroutines per workload, overrides the config")
	ops := flag.Int("ops", 0, "Operations per goroutine, overrides the config")
	monitorAddr := flag.String("monitor", "",
		"Address on which to serve /debug and /metrics, disabled if empty")
	flag.Parse()

	config := defaultConfig()
	if *configFlag != "" {
		cfg, err := os.ReadFile(*configFlag)
		if err != nil {
			glog.Fatalf("Can't read config file %q: %v", *configFlag, err)
		}
		if config, err = parseConfig(cfg); err != nil {
			glog.Fatal(err)
		}
	}
	if *workers > 0 {
		config.Workers = *workers
	}
	if *ops > 0 {
		config.Ops = *ops
	}
	if err := config.validate(); err != nil {
		glog.Fatal(err)
	}

	coll := monitor.NewCollector()
	reg := prometheus.NewRegistry()
	reg.MustRegister(coll)
	monitor.Publish("lockfree", coll)
	if *monitorAddr != "" {
		go monitor.NewMonitorServer(*monitorAddr, reg).Run()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	s := &stress{config: config, log: &lfglog.Glog{InfoLevel: 1}, coll: coll}
	results, err := s.run(ctx)
	if err != nil {
		glog.Fatal(err)
	}
	for _, r := range results {
		glog.Info(r)
	}
}
