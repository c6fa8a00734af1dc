// Copyright (c) 2026 Arista Networks, Inc.
// Use of this source code is governed by the Apache License 2.0
// that can be found in the COPYING file.

package reclaim

import (
	"context"
	"errors"
	"time"

	"github.com/aristanetworks/lockfree/logger"
	"github.com/cenkalti/backoff/v4"
)

var errNotElapsed = errors.New("reclaim: grace period has not elapsed")

// Driver runs the stage, wait for a grace period, run cycle of a
// Reclaimer on a timer.
type Driver struct {
	r        *Reclaimer
	g        *Grace
	interval time.Duration
	log      logger.Logger
}

// NewDriver creates a Driver that cycles every interval. A nil logger
// discards log messages.
func NewDriver(r *Reclaimer, g *Grace, interval time.Duration, log logger.Logger) *Driver {
	if log == nil {
		log = logger.Discard
	}
	return &Driver{r: r, g: g, interval: interval, log: log}
}

func (d *Driver) backOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Microsecond
	bo.MaxInterval = d.interval
	bo.MaxElapsedTime = 0
	return backoff.WithContext(bo, ctx)
}

// Cycle stages what was registered so far, waits until every participant
// quiesced, and releases the staged objects. It returns the number of
// objects released, or the context error if ctx ended first.
func (d *Driver) Cycle(ctx context.Context) (int, error) {
	if !d.r.Stage() {
		// the previous cycle was interrupted, finish it first
		d.log.Infof("reclaim: staged buffer not drained yet, retrying it")
	}
	gen := d.g.Begin()
	err := backoff.Retry(func() error {
		if d.g.Elapsed(gen) {
			return nil
		}
		return errNotElapsed
	}, d.backOff(ctx))
	if err != nil {
		return 0, err
	}
	return d.r.Run(), nil
}

// Run cycles until ctx is done and returns its error.
func (d *Driver) Run(ctx context.Context) error {
	t := time.NewTicker(d.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		start := time.Now()
		n, err := d.Cycle(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			d.log.Errorf("reclaim: cycle failed: %v", err)
			continue
		}
		if n > 0 {
			d.log.Infof("reclaim: released %d objects in %v", n, time.Since(start))
		}
	}
}
