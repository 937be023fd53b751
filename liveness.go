/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"sync"
	"time"
)

// LivenessTracker periodically sweeps every room for lapsed heartbeats and
// idle rooms. Removals go through the coordinator, under each room's lock.
type LivenessTracker struct {
	cfg      *Config
	coord    *Coordinator
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func newLivenessTracker(cfg *Config, coord *Coordinator) *LivenessTracker {
	ctx, cancel := context.WithCancel(context.Background())

	return &LivenessTracker{
		cfg:      cfg,
		coord:    coord,
		interval: cfg.livenessInterval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs the sweep loop in the background until ctx is done or Stop is
// called.
func (t *LivenessTracker) Start(ctx context.Context) {
	t.wg.Add(1)

	go func() {
		defer t.wg.Done()

		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		logf(t.cfg, "LIVENESS: Sweeping every %s (heartbeat timeout %s, away timeout %s)",
			t.interval, t.cfg.heartbeatTimeout, t.cfg.awayTimeout)

		for {
			select {
			case <-ticker.C:
				t.coord.Sweep(t.ctx)
			case <-ctx.Done():
				return
			case <-t.ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (t *LivenessTracker) Stop() {
	t.cancel()
	t.wg.Wait()

	logf(t.cfg, "LIVENESS: Stopped")
}
