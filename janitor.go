// Copyright 2022 Kentaro Hibino. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package resque

import (
	"context"
	"sync"
	"time"

	"github.com/resquego/resque/internal/log"
)

// Janitor periodically runs the worker-registry pruner (§4.6) against a
// Worker, so a fleet that never restarts still reclaims entries left behind
// by workers that crashed without reaching their own shutdown path. Status
// and failure records need no janitor of their own: their TTL is set at
// write time and Redis expires them on its own.
type Janitor struct {
	logger *log.Logger
	worker *Worker

	done chan struct{}

	interval time.Duration
}

// NewJanitor returns a Janitor that prunes worker's registry every
// interval (default 30s if non-positive).
func NewJanitor(worker *Worker, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Janitor{
		logger:   worker.core.logger,
		worker:   worker,
		done:     make(chan struct{}),
		interval: interval,
	}
}

func (j *Janitor) shutdown() {
	if j.logger != nil {
		j.logger.Debug("janitor shutting down")
	}
	j.done <- struct{}{}
}

// Shutdown stops the janitor's loop.
func (j *Janitor) Shutdown() { j.shutdown() }

// Start begins the periodic pruning loop, registering its goroutine on wg.
func (j *Janitor) Start(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		timer := time.NewTimer(j.interval)
		for {
			select {
			case <-j.done:
				timer.Stop()
				return
			case <-timer.C:
				j.exec()
				timer.Reset(j.interval)
			}
		}
	}()
}

func (j *Janitor) exec() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()
	if err := j.worker.PruneWorkers(ctx); err != nil && j.logger != nil {
		j.logger.Errorf("failed to prune worker registry: %v", err)
	}
}
