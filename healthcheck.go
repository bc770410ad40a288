// Copyright 2020 Kentaro Hibino. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package resque

import (
	"context"
	"sync"
	"time"

	"github.com/resquego/resque/internal/log"
	"github.com/resquego/resque/internal/nsredis"
)

// HealthChecker periodically pings Redis and invokes a user-provided
// callback with the result of every ping (nil when the server answered).
type HealthChecker struct {
	logger *log.Logger
	rdb    *nsredis.Client

	done chan struct{}

	interval        time.Duration
	healthcheckFunc func(error)
}

// NewHealthChecker returns a HealthChecker wired to client's Redis
// connection, pinging every interval and invoking fn with the result of
// each ping (nil on success). interval defaults to 15s if non-positive.
func NewHealthChecker(client *Client, interval time.Duration, fn func(error)) *HealthChecker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &HealthChecker{
		logger:          client.core.logger,
		rdb:             client.core.rdb,
		done:            make(chan struct{}),
		interval:        interval,
		healthcheckFunc: fn,
	}
}

// Shutdown stops the healthchecker's loop.
func (hc *HealthChecker) Shutdown() {
	if hc.logger != nil {
		hc.logger.Debug("healthchecker shutting down")
	}
	hc.done <- struct{}{}
}

// Start begins the periodic ping loop, registering its goroutine on wg so
// callers can wait for a clean Shutdown.
func (hc *HealthChecker) Start(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		timer := time.NewTimer(hc.interval)
		for {
			select {
			case <-hc.done:
				timer.Stop()
				return
			case <-timer.C:
				hc.exec()
				timer.Reset(hc.interval)
			}
		}
	}()
}

func (hc *HealthChecker) exec() {
	ctx, cancel := context.WithTimeout(context.Background(), hc.interval)
	defer cancel()
	err := hc.rdb.Ping(ctx)
	if hc.healthcheckFunc != nil {
		hc.healthcheckFunc(err)
	}
}
