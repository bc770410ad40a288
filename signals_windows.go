// Copyright 2020 Kentaro Hibino. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

//go:build windows

package resque

import (
	"os"
	"os/signal"
)

// ListenForSignals installs the worker's signal handlers and blocks until an
// interrupt is received. Windows has no USR1/USR2/ALRM/PIPE analogues, so
// only the shutdown path (os.Interrupt, standing in for TERM/INT) is wired.
func (w *Worker) ListenForSignals() {
	w.logger().Info("listening for signals")
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	<-sigs
	w.Interrupt()
}
