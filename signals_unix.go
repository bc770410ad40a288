// Copyright 2020 Kentaro Hibino. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

//go:build !windows

package resque

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// ListenForSignals installs the worker's signal handlers and blocks until
// INT or QUIT is received; after TERM it keeps listening, so USR1/ALRM can
// still advance the escalation. It wires the full table:
// TERM initiates graceful shutdown, INT forces immediate shutdown, QUIT sets
// the shutdown flag without touching the in-flight job, USR1/ALRM advance
// the escalation started by TERM, USR2 pauses new reservations, CONT
// resumes them, and PIPE forces a Redis reconnect.
func (w *Worker) ListenForSignals() {
	w.logger().Info("listening for signals")
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs,
		unix.SIGTERM, unix.SIGINT, unix.SIGQUIT,
		unix.SIGUSR1, unix.SIGUSR2, unix.SIGCONT, unix.SIGALRM, unix.SIGPIPE,
	)
	defer signal.Stop(sigs)

	for sig := range sigs {
		switch sig {
		case unix.SIGTERM:
			w.Terminate()
		case unix.SIGINT:
			w.Interrupt()
			return
		case unix.SIGQUIT:
			w.Shutdown()
			return
		case unix.SIGUSR1, unix.SIGALRM:
			w.Escalate()
		case unix.SIGUSR2:
			w.Pause()
		case unix.SIGCONT:
			w.Resume()
		case unix.SIGPIPE:
			if err := w.Reconnect(); err != nil {
				w.logger().Errorf("reconnect failed: %v", err)
			}
		}
	}
}
