package resque

import (
	"context"
	"strconv"
	"strings"

	"github.com/resquego/resque/internal/nsredis"
)

// processTable is the liveness check the pruner consults; satisfied by
// internal/proctable.Table.
type processTable interface {
	Live(ctx context.Context) (map[int]bool, error)
}

// pruneWorkers implements the mark-and-sweep registry GC: a registered
// worker whose host matches thisHost, whose pid is absent from the host's
// process table, and whose pid is not thisPID, gets unregistered. Workers
// on another hostname are left alone — liveness there is someone else's to
// judge.
func pruneWorkers(ctx context.Context, rdb *nsredis.Client, table processTable, thisHost string, thisPID int) error {
	ids, err := liveWorkerIDs(ctx, rdb)
	if err != nil {
		return err
	}
	live, err := table.Live(ctx)
	if err != nil {
		// Liveness is unknowable this pass (unsupported platform, ps
		// failed); skip pruning rather than risk unregistering a live
		// worker on a misread.
		return nil
	}
	for _, id := range ids {
		host, pid, ok := parseWorkerID(id)
		if !ok || host != thisHost || pid == thisPID {
			continue
		}
		if live[pid] {
			continue
		}
		if err := unregisterWorker(ctx, rdb, id); err != nil {
			return err
		}
	}
	return nil
}

// parseWorkerID splits a "<host>:<pid>:<queue-pattern>" worker id into its
// host and pid components.
func parseWorkerID(id string) (host string, pid int, ok bool) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) < 2 {
		return "", 0, false
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, false
	}
	return parts[0], n, true
}
