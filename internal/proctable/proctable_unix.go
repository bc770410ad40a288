//go:build !windows

// Package proctable abstracts "what pids are alive on this host" the way
// the pruner needs it: a soft contract with the OS, not with Redis.
package proctable

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/time/rate"
)

// Table reports which pids are currently alive on this host, preferring a
// direct /proc read (Linux) and falling back to shelling out to a portable
// ps invocation when /proc is unavailable (e.g. non-Linux Unix).
type Table struct {
	limiter *rate.Limiter
}

// New returns a Table that rate-limits its own liveness checks so a large
// worker fleet pruning concurrently doesn't hammer the host.
func New() *Table {
	return &Table{limiter: rate.NewLimiter(rate.Limit(5), 1)}
}

// Live returns the set of pids currently visible on this host.
func (t *Table) Live(ctx context.Context) (map[int]bool, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if pids, err := liveFromProc(); err == nil {
		return pids, nil
	}
	return liveFromPS(ctx)
}

func liveFromProc() (map[int]bool, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}
	pids := make(map[int]bool)
	for _, e := range entries {
		if pid, err := strconv.Atoi(e.Name()); err == nil {
			pids[pid] = true
		}
	}
	if len(pids) == 0 {
		return nil, os.ErrNotExist
	}
	return pids, nil
}

func liveFromPS(ctx context.Context) (map[int]bool, error) {
	out, err := exec.CommandContext(ctx, "ps", "-A", "-o", "pid=").Output()
	if err != nil {
		return nil, err
	}
	pids := make(map[int]bool)
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		if pid, err := strconv.Atoi(strings.TrimSpace(scanner.Text())); err == nil {
			pids[pid] = true
		}
	}
	return pids, scanner.Err()
}
