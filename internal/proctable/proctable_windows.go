//go:build windows

// Package proctable abstracts "what pids are alive on this host" the way
// the pruner needs it: a soft contract with the OS, not with Redis.
package proctable

import (
	"context"
	"fmt"
)

// Table is the Windows stub: there is no portable ps-like liveness check
// wired up here, so the pruner degrades to never pruning on this platform
// rather than risk unregistering a live worker on a misread.
type Table struct{}

// New returns a Table whose Live always errors; callers should treat that
// as "skip this pruning pass" rather than "no workers are alive".
func New() *Table { return &Table{} }

func (t *Table) Live(ctx context.Context) (map[int]bool, error) {
	return nil, fmt.Errorf("proctable: process liveness check is not supported on windows")
}
