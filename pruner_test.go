package resque

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeProcessTable struct {
	live map[int]bool
	err  error
}

func (f fakeProcessTable) Live(ctx context.Context) (map[int]bool, error) { return f.live, f.err }

func TestPruneWorkersRemovesDead(t *testing.T) {
	c, _, done := newMiniCore(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, registerWorker(ctx, c.rdb, "host-a:100:default"))
	require.NoError(t, registerWorker(ctx, c.rdb, "host-a:200:default"))
	require.NoError(t, registerWorker(ctx, c.rdb, "host-b:300:default"))

	table := fakeProcessTable{live: map[int]bool{200: true}}
	require.NoError(t, pruneWorkers(ctx, c.rdb, table, "host-a", 999))

	ids, err := liveWorkerIDs(ctx, c.rdb)
	require.NoError(t, err)
	require.NotContains(t, ids, "host-a:100:default")
	require.Contains(t, ids, "host-a:200:default")
	require.Contains(t, ids, "host-b:300:default", "a different host's workers are never this host's business")
}

func TestPruneWorkersNeverPrunesItself(t *testing.T) {
	c, _, done := newMiniCore(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, registerWorker(ctx, c.rdb, "host-a:100:default"))
	table := fakeProcessTable{live: map[int]bool{}}
	require.NoError(t, pruneWorkers(ctx, c.rdb, table, "host-a", 100))

	ids, err := liveWorkerIDs(ctx, c.rdb)
	require.NoError(t, err)
	require.Contains(t, ids, "host-a:100:default")
}

func TestPruneWorkersSkipsOnUnknownLiveness(t *testing.T) {
	c, _, done := newMiniCore(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, registerWorker(ctx, c.rdb, "host-a:100:default"))
	table := fakeProcessTable{err: errors.New("ps: command not found")}
	require.NoError(t, pruneWorkers(ctx, c.rdb, table, "host-a", 999))

	ids, err := liveWorkerIDs(ctx, c.rdb)
	require.NoError(t, err)
	require.Contains(t, ids, "host-a:100:default")
}
