package resque

import (
	"context"
	"testing"

	"github.com/resquego/resque/internal/base"
	"github.com/stretchr/testify/require"
)

func TestIncrDecrStatValue(t *testing.T) {
	c, _, done := newMiniCore(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, incrStat(ctx, c.rdb, "processed", 3))
	n, err := statValue(ctx, c.rdb, "processed")
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	require.NoError(t, decrStat(ctx, c.rdb, "processed", 1))
	n, err = statValue(ctx, c.rdb, "processed")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestStatValueMissingIsZero(t *testing.T) {
	c, _, done := newMiniCore(t)
	defer done()
	n, err := statValue(context.Background(), c.rdb, "nope")
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
}

func TestStatsSnapshot(t *testing.T) {
	c, _, done := newMiniCore(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, incrStat(ctx, c.rdb, "processed", 5))
	require.NoError(t, incrStat(ctx, c.rdb, "failed", 1))

	env := &base.Envelope{Class: "X", ID: "1"}
	data, _ := base.EncodeEnvelope(env)
	require.NoError(t, pushEnvelope(ctx, c.rdb, "default", data))

	stats := &Stats{core: c}
	snap, err := stats.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(5), snap.Processed)
	require.Equal(t, int64(1), snap.Failed)
	require.Equal(t, int64(1), snap.Queues["default"])
}
