package resque

import (
	"context"
	"testing"

	"github.com/resquego/resque/internal/base"
	"github.com/stretchr/testify/require"
)

func TestWriteReadTransitionStatus(t *testing.T) {
	c, raw, done := newMiniCore(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, writeStatus(ctx, c.rdb, "job-1", base.Waiting, 1000))
	rec, err := readStatus(ctx, c.rdb, "job-1")
	require.NoError(t, err)
	require.Equal(t, base.Waiting, rec.Status)
	require.Equal(t, int64(1000), rec.Started)

	require.NoError(t, transitionStatus(ctx, c.rdb, "job-1", base.Running))
	rec, err = readStatus(ctx, c.rdb, "job-1")
	require.NoError(t, err)
	require.Equal(t, base.Running, rec.Status)
	require.Equal(t, int64(1000), rec.Started, "started must survive a transition")

	require.NoError(t, transitionStatus(ctx, c.rdb, "job-1", base.Complete))
	ttl, err := raw.TTL(ctx, "resque:job:job-1:status").Result()
	require.NoError(t, err)
	require.Greater(t, ttl.Seconds(), float64(0))
}

func TestTransitionStatusUntrackedIsNoop(t *testing.T) {
	c, _, done := newMiniCore(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, transitionStatus(ctx, c.rdb, "never-tracked", base.Complete))
	rec, err := readStatus(ctx, c.rdb, "never-tracked")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestDeleteStatus(t *testing.T) {
	c, _, done := newMiniCore(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, writeStatus(ctx, c.rdb, "job-2", base.Waiting, 1))
	require.NoError(t, deleteStatus(ctx, c.rdb, "job-2"))
	rec, err := readStatus(ctx, c.rdb, "job-2")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestToStatusInfo(t *testing.T) {
	rec := &base.StatusRecord{Status: base.Complete, Updated: 500, Started: 0}
	info := toStatusInfo(rec)
	require.Equal(t, base.Complete, info.Status)
	require.True(t, info.Started.IsZero())
}
