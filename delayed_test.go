package resque

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnqueueAtCoreAndNextDelayedTimestamp(t *testing.T) {
	c, _, done := newMiniCore(t)
	defer done()
	ctx := context.Background()

	due := time.Now().Add(-time.Second) // already due
	id, err := enqueueAtCore(ctx, c, due, "default", "ReportJob", map[string]interface{}{"id": 1}, false)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ts, ok, err := nextDelayedTimestamp(ctx, c.rdb, time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, due.Unix(), ts)
}

func TestEnqueueAtCoreRejectsBadInput(t *testing.T) {
	c, _, done := newMiniCore(t)
	defer done()
	ctx := context.Background()

	_, err := enqueueAtCore(ctx, c, time.Now(), "", "X", nil, false)
	require.True(t, IsConfigError(err))
	_, err = enqueueAtCore(ctx, c, time.Now(), "default", "", nil, false)
	require.True(t, IsConfigError(err))
	_, err = enqueueAtCore(ctx, c, time.Time{}, "default", "X", nil, false)
	require.True(t, IsConfigError(err))
}

func TestPromoteDelayedDrainsListAndClearsSchedule(t *testing.T) {
	c, _, done := newMiniCore(t)
	defer done()
	ctx := context.Background()

	due := time.Now().Add(-time.Minute)
	_, err := enqueueAtCore(ctx, c, due, "default", "EmailJob", map[string]interface{}{"x": 1}, true)
	require.NoError(t, err)
	_, err = enqueueAtCore(ctx, c, due, "default", "EmailJob", map[string]interface{}{"x": 2}, false)
	require.NoError(t, err)

	n, err := promoteDelayed(ctx, c, due.Unix())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	size, err := sizeOf(ctx, c.rdb, "default")
	require.NoError(t, err)
	require.Equal(t, int64(2), size)

	_, ok, err := nextDelayedTimestamp(ctx, c.rdb, time.Now())
	require.NoError(t, err)
	require.False(t, ok, "the per-timestamp list's ZREM should have fired once it emptied")
}

func TestRemoveDelayed(t *testing.T) {
	c, _, done := newMiniCore(t)
	defer done()
	ctx := context.Background()

	due := time.Now().Add(time.Hour)
	id, err := enqueueAtCore(ctx, c, due, "default", "EmailJob", map[string]interface{}{"x": 1}, false)
	require.NoError(t, err)

	n, err := removeDelayed(ctx, c.rdb, "EmailJob", id)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = removeDelayed(ctx, c.rdb, "EmailJob", id)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
}

func TestDelayedPromoterRunOnce(t *testing.T) {
	c, _, done := newMiniCore(t)
	defer done()
	ctx := context.Background()

	due := time.Now().Add(-time.Second)
	_, err := enqueueAtCore(ctx, c, due, "default", "EmailJob", nil, false)
	require.NoError(t, err)

	p := &DelayedPromoter{core: c, interval: time.Millisecond}
	p.runOnce(ctx)

	size, err := sizeOf(ctx, c.rdb, "default")
	require.NoError(t, err)
	require.Equal(t, int64(1), size)
}
