package resque

import (
	"context"
	"testing"
	"time"

	"github.com/resquego/resque/internal/base"
	"github.com/resquego/resque/internal/keys"
	"github.com/stretchr/testify/require"
)

func TestPushPopEnvelope(t *testing.T) {
	c, raw, done := newMiniCore(t)
	defer done()
	ctx := context.Background()

	env := &base.Envelope{Class: "EmailJob", ID: "abc123"}
	data, err := base.EncodeEnvelope(env)
	require.NoError(t, err)
	require.NoError(t, pushEnvelope(ctx, c.rdb, "default", data))

	isMember, err := raw.SIsMember(ctx, "resque:queues", "default").Result()
	require.NoError(t, err)
	require.True(t, isMember)

	got, err := popEnvelope(ctx, c.rdb, c.logger, "default")
	require.NoError(t, err)
	require.Equal(t, "EmailJob", got.Class)
	require.Equal(t, "abc123", got.ID)

	// queue drained
	got, err = popEnvelope(ctx, c.rdb, c.logger, "default")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestPopEnvelopeDiscardsMalformed(t *testing.T) {
	c, raw, done := newMiniCore(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, raw.RPush(ctx, "resque:"+keys.Queue("default"), "not json").Err())
	env, err := popEnvelope(ctx, c.rdb, c.logger, "default")
	require.NoError(t, err)
	require.Nil(t, env)
}

func TestBlpopEnvelopeAcrossQueues(t *testing.T) {
	c, _, done := newMiniCore(t)
	defer done()
	ctx := context.Background()

	env := &base.Envelope{Class: "ReportJob", ID: "r1"}
	data, err := base.EncodeEnvelope(env)
	require.NoError(t, err)
	require.NoError(t, pushEnvelope(ctx, c.rdb, "reports", data))

	queue, got, err := blpopEnvelope(ctx, c.rdb, c.logger, []string{"default", "reports"}, time.Second)
	require.NoError(t, err)
	require.Equal(t, "reports", queue)
	require.Equal(t, "r1", got.ID)
}

func TestSizeOf(t *testing.T) {
	c, _, done := newMiniCore(t)
	defer done()
	ctx := context.Background()

	n, err := sizeOf(ctx, c.rdb, "default")
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	env := &base.Envelope{Class: "X", ID: "1"}
	data, _ := base.EncodeEnvelope(env)
	require.NoError(t, pushEnvelope(ctx, c.rdb, "default", data))

	n, err = sizeOf(ctx, c.rdb, "default")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestPredicates(t *testing.T) {
	env := &base.Envelope{Class: "EmailJob", ID: "job-1", Args: mustArgsJSON(map[string]interface{}{"user_id": float64(42)})}

	require.True(t, ClassPredicate("EmailJob").matches(env))
	require.False(t, ClassPredicate("ReportJob").matches(env))
	require.True(t, IDPredicate("EmailJob", "job-1").matches(env))
	require.False(t, IDPredicate("EmailJob", "job-2").matches(env))
	require.True(t, ArgsPredicate("EmailJob", map[string]interface{}{"user_id": float64(42)}).matches(env))
	require.False(t, ArgsPredicate("EmailJob", map[string]interface{}{"user_id": float64(7)}).matches(env))
}

func mustArgsJSON(m map[string]interface{}) []byte {
	data, err := encodeArgsArray(m)
	if err != nil {
		panic(err)
	}
	return data
}

func TestDequeueEnvelopesPlain(t *testing.T) {
	c, _, done := newMiniCore(t)
	defer done()
	ctx := context.Background()

	env := &base.Envelope{Class: "X", ID: "1"}
	data, _ := base.EncodeEnvelope(env)
	require.NoError(t, pushEnvelope(ctx, c.rdb, "default", data))
	require.NoError(t, pushEnvelope(ctx, c.rdb, "default", data))

	n, err := dequeueEnvelopes(ctx, c.rdb, "default", nil)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	size, err := sizeOf(ctx, c.rdb, "default")
	require.NoError(t, err)
	require.Equal(t, int64(0), size)
}

func TestDequeueEnvelopesByPredicate(t *testing.T) {
	c, _, done := newMiniCore(t)
	defer done()
	ctx := context.Background()

	keep := &base.Envelope{Class: "Keep", ID: "k1"}
	drop := &base.Envelope{Class: "Drop", ID: "d1"}
	keepData, _ := base.EncodeEnvelope(keep)
	dropData, _ := base.EncodeEnvelope(drop)
	require.NoError(t, pushEnvelope(ctx, c.rdb, "mixed", keepData))
	require.NoError(t, pushEnvelope(ctx, c.rdb, "mixed", dropData))

	n, err := dequeueEnvelopes(ctx, c.rdb, "mixed", []Predicate{ClassPredicate("Drop")})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	remaining, err := popEnvelope(ctx, c.rdb, c.logger, "mixed")
	require.NoError(t, err)
	require.Equal(t, "Keep", remaining.Class)
}
