package resque

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordAndReadFailure(t *testing.T) {
	c, raw, done := newMiniCore(t)
	defer done()
	ctx := context.Background()

	payload := json.RawMessage(`{"class":"EmailJob","args":[{"user_id":42}],"id":"f1"}`)
	require.NoError(t, recordFailure(ctx, c.rdb, "f1", payload, "RuntimeError", "boom", []string{"line 1"}, "host:1:default", "default"))

	rec, err := readFailure(ctx, c.rdb, "f1")
	require.NoError(t, err)
	require.Equal(t, "RuntimeError", rec.Exception)
	require.Equal(t, "boom", rec.Error)
	require.Equal(t, "default", rec.Queue)

	ttl, err := raw.TTL(ctx, "resque:failed:f1").Result()
	require.NoError(t, err)
	require.Greater(t, ttl.Seconds(), float64(0))
}

func TestReadFailureMissing(t *testing.T) {
	c, _, done := newMiniCore(t)
	defer done()
	rec, err := readFailure(context.Background(), c.rdb, "missing")
	require.NoError(t, err)
	require.Nil(t, rec)
}
