package nsredis

import (
	"context"
	"testing"

	mrd "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newMiniClient(t *testing.T) (*Client, *mrd.Miniredis, func()) {
	t.Helper()
	s := mrd.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: s.Addr()})
	c := New(raw, "myapp")
	cleanup := func() {
		_ = raw.Close()
		s.Close()
	}
	return c, s, cleanup
}

func TestNamespacePrefixing(t *testing.T) {
	c, s, done := newMiniClient(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "foo", "bar"))
	v, err := s.Get("myapp:foo")
	require.NoError(t, err)
	require.Equal(t, "bar", v)
}

func TestNamespaceDefaultsToResque(t *testing.T) {
	c := New(nil, "")
	require.Equal(t, "resque:", c.Namespace())
}

func TestKeysStripsNamespace(t *testing.T) {
	c, _, done := newMiniClient(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "queue:default", "x"))
	ks, err := c.Keys(ctx, "queue:*")
	require.NoError(t, err)
	require.Equal(t, []string{"queue:default"}, ks)
}

func TestListAndSetCommands(t *testing.T) {
	c, _, done := newMiniClient(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, c.RPush(ctx, "list", "a", "b"))
	n, err := c.LLen(ctx, "list")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	v, err := c.LPop(ctx, "list")
	require.NoError(t, err)
	require.Equal(t, "a", v)

	_, err = c.SAdd(ctx, "set", "m1")
	require.NoError(t, err)
	isMember, err := c.SIsMember(ctx, "set", "m1")
	require.NoError(t, err)
	require.True(t, isMember)
}

func TestReconnectRebuildsClient(t *testing.T) {
	c, _, done := newMiniClient(t)
	defer done()
	require.NoError(t, c.Reconnect())
	require.NoError(t, c.Ping(context.Background()))
}

func TestRunScript(t *testing.T) {
	c, _, done := newMiniClient(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, c.RPush(ctx, "scriptlist", "v1"))
	script := redis.NewScript(`return redis.call('LPOP', KEYS[1])`)
	res, err := c.RunScript(ctx, script, []string{"scriptlist"})
	require.NoError(t, err)
	require.Equal(t, "v1", res)
}

func TestGetMissingReturnsNil(t *testing.T) {
	c, _, done := newMiniClient(t)
	defer done()
	_, err := c.Get(context.Background(), "missing")
	require.ErrorIs(t, err, redis.Nil)
}
