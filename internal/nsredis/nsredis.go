// Package nsredis wraps a redis.UniversalClient with Resque's namespacing
// and transient-error retry behavior (spec §4.1). Every key-first command
// used by the rest of the package goes through here so that namespacing and
// LOADING-retry live in exactly one place.
package nsredis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps any non-transient error the underlying client
// returns. Callers should use errors.Is to detect it.
var ErrRedisUnavailable = errors.New("resque: redis unavailable")

// ErrStillLoading is returned when the dataset is still loading into memory
// after 19 retries (spec §4.1: sleep i seconds for i in 1..19, then give up).
var ErrStillLoading = errors.New("resque: redis still loading after repeated retries")

const maxLoadingRetries = 19

// Client is a namespace-prefixing, retry-wrapping Redis client. The first
// key-bearing argument of every method below is namespaced before being
// sent to Redis; pass bare (un-namespaced) keys built with internal/keys.
type Client struct {
	namespace string

	mu  sync.RWMutex
	rdb redis.UniversalClient
	// openedPID records the OS pid the connection was established under.
	// Every call checks this against the current pid and reconnects if it
	// has changed, per spec §5's after-fork reconnection invariant. Under
	// this implementation's goroutine worker model the pid never actually
	// changes mid-process; the check is kept because it is cheap and keeps
	// the connection object honest if it is ever shared across a real
	// fork/exec boundary (see DESIGN.md).
	openedPID int
	factory   func() redis.UniversalClient
}

// New wraps rdb with the given namespace (normalized to always end in ":").
func New(rdb redis.UniversalClient, namespace string) *Client {
	return &Client{
		namespace: normalize(namespace),
		rdb:       rdb,
		openedPID: os.Getpid(),
		factory:   func() redis.UniversalClient { return rdb },
	}
}

// NewFromFactory wraps a client built on demand by factory, enabling the
// Reconnect behavior used by the PIPE signal handler (spec §4.5) and the
// pid-change invariant above.
func NewFromFactory(factory func() redis.UniversalClient, namespace string) *Client {
	return &Client{
		namespace: normalize(namespace),
		rdb:       factory(),
		openedPID: os.Getpid(),
		factory:   factory,
	}
}

func normalize(ns string) string {
	if ns == "" {
		ns = "resque:"
	}
	if !strings.HasSuffix(ns, ":") {
		ns += ":"
	}
	return ns
}

// Namespace returns the configured namespace, trailing colon included.
func (c *Client) Namespace() string { return c.namespace }

// Prefixed returns key with the namespace prepended.
func (c *Client) Prefixed(key string) string { return c.namespace + key }

// RemovePrefix strips the namespace from s iff s carries it.
func (c *Client) RemovePrefix(s string) string {
	return strings.TrimPrefix(s, c.namespace)
}

// Reconnect tears down and rebuilds the underlying client, used by the PIPE
// signal handler. A Client built with New has only the client it was given,
// so Reconnect keeps that client open instead of closing it.
func (c *Client) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fresh := c.factory()
	if fresh != c.rdb {
		_ = c.rdb.Close()
	}
	c.rdb = fresh
	c.openedPID = os.Getpid()
	return nil
}

func (c *Client) client() redis.UniversalClient {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.openedPID != os.Getpid() {
		// Upgrade to a write lock to reconnect; re-check under it.
		c.mu.RUnlock()
		c.mu.Lock()
		if c.openedPID != os.Getpid() {
			_ = c.rdb.Close()
			c.rdb = c.factory()
			c.openedPID = os.Getpid()
		}
		rdb := c.rdb
		c.mu.Unlock()
		c.mu.RLock()
		return rdb
	}
	return c.rdb
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rdb.Close()
}

// Ping checks connectivity to the Redis server.
func (c *Client) Ping(ctx context.Context) error {
	_, err := withRetry(ctx, func() (string, error) { return c.client().Ping(ctx).Result() })
	return err
}

func isLoadingErr(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "LOADING")
}

// withRetry runs fn, retrying on a Redis LOADING reply (sleeping i seconds
// for the i-th retry, i in 1..19) and wrapping any other error as
// ErrRedisUnavailable. redis.Nil is passed through untouched so callers can
// distinguish "empty" from "broken".
func withRetry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn()
		if err == nil || err == redis.Nil {
			return v, err
		}
		if isLoadingErr(err) {
			if attempt > maxLoadingRetries {
				return zero, ErrStillLoading
			}
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
			continue
		}
		return zero, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
}

// --- String / counter commands ---

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return withRetry(ctx, func() (string, error) { return c.client().Get(ctx, c.Prefixed(key)).Result() })
}

func (c *Client) Set(ctx context.Context, key, value string) error {
	_, err := withRetry(ctx, func() (string, error) { return c.client().Set(ctx, c.Prefixed(key), value, 0).Result() })
	return err
}

func (c *Client) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := withRetry(ctx, func() (string, error) { return c.client().SetEx(ctx, c.Prefixed(key), value, ttl).Result() })
	return err
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	_, err := withRetry(ctx, func() (int64, error) { return c.client().Del(ctx, c.prefixAll(keys)...).Result() })
	return err
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := withRetry(ctx, func() (int64, error) { return c.client().Exists(ctx, c.Prefixed(key)).Result() })
	return n > 0, err
}

func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := withRetry(ctx, func() (bool, error) { return c.client().Expire(ctx, c.Prefixed(key), ttl).Result() })
	return err
}

func (c *Client) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return withRetry(ctx, func() (int64, error) { return c.client().IncrBy(ctx, c.Prefixed(key), delta).Result() })
}

func (c *Client) DecrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return withRetry(ctx, func() (int64, error) { return c.client().DecrBy(ctx, c.Prefixed(key), delta).Result() })
}

// Keys returns every key matching pattern (namespaced) with the namespace
// stripped back off each result.
func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	ks, err := withRetry(ctx, func() ([]string, error) { return c.client().Keys(ctx, c.Prefixed(pattern)).Result() })
	if err != nil {
		return nil, err
	}
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = c.RemovePrefix(k)
	}
	return out, nil
}

// --- List commands ---

func (c *Client) LPush(ctx context.Context, key string, values ...string) error {
	_, err := withRetry(ctx, func() (int64, error) {
		return c.client().LPush(ctx, c.Prefixed(key), toAny(values)...).Result()
	})
	return err
}

func (c *Client) RPush(ctx context.Context, key string, values ...string) error {
	_, err := withRetry(ctx, func() (int64, error) {
		return c.client().RPush(ctx, c.Prefixed(key), toAny(values)...).Result()
	})
	return err
}

func (c *Client) LPop(ctx context.Context, key string) (string, error) {
	return withRetry(ctx, func() (string, error) { return c.client().LPop(ctx, c.Prefixed(key)).Result() })
}

func (c *Client) RPop(ctx context.Context, key string) (string, error) {
	return withRetry(ctx, func() (string, error) { return c.client().RPop(ctx, c.Prefixed(key)).Result() })
}

// BLPop blocks on the given (bare) keys, all of which are namespaced before
// being sent to Redis. It returns (queueKey, value); the caller is
// responsible for stripping the "queue:" prefix to recover the queue name.
func (c *Client) BLPop(ctx context.Context, timeout time.Duration, keys ...string) (string, string, error) {
	res, err := withRetry(ctx, func() ([]string, error) {
		return c.client().BLPop(ctx, timeout, c.prefixAll(keys)...).Result()
	})
	if err != nil {
		return "", "", err
	}
	if len(res) != 2 {
		return "", "", redis.Nil
	}
	return c.RemovePrefix(res[0]), res[1], nil
}

func (c *Client) RPopLPush(ctx context.Context, src, dst string) (string, error) {
	return withRetry(ctx, func() (string, error) {
		return c.client().RPopLPush(ctx, c.Prefixed(src), c.Prefixed(dst)).Result()
	})
}

func (c *Client) LLen(ctx context.Context, key string) (int64, error) {
	return withRetry(ctx, func() (int64, error) { return c.client().LLen(ctx, c.Prefixed(key)).Result() })
}

func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return withRetry(ctx, func() ([]string, error) { return c.client().LRange(ctx, c.Prefixed(key), start, stop).Result() })
}

func (c *Client) LRem(ctx context.Context, key string, count int64, value string) (int64, error) {
	return withRetry(ctx, func() (int64, error) { return c.client().LRem(ctx, c.Prefixed(key), count, value).Result() })
}

// --- Set commands ---

func (c *Client) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	return withRetry(ctx, func() (int64, error) { return c.client().SAdd(ctx, c.Prefixed(key), toAny(members)...).Result() })
}

func (c *Client) SRem(ctx context.Context, key string, members ...string) error {
	_, err := withRetry(ctx, func() (int64, error) {
		return c.client().SRem(ctx, c.Prefixed(key), toAny(members)...).Result()
	})
	return err
}

func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	return withRetry(ctx, func() ([]string, error) { return c.client().SMembers(ctx, c.Prefixed(key)).Result() })
}

func (c *Client) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return withRetry(ctx, func() (bool, error) { return c.client().SIsMember(ctx, c.Prefixed(key), member).Result() })
}

// --- Sorted set commands ---

func (c *Client) ZAdd(ctx context.Context, key string, score float64, member string) error {
	_, err := withRetry(ctx, func() (int64, error) {
		return c.client().ZAdd(ctx, c.Prefixed(key), redis.Z{Score: score, Member: member}).Result()
	})
	return err
}

func (c *Client) ZRem(ctx context.Context, key string, member string) error {
	_, err := withRetry(ctx, func() (int64, error) { return c.client().ZRem(ctx, c.Prefixed(key), member).Result() })
	return err
}

func (c *Client) ZCard(ctx context.Context, key string) (int64, error) {
	return withRetry(ctx, func() (int64, error) { return c.client().ZCard(ctx, c.Prefixed(key)).Result() })
}

func (c *Client) ZRangeByScore(ctx context.Context, key string, min, max string, limit int64) ([]string, error) {
	return withRetry(ctx, func() ([]string, error) {
		return c.client().ZRangeByScore(ctx, c.Prefixed(key), &redis.ZRangeBy{
			Min: min, Max: max, Offset: 0, Count: limit,
		}).Result()
	})
}

// RunScript evaluates script with keys namespaced the same way every other
// command is, retrying on LOADING the same as a plain command. script's body
// sees the namespaced keys in KEYS, so callers write their Lua against the
// real key names.
func (c *Client) RunScript(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) (interface{}, error) {
	return withRetry(ctx, func() (interface{}, error) {
		return script.Run(ctx, c.client(), c.prefixAll(keys), args...).Result()
	})
}

func toAny(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func (c *Client) prefixAll(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = c.Prefixed(k)
	}
	return out
}
