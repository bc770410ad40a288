package resque

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/resquego/resque/internal/base"
	"github.com/resquego/resque/internal/keys"
	"github.com/resquego/resque/internal/nsredis"
)

// enqueueAtCore implements enqueueAt(timestamp, queue, class, args, track).
func enqueueAtCore(ctx context.Context, c *core, at time.Time, queue, class string, args interface{}, track bool) (string, error) {
	if queue == "" {
		return "", newConfigError("queue name must not be empty")
	}
	if class == "" {
		return "", newConfigError("class name must not be empty")
	}
	if at.IsZero() {
		return "", newConfigError("timestamp must not be zero")
	}
	id := base.GenerateID()
	argsJSON, err := encodeArgsArray(args)
	if err != nil {
		return "", newConfigError("cannot encode job arguments: %v", err)
	}
	env := &base.Envelope{Class: class, Args: argsJSON, ID: id, Queue: queue, Track: track}
	data, err := base.EncodeEnvelope(env)
	if err != nil {
		return "", err
	}
	ts := at.Unix()
	if err := c.rdb.RPush(ctx, keys.ScheduleAt(ts), string(data)); err != nil {
		return "", newRedisUnavailable(err)
	}
	if err := c.rdb.ZAdd(ctx, keys.Schedule(), float64(ts), strconv.FormatInt(ts, 10)); err != nil {
		return "", newRedisUnavailable(err)
	}
	if track {
		if err := writeStatus(ctx, c.rdb, id, base.Scheduled, time.Now().Unix()); err != nil {
			return "", err
		}
	}
	return id, nil
}

// nextDelayedTimestamp returns the earliest due timestamp at or before now,
// or ok=false if the schedule has nothing due yet.
func nextDelayedTimestamp(ctx context.Context, rdb *nsredis.Client, now time.Time) (ts int64, ok bool, err error) {
	members, err := rdb.ZRangeByScore(ctx, keys.Schedule(), "-inf", strconv.FormatInt(now.Unix(), 10), 1)
	if err != nil {
		return 0, false, newRedisUnavailable(err)
	}
	if len(members) == 0 {
		return 0, false, nil
	}
	ts, convErr := strconv.ParseInt(members[0], 10, 64)
	if convErr != nil {
		return 0, false, nil
	}
	return ts, true, nil
}

// popDelayedScript pops one envelope off a per-timestamp delayed list and,
// iff that empties the list, removes the timestamp from the schedule zset
// in the same round trip. Doing the emptiness check and the ZREM in Lua
// closes the race a separate LLEN-then-ZREM would have against a concurrent
// enqueueAt landing on the same timestamp between the two commands.
var popDelayedScript = redis.NewScript(`
local item = redis.call('LPOP', KEYS[1])
if item == false then
	return false
end
if redis.call('LLEN', KEYS[1]) == 0 then
	redis.call('ZREM', KEYS[2], ARGV[1])
end
return item
`)

// promoteDelayed drains every envelope due at ts into its target queue,
// removing ts from the schedule once its list is empty.
func promoteDelayed(ctx context.Context, c *core, ts int64) (int, error) {
	listKey := keys.ScheduleAt(ts)
	scheduleKey := keys.Schedule()
	tsArg := strconv.FormatInt(ts, 10)
	var n int
	for {
		res, err := c.rdb.RunScript(ctx, popDelayedScript, []string{listKey, scheduleKey}, tsArg)
		if err == redis.Nil {
			break
		}
		if err != nil {
			return n, newRedisUnavailable(err)
		}
		raw, ok := res.(string)
		if !ok {
			break
		}
		env, err := base.DecodeEnvelope([]byte(raw))
		if err != nil {
			if c.logger != nil {
				c.logger.Warnf("discarding malformed delayed envelope at %d: %v", ts, err)
			}
			continue
		}
		fresh := &base.Envelope{Class: env.Class, Args: env.Args, ID: env.ID}
		data, err := base.EncodeEnvelope(fresh)
		if err != nil {
			return n, err
		}
		if err := pushEnvelope(ctx, c.rdb, env.Queue, data); err != nil {
			return n, err
		}
		if env.Track {
			if err := writeStatus(ctx, c.rdb, env.ID, base.Waiting, time.Now().Unix()); err != nil {
				return n, err
			}
		}
		n++
	}
	return n, nil
}

// removeDelayed scans every per-timestamp delayed list and removes every
// envelope whose class and id match, wherever it is scheduled.
func removeDelayed(ctx context.Context, rdb *nsredis.Client, class, id string) (int64, error) {
	listNames, err := rdb.Keys(ctx, keys.SchedulePattern())
	if err != nil {
		return 0, newRedisUnavailable(err)
	}
	var removed int64
	for _, key := range listNames {
		items, err := rdb.LRange(ctx, key, 0, -1)
		if err != nil {
			return removed, newRedisUnavailable(err)
		}
		for _, raw := range items {
			env, err := base.DecodeEnvelope([]byte(raw))
			if err != nil || env.Class != class || env.ID != id {
				continue
			}
			n, err := rdb.LRem(ctx, key, 0, raw)
			if err != nil {
				return removed, newRedisUnavailable(err)
			}
			removed += n
		}
	}
	return removed, nil
}

// DelayedPromoter periodically promotes due delayed jobs into their target
// queues. It follows the same single-process, serial model as a Worker and
// should run in its own goroutine (or its own process) alongside the
// worker fleet it feeds.
type DelayedPromoter struct {
	core     *core
	interval time.Duration
}

// NewDelayedPromoter returns a promoter that checks the schedule every
// interval (default 5s if non-positive).
func NewDelayedPromoter(client *Client, interval time.Duration) *DelayedPromoter {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &DelayedPromoter{core: client.core, interval: interval}
}

// Run drives the promoter until ctx is canceled.
func (p *DelayedPromoter) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *DelayedPromoter) runOnce(ctx context.Context) {
	for {
		ts, ok, err := nextDelayedTimestamp(ctx, p.core.rdb, time.Now())
		if err != nil {
			if p.core.logger != nil {
				p.core.logger.Errorf("delayed promoter: %v", err)
			}
			return
		}
		if !ok {
			return
		}
		if _, err := promoteDelayed(ctx, p.core, ts); err != nil {
			if p.core.logger != nil {
				p.core.logger.Errorf("delayed promoter: %v", err)
			}
			return
		}
	}
}
