package resque

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
	"github.com/resquego/resque/internal/keys"
	"github.com/resquego/resque/internal/nsredis"
)

func incrStat(ctx context.Context, rdb *nsredis.Client, name string, delta int64) error {
	if _, err := rdb.IncrBy(ctx, keys.Stat(name), delta); err != nil {
		return newRedisUnavailable(err)
	}
	return nil
}

func decrStat(ctx context.Context, rdb *nsredis.Client, name string, delta int64) error {
	if _, err := rdb.DecrBy(ctx, keys.Stat(name), delta); err != nil {
		return newRedisUnavailable(err)
	}
	return nil
}

func statValue(ctx context.Context, rdb *nsredis.Client, name string) (int64, error) {
	raw, err := rdb.Get(ctx, keys.Stat(name))
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, newRedisUnavailable(err)
	}
	n, err := cast.ToInt64E(raw)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func clearStat(ctx context.Context, rdb *nsredis.Client, name string) error {
	if err := rdb.Del(ctx, keys.Stat(name)); err != nil {
		return newRedisUnavailable(err)
	}
	return nil
}

// Stats reads the integer counters the worker lifecycle maintains.
type Stats struct {
	core *core
}

// Get returns the current value of the named counter (e.g. "processed",
// "failed", "processed:<worker-id>").
func (s *Stats) Get(ctx context.Context, name string) (int64, error) {
	return statValue(ctx, s.core.rdb, name)
}

// Snapshot is a point-in-time summary of global stats and every known
// queue's depth, useful for a health or monitoring endpoint. It is
// informational only: it never changes the keyspace.
type Snapshot struct {
	Processed int64
	Failed    int64
	Queues    map[string]int64
}

// Snapshot gathers processed, failed, and per-queue sizes in one pass.
func (s *Stats) Snapshot(ctx context.Context) (*Snapshot, error) {
	processed, err := statValue(ctx, s.core.rdb, "processed")
	if err != nil {
		return nil, err
	}
	failed, err := statValue(ctx, s.core.rdb, "failed")
	if err != nil {
		return nil, err
	}
	qnames, err := s.core.rdb.SMembers(ctx, keys.Queues())
	if err != nil {
		return nil, newRedisUnavailable(err)
	}
	sizes := make(map[string]int64, len(qnames))
	for _, q := range qnames {
		n, err := sizeOf(ctx, s.core.rdb, q)
		if err != nil {
			return nil, err
		}
		sizes[q] = n
	}
	return &Snapshot{Processed: processed, Failed: failed, Queues: sizes}, nil
}
