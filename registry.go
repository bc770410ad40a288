package resque

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/resquego/resque/internal/base"
	"github.com/resquego/resque/internal/keys"
	"github.com/resquego/resque/internal/nsredis"
)

const timestampFormat = "2006-01-02 15:04:05 -0700"

func registerWorker(ctx context.Context, rdb *nsredis.Client, id string) error {
	if _, err := rdb.SAdd(ctx, keys.Workers(), id); err != nil {
		return newRedisUnavailable(err)
	}
	if err := rdb.Set(ctx, keys.WorkerStarted(id), time.Now().UTC().Format(timestampFormat)); err != nil {
		return newRedisUnavailable(err)
	}
	return nil
}

func unregisterWorker(ctx context.Context, rdb *nsredis.Client, id string) error {
	if err := rdb.SRem(ctx, keys.Workers(), id); err != nil {
		return newRedisUnavailable(err)
	}
	if err := rdb.Del(ctx, keys.Worker(id), keys.WorkerStarted(id)); err != nil {
		return newRedisUnavailable(err)
	}
	if err := clearStat(ctx, rdb, "processed:"+id); err != nil {
		return err
	}
	if err := clearStat(ctx, rdb, "failed:"+id); err != nil {
		return err
	}
	return nil
}

func workingOn(ctx context.Context, rdb *nsredis.Client, id, queue string, payload []byte) error {
	rec := &base.WorkingOn{Queue: queue, RunAt: time.Now().UTC().Format(timestampFormat), Payload: payload}
	data, err := base.EncodeWorkingOn(rec)
	if err != nil {
		return err
	}
	if err := rdb.Set(ctx, keys.Worker(id), string(data)); err != nil {
		return newRedisUnavailable(err)
	}
	return nil
}

func doneWorking(ctx context.Context, rdb *nsredis.Client, id string) error {
	if err := rdb.Del(ctx, keys.Worker(id)); err != nil {
		return newRedisUnavailable(err)
	}
	if err := incrStat(ctx, rdb, "processed", 1); err != nil {
		return err
	}
	if err := incrStat(ctx, rdb, "processed:"+id, 1); err != nil {
		return err
	}
	return nil
}

// currentJob returns the worker's "currently processing" record, or nil
// while idle.
func currentJob(ctx context.Context, rdb *nsredis.Client, id string) (*base.WorkingOn, error) {
	raw, err := rdb.Get(ctx, keys.Worker(id))
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, newRedisUnavailable(err)
	}
	return base.DecodeWorkingOn([]byte(raw))
}

// liveWorkerIDs returns every worker id currently registered.
func liveWorkerIDs(ctx context.Context, rdb *nsredis.Client) ([]string, error) {
	ids, err := rdb.SMembers(ctx, keys.Workers())
	if err != nil {
		return nil, newRedisUnavailable(err)
	}
	return ids, nil
}
