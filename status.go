package resque

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/resquego/resque/internal/base"
	"github.com/resquego/resque/internal/keys"
	"github.com/resquego/resque/internal/nsredis"
)

// statusTTL is how long a status record survives once it reaches a
// terminal state (FAILED or COMPLETE).
const statusTTL = 86400 * time.Second

func readStatus(ctx context.Context, rdb *nsredis.Client, id string) (*base.StatusRecord, error) {
	raw, err := rdb.Get(ctx, keys.JobStatus(id))
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, newRedisUnavailable(err)
	}
	rec, err := base.DecodeStatus([]byte(raw))
	if err != nil {
		return nil, newMalformedEnvelope(err)
	}
	return rec, nil
}

// writeStatus writes a fresh status record. started should be the job's
// creation time, and is only ever set once; callers that are transitioning
// an existing record use transitionStatus instead so "started" survives.
func writeStatus(ctx context.Context, rdb *nsredis.Client, id string, status base.Status, started int64) error {
	rec := &base.StatusRecord{Status: status, Updated: time.Now().Unix(), Started: started}
	data, err := base.EncodeStatus(rec)
	if err != nil {
		return err
	}
	if err := rdb.Set(ctx, keys.JobStatus(id), string(data)); err != nil {
		return newRedisUnavailable(err)
	}
	if status.Terminal() {
		if err := rdb.Expire(ctx, keys.JobStatus(id), statusTTL); err != nil {
			return newRedisUnavailable(err)
		}
	}
	return nil
}

// transitionStatus moves an existing status record to status, preserving
// its original "started" timestamp (spec: started is set only at creation).
// If no record exists yet, tracking is considered off and this is a no-op.
func transitionStatus(ctx context.Context, rdb *nsredis.Client, id string, status base.Status) error {
	existing, err := readStatus(ctx, rdb, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	return writeStatus(ctx, rdb, id, status, existing.Started)
}

func deleteStatus(ctx context.Context, rdb *nsredis.Client, id string) error {
	if err := rdb.Del(ctx, keys.JobStatus(id)); err != nil {
		return newRedisUnavailable(err)
	}
	return nil
}

// StatusInfo is the public view of a job's status record.
type StatusInfo struct {
	Status  base.Status
	Updated time.Time
	Started time.Time
}

func toStatusInfo(rec *base.StatusRecord) *StatusInfo {
	info := &StatusInfo{Status: rec.Status, Updated: time.Unix(rec.Updated, 0)}
	if rec.Started > 0 {
		info.Started = time.Unix(rec.Started, 0)
	}
	return info
}
