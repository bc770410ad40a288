package resque

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/resquego/resque/internal/base"
	"github.com/resquego/resque/internal/keys"
	"github.com/resquego/resque/internal/nsredis"
)

// failureTTL matches the lifetime of a terminal status record.
const failureTTL = 86400 * time.Second

// recordFailure writes the failure record for id and arms its TTL.
func recordFailure(ctx context.Context, rdb *nsredis.Client, id string, payload json.RawMessage, exception, errMsg string, backtrace []string, worker, queue string) error {
	rec := &base.FailureRecord{
		FailedAt:  time.Now().UTC().Format("2006-01-02 15:04:05"),
		Payload:   payload,
		Exception: exception,
		Error:     errMsg,
		Backtrace: backtrace,
		Worker:    worker,
		Queue:     queue,
	}
	data, err := base.EncodeFailure(rec)
	if err != nil {
		return err
	}
	if err := rdb.SetEx(ctx, keys.Failed(id), string(data), failureTTL); err != nil {
		return newRedisUnavailable(err)
	}
	return nil
}

// readFailure returns the failure record for id, or nil if none (was never
// recorded or its TTL has already expired).
func readFailure(ctx context.Context, rdb *nsredis.Client, id string) (*base.FailureRecord, error) {
	raw, err := rdb.Get(ctx, keys.Failed(id))
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, newRedisUnavailable(err)
	}
	rec, err := base.DecodeFailure([]byte(raw))
	if err != nil {
		return nil, newMalformedEnvelope(err)
	}
	return rec, nil
}
