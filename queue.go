package resque

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/resquego/resque/internal/base"
	"github.com/resquego/resque/internal/keys"
	"github.com/resquego/resque/internal/log"
	"github.com/resquego/resque/internal/nsredis"
)

// pushEnvelope registers queue in the queues set and appends envelope to
// its list.
func pushEnvelope(ctx context.Context, rdb *nsredis.Client, queue string, envelope []byte) error {
	if _, err := rdb.SAdd(ctx, keys.Queues(), queue); err != nil {
		return newRedisUnavailable(err)
	}
	if err := rdb.RPush(ctx, keys.Queue(queue), string(envelope)); err != nil {
		return newRedisUnavailable(err)
	}
	return nil
}

// popEnvelope implements pop(queue): LPOP, decode, and treat a decode
// failure the same as an empty queue so a single poison message cannot
// wedge the consumer.
func popEnvelope(ctx context.Context, rdb *nsredis.Client, logger *log.Logger, queue string) (*base.Envelope, error) {
	raw, err := rdb.LPop(ctx, keys.Queue(queue))
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, newRedisUnavailable(err)
	}
	env, err := base.DecodeEnvelope([]byte(raw))
	if err != nil {
		if logger != nil {
			logger.Warnf("discarding malformed envelope on queue %q: %v", queue, err)
		}
		return nil, nil
	}
	return env, nil
}

// blpopEnvelope implements blpop(queues, timeout): BLPOP across every
// queue's list key, stripping the "queue:" prefix from the returned key to
// recover the queue name.
func blpopEnvelope(ctx context.Context, rdb *nsredis.Client, logger *log.Logger, queues []string, timeout time.Duration) (string, *base.Envelope, error) {
	listKeys := make([]string, len(queues))
	for i, q := range queues {
		listKeys[i] = keys.Queue(q)
	}
	key, raw, err := rdb.BLPop(ctx, timeout, listKeys...)
	if err == redis.Nil {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, newRedisUnavailable(err)
	}
	queue := stripQueuePrefix(key)
	env, err := base.DecodeEnvelope([]byte(raw))
	if err != nil {
		if logger != nil {
			logger.Warnf("discarding malformed envelope on queue %q: %v", queue, err)
		}
		return queue, nil, nil
	}
	return queue, env, nil
}

func stripQueuePrefix(key string) string {
	const prefix = "queue:"
	if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
		return key[len(prefix):]
	}
	return key
}

// sizeOf implements size(queue): LLEN.
func sizeOf(ctx context.Context, rdb *nsredis.Client, queue string) (int64, error) {
	n, err := rdb.LLen(ctx, keys.Queue(queue))
	if err != nil {
		return 0, newRedisUnavailable(err)
	}
	return n, nil
}

// Predicate matches a decoded envelope during a safe dequeue. Build one
// with ClassPredicate, IDPredicate, or ArgsPredicate.
type Predicate struct {
	class string
	id    string
	hasID bool
	args  map[string]interface{}
}

// ClassPredicate matches any envelope whose class equals name.
func ClassPredicate(class string) Predicate { return Predicate{class: class} }

// IDPredicate matches an envelope whose class and id both equal the given
// values.
func IDPredicate(class, id string) Predicate { return Predicate{class: class, id: id, hasID: true} }

// ArgsPredicate matches an envelope whose class equals class and whose
// first positional argument is a superset of args: every key in args
// appears in the envelope's argument map with an equal value.
func ArgsPredicate(class string, args map[string]interface{}) Predicate {
	return Predicate{class: class, args: args}
}

func (p Predicate) matches(env *base.Envelope) bool {
	if env.Class != p.class {
		return false
	}
	if p.hasID {
		return env.ID == p.id
	}
	if p.args == nil {
		return true
	}
	actual, ok := firstArgMap(env)
	if !ok {
		return false
	}
	for k, v := range p.args {
		av, present := actual[k]
		if !present || !equalJSONValue(av, v) {
			return false
		}
	}
	return true
}

func firstArgMap(env *base.Envelope) (map[string]interface{}, bool) {
	if len(env.Args) == 0 {
		return nil, false
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(env.Args, &arr); err != nil || len(arr) == 0 {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(arr[0]))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, false
	}
	return m, true
}

func equalJSONValue(a, b interface{}) bool {
	ab, err1 := json.Marshal(a)
	bb, err2 := json.Marshal(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return string(ab) == string(bb)
}

func matchesAny(predicates []Predicate, env *base.Envelope) bool {
	for _, p := range predicates {
		if p.matches(env) {
			return true
		}
	}
	return false
}

// dequeueEnvelopes implements dequeue(queue, predicates): the plain path
// (no predicates) drops the whole list; otherwise it runs the safe-dequeue
// algorithm, moving envelopes one at a time through a per-attempt temp list
// so a concurrent reserve on the same queue never observes a torn state.
func dequeueEnvelopes(ctx context.Context, rdb *nsredis.Client, queue string, predicates []Predicate) (int64, error) {
	qkey := keys.Queue(queue)
	if len(predicates) == 0 {
		n, err := rdb.LLen(ctx, qkey)
		if err != nil {
			return 0, newRedisUnavailable(err)
		}
		if err := rdb.Del(ctx, qkey); err != nil {
			return 0, newRedisUnavailable(err)
		}
		return n, nil
	}

	temp := fmt.Sprintf("%s:temp:%d", qkey, time.Now().UnixNano())
	requeue := temp + ":requeue"

	var matched int64
	for {
		val, err := rdb.RPopLPush(ctx, qkey, temp)
		if err == redis.Nil {
			break
		}
		if err != nil {
			return matched, newRedisUnavailable(err)
		}
		env, decErr := base.DecodeEnvelope([]byte(val))
		if decErr == nil && matchesAny(predicates, env) {
			if _, err := rdb.RPop(ctx, temp); err != nil {
				return matched, newRedisUnavailable(err)
			}
			matched++
			continue
		}
		if _, err := rdb.RPopLPush(ctx, temp, requeue); err != nil {
			return matched, newRedisUnavailable(err)
		}
	}
	for {
		_, err := rdb.RPopLPush(ctx, requeue, qkey)
		if err == redis.Nil {
			break
		}
		if err != nil {
			return matched, newRedisUnavailable(err)
		}
	}
	if err := rdb.Del(ctx, temp, requeue); err != nil {
		return matched, newRedisUnavailable(err)
	}
	return matched, nil
}
