package resque

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/resquego/resque/internal/base"
	"github.com/resquego/resque/internal/log"
	"github.com/resquego/resque/internal/nsredis"
)

// RedisConnOpt is implemented by connection option types accepted by
// NewClient and NewWorker, mirroring the teacher's MakeRedisClient
// convention so either constructor can accept a single-node, cluster, or
// caller-supplied client without caring which.
type RedisConnOpt interface {
	MakeRedisClient() interface{}
}

// RedisClientOpt is the option struct for a single-node Redis connection.
type RedisClientOpt struct {
	Addr     string
	Username string
	Password string
	DB       int
}

func (o RedisClientOpt) MakeRedisClient() interface{} {
	return redis.NewClient(&redis.Options{
		Addr:     o.Addr,
		Username: o.Username,
		Password: o.Password,
		DB:       o.DB,
	})
}

// RedisClusterClientOpt is the option struct for a Redis Cluster connection.
type RedisClusterClientOpt struct {
	Addrs    []string
	Password string
}

func (o RedisClusterClientOpt) MakeRedisClient() interface{} {
	return redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:    o.Addrs,
		Password: o.Password,
	})
}

// RedisClientFactoryOpt wraps a caller-supplied factory. The factory is
// invoked again every time the PIPE signal handler (§4.5) reconnects, so it
// must be safe to call more than once.
type RedisClientFactoryOpt func() redis.UniversalClient

func (f RedisClientFactoryOpt) MakeRedisClient() interface{} { return f() }

func newRedisFactory(r RedisConnOpt) func() redis.UniversalClient {
	return func() redis.UniversalClient {
		c, ok := r.MakeRedisClient().(redis.UniversalClient)
		if !ok {
			panic(fmt.Sprintf("resque: unsupported RedisConnOpt type %T", r))
		}
		return c
	}
}

// clientConfig collects the knobs a ClientOption may set.
type clientConfig struct {
	namespace string
	logger    *log.Logger
	factory   Factory
}

// ClientOption configures a Client at construction time.
type ClientOption func(*clientConfig)

// WithNamespace overrides the default "resque:" key prefix.
func WithNamespace(ns string) ClientOption {
	return func(c *clientConfig) { c.namespace = ns }
}

// WithClientLogger injects a logger for the Client's own diagnostics (e.g.
// malformed delayed envelopes discarded by a DelayedPromoter built from
// this Client).
func WithClientLogger(l Logger) ClientOption {
	return func(c *clientConfig) { c.logger = newInternalLogger(l, levelUnspecified) }
}

// WithClientFactory overrides the default legacy job factory, e.g. with a
// RegistrationFactory when Recreate needs to resolve classes explicitly
// rather than by reflection.
func WithClientFactory(f Factory) ClientOption {
	return func(c *clientConfig) { c.factory = f }
}

// Client is the producer-facing handle: push jobs onto queues, schedule
// delayed jobs, and inspect status, failure, and stats records.
type Client struct {
	core *core
}

// NewClient returns a Client backed by the given Redis connection.
func NewClient(r RedisConnOpt, opts ...ClientOption) *Client {
	var cfg clientConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	rdb := nsredis.NewFromFactory(newRedisFactory(r), cfg.namespace)
	return &Client{core: newCore(rdb, cfg.logger, cfg.factory)}
}

// Close releases the underlying Redis connection.
func (c *Client) Close() error { return c.core.rdb.Close() }

// EnqueueInfo reports where and under what id a job landed.
type EnqueueInfo struct {
	ID    string
	Queue string
}

// Enqueue pushes a job onto queue, or schedules it through the delayed
// extension instead if WithDelay was supplied.
func (c *Client) Enqueue(ctx context.Context, queue, class string, args interface{}, opts ...EnqueueOption) (*EnqueueInfo, error) {
	cfg := resolveEnqueueConfig(opts)
	if cfg.delay > 0 {
		id, err := enqueueAtCore(ctx, c.core, time.Now().Add(cfg.delay), queue, class, args, cfg.track)
		if err != nil {
			return nil, err
		}
		return &EnqueueInfo{ID: id, Queue: queue}, nil
	}
	id, err := createJob(ctx, c.core, queue, class, args, cfg.track, cfg.id)
	if err != nil {
		return nil, err
	}
	return &EnqueueInfo{ID: id, Queue: queue}, nil
}

// EnqueueAt schedules a job to be promoted onto queue no earlier than at.
func (c *Client) EnqueueAt(ctx context.Context, at time.Time, queue, class string, args interface{}, opts ...EnqueueOption) (*EnqueueInfo, error) {
	cfg := resolveEnqueueConfig(opts)
	id, err := enqueueAtCore(ctx, c.core, at, queue, class, args, cfg.track)
	if err != nil {
		return nil, err
	}
	return &EnqueueInfo{ID: id, Queue: queue}, nil
}

// EnqueueIn is sugar for EnqueueAt(time.Now().Add(d), ...).
func (c *Client) EnqueueIn(ctx context.Context, d time.Duration, queue, class string, args interface{}, opts ...EnqueueOption) (*EnqueueInfo, error) {
	return c.EnqueueAt(ctx, time.Now().Add(d), queue, class, args, opts...)
}

// RemoveDelayed cancels a scheduled job by identity, wherever in the
// schedule it is sitting.
func (c *Client) RemoveDelayed(ctx context.Context, class, id string) (int64, error) {
	return removeDelayed(ctx, c.core.rdb, class, id)
}

// Dequeue removes every envelope on queue matching any of the given
// predicates, returning the number removed. With no predicates it drops the
// whole queue.
func (c *Client) Dequeue(ctx context.Context, queue string, predicates ...Predicate) (int64, error) {
	return dequeueEnvelopes(ctx, c.core.rdb, queue, predicates)
}

// Size returns the number of pending envelopes on queue.
func (c *Client) Size(ctx context.Context, queue string) (int64, error) {
	return sizeOf(ctx, c.core.rdb, queue)
}

// JobStatus returns the status record for id, or nil if none exists (never
// tracked, expired, or its terminal TTL already passed).
func (c *Client) JobStatus(ctx context.Context, id string) (*StatusInfo, error) {
	rec, err := readStatus(ctx, c.core.rdb, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return toStatusInfo(rec), nil
}

// FailureRecord returns the failure record for id, or nil if the job never
// failed or its record has expired.
func (c *Client) FailureRecord(ctx context.Context, id string) (*base.FailureRecord, error) {
	return readFailure(ctx, c.core.rdb, id)
}

// Stats returns the accessor for global and per-worker counters.
func (c *Client) Stats() *Stats {
	return &Stats{core: c.core}
}

// Ping checks connectivity to the underlying Redis server.
func (c *Client) Ping(ctx context.Context) error {
	return c.core.rdb.Ping(ctx)
}
