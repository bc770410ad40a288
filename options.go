package resque

import (
	"time"

	"github.com/resquego/resque/internal/log"
)

// enqueueConfig collects the knobs an EnqueueOption may set.
type enqueueConfig struct {
	id    string
	delay time.Duration
	track bool
}

// EnqueueOption configures a single call to Client.Enqueue.
type EnqueueOption func(*enqueueConfig)

// WithID assigns an explicit job id instead of generating a random one. It
// is read by Client.Enqueue without WithDelay only; a job that goes through
// the delayed schedule always gets a generated id.
func WithID(id string) EnqueueOption {
	return func(c *enqueueConfig) { c.id = id }
}

// WithDelay schedules the job through the delayed extension instead of
// pushing it directly onto its queue.
func WithDelay(d time.Duration) EnqueueOption {
	return func(c *enqueueConfig) { c.delay = d }
}

// WithTrackStatus writes and maintains a status record for the job.
func WithTrackStatus() EnqueueOption {
	return func(c *enqueueConfig) { c.track = true }
}

func resolveEnqueueConfig(opts []EnqueueOption) enqueueConfig {
	var c enqueueConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// workerConfig collects the knobs spec.md §6 enumerates for the worker
// core: interval (0 means single-pass), blocking vs polling reserve,
// graceful-shutdown escalation timers, and the reserve-error policy.
type workerConfig struct {
	interval               time.Duration
	blocking               bool
	gracefulDelay          time.Duration
	gracefulSignal         int
	gracefulDelayTwo       time.Duration
	shutdownOnReserveError bool
	hostname               string
	pid                    int
	logger                 *log.Logger
}

func defaultWorkerConfig() workerConfig {
	return workerConfig{
		interval:         5 * time.Second,
		gracefulDelay:    5 * time.Second,
		gracefulDelayTwo: 2 * time.Second,
	}
}

// WorkerOption configures a Worker at construction time.
type WorkerOption func(*workerConfig)

// WithInterval sets the poll interval between empty reserve attempts. An
// interval of 0 puts the worker into single-pass mode: it returns from Run
// as soon as it finds no job, which is how tests drive a worker
// deterministically rather than waiting on wall-clock time.
func WithInterval(d time.Duration) WorkerOption {
	return func(c *workerConfig) { c.interval = d }
}

// WithBlocking selects BLPOP-based reservation instead of polling LPOP.
func WithBlocking(blocking bool) WorkerOption {
	return func(c *workerConfig) { c.blocking = blocking }
}

// WithGracefulDelay sets how long a TERM-shutdown waits before escalating
// to the configured graceful signal (or straight to KILL if none is set).
func WithGracefulDelay(d time.Duration) WorkerOption {
	return func(c *workerConfig) { c.gracefulDelay = d }
}

// WithGracefulSignal sets the secondary signal delivered on the first
// escalation after TERM, before KILL is used on the next one.
func WithGracefulSignal(sig int) WorkerOption {
	return func(c *workerConfig) { c.gracefulSignal = sig }
}

// WithGracefulDelayTwo sets the wait between the graceful signal and the
// final KILL escalation.
func WithGracefulDelayTwo(d time.Duration) WorkerOption {
	return func(c *workerConfig) { c.gracefulDelayTwo = d }
}

// WithShutdownOnReserveError stops the worker's main loop the first time
// reserve returns RedisUnavailable, instead of logging and retrying.
func WithShutdownOnReserveError(shutdown bool) WorkerOption {
	return func(c *workerConfig) { c.shutdownOnReserveError = shutdown }
}

// WithHostname overrides the hostname component of the worker id (default:
// the OS hostname, falling back to "localhost").
func WithHostname(host string) WorkerOption {
	return func(c *workerConfig) { c.hostname = host }
}

// WithPID overrides the pid component of the worker id (default: the
// current process id).
func WithPID(pid int) WorkerOption {
	return func(c *workerConfig) { c.pid = pid }
}

// WithWorkerLogger injects a logger for the worker's own lifecycle
// messages, independent of the Client's logger.
func WithWorkerLogger(l Logger) WorkerOption {
	return func(c *workerConfig) { c.logger = newInternalLogger(l, levelUnspecified) }
}

func resolveWorkerConfig(opts []WorkerOption) workerConfig {
	c := defaultWorkerConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
