package resque

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/resquego/resque/internal/base"
	"github.com/resquego/resque/internal/log"
	"github.com/resquego/resque/internal/nsredis"
	"github.com/resquego/resque/internal/proctable"
)

func nsredisFromConn(r RedisConnOpt, namespace string) *nsredis.Client {
	return nsredis.NewFromFactory(newRedisFactory(r), namespace)
}

const (
	workerStateNew int32 = iota
	workerStateRunning
	workerStateStopped
)

// Worker reserves and runs jobs off a resolved queue list, one at a time,
// implementing the main loop. A single goroutine stands in for the single
// OS process the original design forks per worker: job execution happens in
// a goroutine the main loop launches and waits on before its next
// iteration, the same serial relationship §5 describes between a worker's
// parent loop and its forked child (see DESIGN.md's fork→goroutine note).
// Signal-driven lifecycle transitions (§4.5) arrive as calls to Worker's
// own methods — TERM, INT, QUIT, USR1, USR2, CONT, Reconnect — made by
// signals_unix.go/signals_windows.go, rather than as POSIX signals
// delivered to a real child process.
type Worker struct {
	core    *core
	cfg     workerConfig
	pattern []string
	id      string

	state   int32 // workerState*, atomic
	paused  int32 // atomic bool

	titleMu sync.Mutex
	title   string

	jobMu     sync.Mutex
	current   *Job
	cancelJob context.CancelFunc
	abandon   chan struct{}
	escalated bool
	killed    bool
}

// NewWorker builds a Worker for the given queue pattern (a single string or
// a slice of strings). The worker id is
// "<hostname>:<pid>:<comma-joined-pattern>" and is stable for the life of
// the Worker.
func NewWorker(r RedisConnOpt, queues interface{}, opts ...WorkerOption) (*Worker, error) {
	pattern, err := toQueuePattern(queues)
	if err != nil {
		return nil, err
	}
	cfg := resolveWorkerConfig(opts)
	if cfg.hostname == "" {
		cfg.hostname = hostnameOrDefault()
	}
	if cfg.pid == 0 {
		cfg.pid = os.Getpid()
	}
	rdb := nsredisFromConn(r, "")
	id := fmt.Sprintf("%s:%d:%s", cfg.hostname, cfg.pid, strings.Join(pattern, ","))
	return &Worker{
		core:    newCore(rdb, cfg.logger, nil),
		cfg:     cfg,
		pattern: pattern,
		id:      id,
	}, nil
}

// NewWorkerFromClient builds a Worker sharing client's Redis connection,
// logger, and factory — the common case when a producer and its worker
// fleet live in the same process.
func NewWorkerFromClient(client *Client, queues interface{}, opts ...WorkerOption) (*Worker, error) {
	pattern, err := toQueuePattern(queues)
	if err != nil {
		return nil, err
	}
	cfg := resolveWorkerConfig(opts)
	if cfg.hostname == "" {
		cfg.hostname = hostnameOrDefault()
	}
	if cfg.pid == 0 {
		cfg.pid = os.Getpid()
	}
	if cfg.logger != nil {
		client.core.logger = cfg.logger
	}
	id := fmt.Sprintf("%s:%d:%s", cfg.hostname, cfg.pid, strings.Join(pattern, ","))
	return &Worker{core: client.core, cfg: cfg, pattern: pattern, id: id}, nil
}

func toQueuePattern(queues interface{}) ([]string, error) {
	switch q := queues.(type) {
	case string:
		if q == "" {
			return nil, newConfigError("queue pattern must not be empty")
		}
		return []string{q}, nil
	case []string:
		if len(q) == 0 {
			return nil, newConfigError("queue pattern must not be empty")
		}
		return q, nil
	default:
		return nil, newConfigError("unsupported queue pattern type %T", queues)
	}
}

func hostnameOrDefault() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "localhost"
	}
	return h
}

// ID returns this worker's stable "<host>:<pid>:<pattern>" identity.
func (w *Worker) ID() string { return w.id }

// Title reports the worker's current activity, the goroutine model's
// substitute for rewriting argv[0] as the original process-per-worker
// design does; callers that want OS-visible process titles can log or
// export this themselves.
func (w *Worker) Title() string {
	w.titleMu.Lock()
	defer w.titleMu.Unlock()
	return w.title
}

func (w *Worker) setTitle(format string, args ...interface{}) {
	w.titleMu.Lock()
	w.title = fmt.Sprintf(format, args...)
	w.titleMu.Unlock()
}

func (w *Worker) logger() *log.Logger { return w.core.logger }

// Run executes the main loop until Shutdown (or INT/QUIT) ends it, or, in
// single-pass mode (interval == 0), until a reserve attempt finds nothing.
// It registers the worker on entry and unregisters it on every return path.
func (w *Worker) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&w.state, workerStateNew, workerStateRunning) {
		return fmt.Errorf("resque: worker %s already run", w.id)
	}
	w.setTitle("Starting")
	if err := w.core.events.Fire(EventBeforeFirstFork, w); err != nil {
		return err
	}
	if err := registerWorker(ctx, w.core.rdb, w.id); err != nil {
		return err
	}
	defer w.unregister(context.Background())

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if atomic.LoadInt32(&w.state) == workerStateStopped {
			return nil
		}
		if atomic.LoadInt32(&w.paused) == 1 {
			w.setTitle("Paused")
			if w.cfg.interval <= 0 {
				return nil
			}
			sleepOrDone(ctx, w.cfg.interval)
			continue
		}

		job, err := w.reserveNext(ctx)
		if err != nil {
			if w.logger() != nil {
				w.logger().Errorf("reserve failed on %s: %v", strings.Join(w.pattern, ","), err)
			}
			if w.cfg.shutdownOnReserveError {
				return err
			}
			sleepOrDone(ctx, w.cfg.interval)
			continue
		}
		if job == nil {
			if w.cfg.interval <= 0 {
				return nil
			}
			if !w.cfg.blocking {
				w.setTitle("Waiting for %s", strings.Join(w.pattern, ","))
				sleepOrDone(ctx, w.cfg.interval)
			}
			continue
		}

		job.workerID = w.id
		w.runJob(ctx, job)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *Worker) reserveNext(ctx context.Context) (*Job, error) {
	resolved, err := resolveQueues(ctx, w.core.rdb, w.pattern)
	if err != nil {
		return nil, err
	}
	if w.cfg.blocking {
		w.setTitle("Blocking on %s", strings.Join(resolved, ","))
		return reserveJobBlocking(ctx, w.core, resolved, w.cfg.interval)
	}
	for _, q := range resolved {
		job, err := reserveJob(ctx, w.core, q)
		if err != nil {
			return nil, err
		}
		if job != nil {
			return job, nil
		}
	}
	return nil, nil
}

// runJob records the working-on state, launches the job, and waits for it
// to finish (or for a shutdown escalation to abandon it), exactly as the
// main loop's "fork, then waitpid" step does in the original design.
func (w *Worker) runJob(parent context.Context, job *Job) {
	if err := w.core.events.Fire(EventBeforeFork, job); err != nil {
		if w.logger() != nil {
			w.logger().Errorf("beforeFork hook rejected job %s: %v", job.ID, err)
		}
		return
	}
	if err := job.UpdateStatus(context.Background(), base.Running); err != nil && w.logger() != nil {
		w.logger().Errorf("failed to mark job %s running: %v", job.ID, err)
	}
	if err := workingOn(context.Background(), w.core.rdb, w.id, job.Queue, jobPayload(job)); err != nil && w.logger() != nil {
		w.logger().Errorf("failed to record working-on state: %v", err)
	}

	jobCtx, cancel := context.WithCancel(parent)
	abandon := make(chan struct{})
	w.jobMu.Lock()
	w.current = job
	w.cancelJob = cancel
	w.abandon = abandon
	w.escalated = false
	w.killed = false
	w.jobMu.Unlock()

	w.setTitle("Processing ID:%s in %s", job.ID, job.Queue)
	done := make(chan struct{})
	go func() {
		defer close(done)
		job.Run(jobCtx)
	}()

	abandoned := false
	select {
	case <-done:
	case <-abandon:
		// Kill escalated past cooperative cancellation: stop supervising
		// this job rather than block indefinitely — Go has no mechanism
		// to forcibly terminate a goroutine, so the job may still finish
		// in the background after we move on.
		abandoned = true
	}
	cancel()

	w.jobMu.Lock()
	w.current = nil
	w.cancelJob = nil
	w.abandon = nil
	w.jobMu.Unlock()

	if abandoned {
		if err := job.Fail(context.Background(), newDirtyExit(-1, nil, nil)); err != nil && w.logger() != nil {
			w.logger().Errorf("failed to record dirty exit for job %s: %v", job.ID, err)
		}
	}

	if err := doneWorking(context.Background(), w.core.rdb, w.id); err != nil && w.logger() != nil {
		w.logger().Errorf("failed to clear working-on state: %v", err)
	}
}

func jobPayload(job *Job) []byte {
	data, err := base.EncodeEnvelope(&base.Envelope{Class: job.Class, Args: job.Args, ID: job.ID})
	if err != nil {
		return nil
	}
	return data
}

// unregister implements the shutdown path: fail any in-flight job with
// DirtyExit, then remove every registry trace of this worker.
func (w *Worker) unregister(ctx context.Context) {
	w.jobMu.Lock()
	job := w.current
	w.current = nil
	w.jobMu.Unlock()
	if job != nil {
		if err := job.Fail(ctx, newDirtyExit(-1, nil, nil)); err != nil && w.logger() != nil {
			w.logger().Errorf("failed to record dirty exit during shutdown for job %s: %v", job.ID, err)
		}
	}
	if err := unregisterWorker(ctx, w.core.rdb, w.id); err != nil && w.logger() != nil {
		w.logger().Errorf("failed to unregister worker %s: %v", w.id, err)
	}
}

// Shutdown implements QUIT: stop after the current job finishes, without
// touching it.
func (w *Worker) Shutdown() {
	atomic.StoreInt32(&w.state, workerStateStopped)
}

// Terminate implements TERM: stop after the current job, and arm the
// graceful escalation timer (gracefulDelay, then gracefulSignal if one is
// configured, then KILL) against whatever job is currently in flight.
func (w *Worker) Terminate() {
	atomic.StoreInt32(&w.state, workerStateStopped)
	w.jobMu.Lock()
	hasJob := w.current != nil
	w.jobMu.Unlock()
	if !hasJob {
		return
	}
	time.AfterFunc(w.cfg.gracefulDelay, w.Escalate)
}

// Interrupt implements INT: stop immediately and abandon any in-flight job
// right away, without waiting for the graceful delay.
func (w *Worker) Interrupt() {
	atomic.StoreInt32(&w.state, workerStateStopped)
	w.Kill()
}

// Escalate implements the ALRM/USR1 escalation step: on the first call
// after Terminate, if a graceful signal is configured, request cooperative
// cancellation of the job's context and arm a second, shorter timer before
// escalating to Kill; otherwise (or on the second call) it abandons the job
// outright. There is no child pid to re-check against the process table in
// this design — the in-flight job pointer is the liveness check.
func (w *Worker) Escalate() {
	w.jobMu.Lock()
	job := w.current
	cancel := w.cancelJob
	already := w.escalated
	w.jobMu.Unlock()
	if job == nil {
		return
	}
	if !already && w.cfg.gracefulSignal != 0 {
		w.jobMu.Lock()
		w.escalated = true
		w.jobMu.Unlock()
		if cancel != nil {
			cancel()
		}
		time.AfterFunc(w.cfg.gracefulDelayTwo, w.Kill)
		return
	}
	w.Kill()
}

// Kill abandons whatever job is currently running: its context is canceled
// and runJob stops waiting on it immediately, recording a DirtyExit.
func (w *Worker) Kill() {
	w.jobMu.Lock()
	cancel := w.cancelJob
	abandon := w.abandon
	already := w.killed
	w.killed = true
	w.jobMu.Unlock()
	if cancel != nil {
		cancel()
	}
	if !already && abandon != nil {
		close(abandon)
	}
}

// Pause implements USR2: stop reserving new jobs without exiting the loop.
func (w *Worker) Pause() { atomic.StoreInt32(&w.paused, 1) }

// Resume implements CONT: clear a pause set by Pause.
func (w *Worker) Resume() { atomic.StoreInt32(&w.paused, 0) }

// Reconnect implements PIPE: tear down and rebuild the Redis connection.
func (w *Worker) Reconnect() error { return w.core.rdb.Reconnect() }

// processTableForHost is the default liveness source the pruner consults;
// kept as a package-level var so tests can replace it, mirroring
// proctable's own platform split.
var processTableForHost processTable = proctable.New()

// PruneWorkers runs one pass of the dead-worker GC (§4.6): any worker
// registered under this host whose pid is absent from the process table,
// and who is not this process, is unregistered.
func (w *Worker) PruneWorkers(ctx context.Context) error {
	return pruneWorkers(ctx, w.core.rdb, processTableForHost, w.cfg.hostname, w.cfg.pid)
}

