package resque

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/resquego/resque/internal/base"
)

// Outcome is the result of running a job to completion, modeling the
// Ran | Skipped | Failed(error) variant the design favors over letting
// cooperative cancellation travel as an exception.
type Outcome int

const (
	Ran Outcome = iota
	Skipped
)

// Job is the envelope carrying a queue, id, class, and arguments, wrapped
// with the context (Redis handle, logger, event bus, factory) needed to
// perform and report on it. Producers only get the new job's id back from
// Client.Enqueue; workers get a Job back when they reserve one.
type Job struct {
	Queue string
	Class string
	ID    string
	// Args holds the raw "args" JSON array (zero or one elements), exactly
	// as it appears in the envelope.
	Args json.RawMessage

	c        *core
	workerID string
}

// createJob builds a fresh envelope, pushes it, and — if track is set —
// writes an initial WAITING status record. args may be nil for a job that
// takes no argument. If id is empty one is generated.
func createJob(ctx context.Context, c *core, queue, class string, args interface{}, track bool, id string) (string, error) {
	if class == "" {
		return "", newConfigError("class name must not be empty")
	}
	if queue == "" {
		return "", newConfigError("queue name must not be empty")
	}
	if id == "" {
		id = base.GenerateID()
	}
	argsJSON, err := encodeArgsArray(args)
	if err != nil {
		return "", newConfigError("cannot encode job arguments: %v", err)
	}
	env := &base.Envelope{Class: class, Args: argsJSON, ID: id}
	data, err := base.EncodeEnvelope(env)
	if err != nil {
		return "", err
	}
	if err := pushEnvelope(ctx, c.rdb, queue, data); err != nil {
		return "", err
	}
	if track {
		if err := writeStatus(ctx, c.rdb, id, base.Waiting, time.Now().Unix()); err != nil {
			return "", err
		}
	}
	return id, nil
}

// encodeArgsArray renders args as the single-element (or empty) JSON array
// the envelope's "args" field carries. A nil args yields nil (the field is
// omitted entirely, matching "args" being absent for a no-argument job).
func encodeArgsArray(args interface{}) (json.RawMessage, error) {
	if args == nil {
		return nil, nil
	}
	return json.Marshal([]interface{}{args})
}

// reserveJob implements reserve(queue): pop and wrap, or (nil, nil) when
// the queue is empty.
func reserveJob(ctx context.Context, c *core, queue string) (*Job, error) {
	env, err := popEnvelope(ctx, c.rdb, c.logger, queue)
	if err != nil {
		return nil, err
	}
	if env == nil {
		return nil, nil
	}
	return &Job{Queue: queue, Class: env.Class, ID: env.ID, Args: env.Args, c: c}, nil
}

// reserveJobBlocking implements reserveBlocking(queues, timeout).
func reserveJobBlocking(ctx context.Context, c *core, queues []string, timeout time.Duration) (*Job, error) {
	queue, env, err := blpopEnvelope(ctx, c.rdb, c.logger, queues, timeout)
	if err != nil {
		return nil, err
	}
	if env == nil {
		return nil, nil
	}
	return &Job{Queue: queue, Class: env.Class, ID: env.ID, Args: env.Args, c: c}, nil
}

// Arguments returns the job's single positional argument, or an empty
// slice if the envelope carries none. Numbers decode as json.Number
// rather than float64, so integers beyond 53-bit precision round-trip
// exactly.
func (j *Job) Arguments() (interface{}, error) {
	if len(j.Args) == 0 {
		return []interface{}{}, nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(j.Args, &arr); err != nil {
		return nil, newMalformedEnvelope(err)
	}
	if len(arr) == 0 {
		return []interface{}{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(arr[0]))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, newMalformedEnvelope(err)
	}
	return v, nil
}

// UpdateStatus transitions the job's status record, if it has an id and a
// record already exists (untracked jobs are a silent no-op).
func (j *Job) UpdateStatus(ctx context.Context, status base.Status) error {
	if j.ID == "" {
		return nil
	}
	return transitionStatus(ctx, j.c.rdb, j.ID, status)
}

// Recreate reads the job's current tracking state, pushes a fresh envelope
// with the same class and args under a new id, and copies the tracking
// flag onto the new job. It returns the new id.
func (j *Job) Recreate(ctx context.Context) (string, error) {
	existing, err := readStatus(ctx, j.c.rdb, j.ID)
	if err != nil {
		return "", err
	}
	var args interface{}
	if len(j.Args) > 0 {
		if v, err := j.Arguments(); err == nil {
			if _, empty := v.([]interface{}); !empty {
				args = v
			}
		}
	}
	return createJob(ctx, j.c, j.Queue, j.Class, args, existing != nil, "")
}

// Perform acquires a Runnable from the factory and walks it through the
// beforePerform/setUp/perform/tearDown/afterPerform sequence. A
// cooperative skip from beforePerform or SetUp yields Skipped, nil rather
// than an error. An error from the Runnable's Perform or TearDown is
// wrapped as JobThrew; any other failure is returned as is. Either way the
// caller (Run) routes it to Fail.
func (j *Job) Perform(ctx context.Context) (Outcome, error) {
	runnable, err := j.c.factory.Create(j)
	if err != nil {
		return 0, err
	}
	if err := j.c.events.Fire(EventBeforePerform, j); err != nil {
		if IsDontPerform(err) {
			return Skipped, nil
		}
		return 0, err
	}
	if su, ok := runnable.(Setupable); ok {
		if err := su.SetUp(ctx); err != nil {
			if IsDontPerform(err) {
				return Skipped, nil
			}
			return 0, err
		}
	}
	if err := runnable.Perform(ctx); err != nil {
		return 0, newJobThrew(err)
	}
	if td, ok := runnable.(Teardownable); ok {
		if err := td.TearDown(ctx); err != nil {
			return 0, newJobThrew(err)
		}
	}
	if err := j.c.events.Fire(EventAfterPerform, j); err != nil {
		return 0, err
	}
	return Ran, nil
}

// Run performs the job to completion and never lets an error or panic
// escape: a panic is treated the same way the original fork-based worker
// treated a nonzero child exit status, as a DirtyExit failure. On success
// it moves the status record to COMPLETE and logs at info.
func (j *Job) Run(ctx context.Context) {
	start := time.Now()
	outcome, err := j.safePerform(ctx)
	switch {
	case err != nil:
		if ferr := j.Fail(ctx, err); ferr != nil && j.c.logger != nil {
			j.c.logger.Errorf("failed to record failure for job %s: %v", j.ID, ferr)
		}
	case outcome == Skipped:
		// DontPerform: not a failure, no status change, no stats.
	default:
		if err := j.UpdateStatus(ctx, base.Complete); err != nil && j.c.logger != nil {
			j.c.logger.Errorf("failed to update status for job %s: %v", j.ID, err)
		}
		if j.c.logger != nil {
			j.c.logger.Infof("job %s class %s completed in %s", j.ID, j.Class, time.Since(start))
		}
	}
}

func (j *Job) safePerform(ctx context.Context) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newDirtyExit(0, r, stackLines())
		}
	}()
	return j.Perform(ctx)
}

func stackLines() []string {
	return strings.Split(strings.TrimSpace(string(debug.Stack())), "\n")
}

// Fail fires the onFailure hook, marks the job's status FAILED, writes a
// failure record, and increments the failed counters.
func (j *Job) Fail(ctx context.Context, cause error) error {
	_ = j.c.events.Fire(EventOnFailure, cause, j)
	if err := j.UpdateStatus(ctx, base.Failed); err != nil {
		return err
	}
	payload, err := json.Marshal(struct {
		Class string          `json:"class"`
		Args  json.RawMessage `json:"args,omitempty"`
		ID    string          `json:"id"`
	}{j.Class, j.Args, j.ID})
	if err != nil {
		return err
	}
	exception, message, backtrace := classifyFailure(cause)
	if err := recordFailure(ctx, j.c.rdb, j.ID, payload, exception, message, backtrace, j.workerID, j.Queue); err != nil {
		return err
	}
	if err := incrStat(ctx, j.c.rdb, "failed", 1); err != nil {
		return err
	}
	if j.workerID != "" {
		if err := incrStat(ctx, j.c.rdb, "failed:"+j.workerID, 1); err != nil {
			return err
		}
	}
	return nil
}

func classifyFailure(err error) (exception, message string, backtrace []string) {
	var de *DirtyExitError
	if errors.As(err, &de) {
		if de.Panic != nil {
			return "DirtyExit", fmt.Sprintf("job panicked: %v", de.Panic), de.Stack
		}
		return "DirtyExit", fmt.Sprintf("child exited with status %d", de.Code), []string{fmt.Sprintf("exit status %d", de.Code)}
	}
	cause := error(err)
	for {
		u := errors.Unwrap(cause)
		if u == nil {
			break
		}
		cause = u
	}
	msg := err.Error()
	return fmt.Sprintf("%T", cause), msg, []string{msg}
}
