package resque

import "sync"

// EventName identifies a point in the job lifecycle that hooks can
// subscribe to.
type EventName string

const (
	// EventBeforeFirstFork fires once, when a Worker starts up, before its
	// first reservation attempt.
	EventBeforeFirstFork EventName = "beforeFirstFork"
	// EventBeforeFork fires once per job, right before it starts running.
	EventBeforeFork EventName = "beforeFork"
	// EventBeforePerform fires inside Perform, before the job's own
	// Perform method runs. Returning ErrDontPerform skips the job.
	EventBeforePerform EventName = "beforePerform"
	// EventAfterPerform fires inside Perform, after a successful run.
	EventAfterPerform EventName = "afterPerform"
	// EventOnFailure fires when a job fails, before the failure record is
	// written.
	EventOnFailure EventName = "onFailure"
)

// HookFunc is a single event subscriber. Returning ErrDontPerform from a
// beforePerform hook cooperatively skips the job without failing it.
type HookFunc func(args ...interface{}) error

// eventBus is a process-local, synchronous, named broadcast point. It is
// not backed by Redis: subscriptions exist only for the lifetime of the
// Worker or Client that owns them.
type eventBus struct {
	mu       sync.Mutex
	handlers map[EventName][]HookFunc
}

func newEventBus() *eventBus {
	return &eventBus{handlers: make(map[EventName][]HookFunc)}
}

// On registers fn to run, in registration order, whenever name fires.
// Handlers run synchronously on the calling goroutine: a handler must
// never hand off to another goroutine, since it may be running inside the
// same goroutine that is about to execute the job itself.
func (b *eventBus) On(name EventName, fn HookFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], fn)
}

// Fire runs every handler registered for name in order, stopping at (and
// returning) the first error.
func (b *eventBus) Fire(name EventName, args ...interface{}) error {
	b.mu.Lock()
	hs := make([]HookFunc, len(b.handlers[name]))
	copy(hs, b.handlers[name])
	b.mu.Unlock()
	for _, h := range hs {
		if err := h(args...); err != nil {
			return err
		}
	}
	return nil
}
