package resque

import (
	"context"
	"fmt"
	"sync"
)

// Runnable is what a Factory hands back for a reserved job.
type Runnable interface {
	Perform(ctx context.Context) error
}

// Setupable is an optional capability a Runnable may implement: SetUp runs
// before Perform and may return ErrDontPerform to cooperatively skip.
type Setupable interface {
	SetUp(ctx context.Context) error
}

// Teardownable is an optional capability a Runnable may implement:
// TearDown runs after a successful Perform.
type Teardownable interface {
	TearDown(ctx context.Context) error
}

// Factory maps a reserved Job to something that can run it. Given a
// descriptor, return an object exposing at least Perform (and optionally
// SetUp, TearDown).
type Factory interface {
	Create(j *Job) (Runnable, error)
}

// LegacyJobFields is embedded by legacy job structs to receive the
// queue/args/id context the original factory attached onto a freshly
// instantiated class.
type LegacyJobFields struct {
	Queue string
	Args  []byte
	ID    string
}

func (f *LegacyJobFields) bind(j *Job) {
	f.Queue = j.Queue
	f.Args = j.Args
	f.ID = j.ID
}

type legacyBinder interface {
	bind(j *Job)
}

var legacyRegistry = struct {
	mu    sync.Mutex
	ctors map[string]func() Runnable
}{ctors: make(map[string]func() Runnable)}

// RegisterLegacyJob adds class to the process-wide legacy registry the
// default Factory resolves against. Call it from an init func the way the
// original discovered job classes by name at startup.
func RegisterLegacyJob(class string, ctor func() Runnable) {
	legacyRegistry.mu.Lock()
	defer legacyRegistry.mu.Unlock()
	legacyRegistry.ctors[class] = ctor
}

// LegacyFactory is the default Factory: it resolves a job class by name
// against the process-wide registry RegisterLegacyJob populates, and binds
// the job's queue/args/id fields onto the instantiated Runnable if it
// embeds LegacyJobFields.
type LegacyFactory struct{}

// NewLegacyFactory returns a Factory backed by the legacy registry.
func NewLegacyFactory() *LegacyFactory { return &LegacyFactory{} }

func (f *LegacyFactory) Create(j *Job) (Runnable, error) {
	legacyRegistry.mu.Lock()
	ctor, ok := legacyRegistry.ctors[j.Class]
	legacyRegistry.mu.Unlock()
	if !ok {
		return nil, newJobNotCreatable(j.Class, fmt.Errorf("no job class registered with that name"))
	}
	instance := ctor()
	if b, ok := instance.(legacyBinder); ok {
		b.bind(j)
	}
	return instance, nil
}

// JobFunc is the modern registration-table handler shape: a plain
// function given the reserved Job.
type JobFunc func(ctx context.Context, job *Job) error

type funcRunnable struct {
	fn  JobFunc
	job *Job
}

func (r *funcRunnable) Perform(ctx context.Context) error { return r.fn(ctx, r.job) }

// RegistrationFactory is the modern creator: an explicit class name to
// handler-function table, matching the Register(name, fn) idiom used by
// the Go ports of this protocol, as an alternative to the legacy registry.
type RegistrationFactory struct {
	mu    sync.Mutex
	funcs map[string]JobFunc
}

// NewRegistrationFactory returns an empty RegistrationFactory.
func NewRegistrationFactory() *RegistrationFactory {
	return &RegistrationFactory{funcs: make(map[string]JobFunc)}
}

// Register binds class to fn. Registering the same class twice replaces
// the previous handler.
func (f *RegistrationFactory) Register(class string, fn JobFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.funcs[class] = fn
}

func (f *RegistrationFactory) Create(j *Job) (Runnable, error) {
	f.mu.Lock()
	fn, ok := f.funcs[j.Class]
	f.mu.Unlock()
	if !ok {
		return nil, newJobNotCreatable(j.Class, fmt.Errorf("no handler registered with that name"))
	}
	return &funcRunnable{fn: fn, job: j}, nil
}
