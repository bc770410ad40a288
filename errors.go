package resque

import (
	"fmt"

	ierrors "github.com/resquego/resque/internal/errors"
)

// ErrDontPerform signals cooperative cancellation of a single job from
// BeforePerform or SetUp. It is not a failure: stats are left untouched and
// status is not moved to FAILED.
var ErrDontPerform = ierrors.ErrDontPerform

// IsRedisUnavailable reports whether err originated from the Redis client
// (other than a transient LOADING reply, which is retried internally).
func IsRedisUnavailable(err error) bool { return ierrors.Is(err, ierrors.RedisUnavailable) }

// IsMalformedEnvelope reports whether err is a decode failure on a popped
// queue entry.
func IsMalformedEnvelope(err error) bool { return ierrors.Is(err, ierrors.MalformedEnvelope) }

// IsJobNotCreatable reports whether err came from the factory failing to
// resolve or instantiate a job class.
func IsJobNotCreatable(err error) bool { return ierrors.Is(err, ierrors.JobNotCreatable) }

// IsDontPerform reports whether err is (or wraps) ErrDontPerform.
func IsDontPerform(err error) bool { return ierrors.Is(err, ierrors.DontPerform) }

// IsDirtyExit reports whether err represents an executor that ended
// abnormally: a recovered panic or, in the original protocol, a non-zero
// child exit code.
func IsDirtyExit(err error) bool { return ierrors.Is(err, ierrors.DirtyExit) }

// IsJobThrew reports whether err escaped a job's Perform or TearDown.
func IsJobThrew(err error) bool { return ierrors.Is(err, ierrors.JobThrew) }

// IsConfigError reports whether err is a producer-side argument error, such
// as an empty class name or a zero timestamp passed to EnqueueAt.
func IsConfigError(err error) bool { return ierrors.Is(err, ierrors.ConfigError) }

// DirtyExitError carries the detail of an abnormal job termination: either
// a recovered panic value, in this goroutine-based implementation, or (for
// protocol parity with the original fork-based worker) a synthesized
// nonzero exit code.
type DirtyExitError struct {
	Code  int
	Panic interface{}
	Stack []string
}

func (e *DirtyExitError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("job panicked: %v", e.Panic)
	}
	return fmt.Sprintf("job exited with status %d", e.Code)
}

func newDirtyExit(code int, panicVal interface{}, stack []string) error {
	return ierrors.E(ierrors.DirtyExit, &DirtyExitError{Code: code, Panic: panicVal, Stack: stack}, "dirty exit")
}

func newJobThrew(err error) error {
	return ierrors.E(ierrors.JobThrew, err, "job threw")
}

func newJobNotCreatable(class string, cause error) error {
	return ierrors.E(ierrors.JobNotCreatable, cause, "cannot create job %q", class)
}

func newMalformedEnvelope(cause error) error {
	return ierrors.E(ierrors.MalformedEnvelope, cause, "malformed envelope")
}

func newRedisUnavailable(cause error) error {
	return ierrors.E(ierrors.RedisUnavailable, cause, "redis unavailable")
}

func newConfigError(format string, args ...interface{}) error {
	return ierrors.E(ierrors.ConfigError, nil, format, args...)
}
