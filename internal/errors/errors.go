// Package errors defines the typed error taxonomy shared across the
// resque package: every error a component returns carries a Kind so
// callers can branch on errors.As instead of string matching.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an Error by the taxonomy the core distinguishes between.
type Kind int

const (
	Unknown Kind = iota
	// RedisUnavailable is any failure from the Redis client other than a
	// transient LOADING reply, which the namespaced adapter retries itself.
	RedisUnavailable
	// MalformedEnvelope is a decode failure on a popped queue entry.
	MalformedEnvelope
	// JobNotCreatable is a factory failure to resolve or instantiate a class.
	JobNotCreatable
	// DontPerform is cooperative cancellation signaled from beforePerform/setUp.
	DontPerform
	// DirtyExit is a job's executor ending abnormally (non-zero exit, panic).
	DirtyExit
	// JobThrew is any error escaping perform/tearDown.
	JobThrew
	// ConfigError is an invalid producer-supplied argument (e.g. bad timestamp).
	ConfigError
)

func (k Kind) String() string {
	switch k {
	case RedisUnavailable:
		return "RedisUnavailable"
	case MalformedEnvelope:
		return "MalformedEnvelope"
	case JobNotCreatable:
		return "JobNotCreatable"
	case DontPerform:
		return "DontPerform"
	case DirtyExit:
		return "DirtyExit"
	case JobThrew:
		return "JobThrew"
	case ConfigError:
		return "ConfigError"
	default:
		return "Unknown"
	}
}

// Error is a typed, wrappable error. Use E to construct one and Is to test
// for a particular Kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error of the given kind. err may be nil when there is no
// underlying cause to wrap (e.g. ConfigError, DontPerform).
func E(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ErrDontPerform is the sentinel returned by hooks that want to
// cooperatively skip a job without failing it.
var ErrDontPerform = &Error{Kind: DontPerform, Message: "don't perform"}
