// Package keys centralizes Redis key construction for the Resque-compatible
// keyspace. It is kept internal so the literal key formats never become part
// of the public API surface — only the namespace prefix is configurable.
package keys

import (
	"strconv"
	"strings"
)

// DefaultNamespace is the prefix every key is namespaced under when no
// override is supplied, matching the original Resque protocol's default.
const DefaultNamespace = "resque:"

// Normalize appends a trailing colon to ns if it is missing one, so callers
// may pass either "resque" or "resque:".
func Normalize(ns string) string {
	if ns == "" {
		return DefaultNamespace
	}
	if !strings.HasSuffix(ns, ":") {
		return ns + ":"
	}
	return ns
}

// Queues is the set of all known queue names.
func Queues() string { return "queues" }

// Queue is the list holding pending job envelopes for the named queue.
func Queue(name string) string { return "queue:" + name }

// Workers is the set of every live worker id.
func Workers() string { return "workers" }

// Worker is the key holding the JSON of the job a worker is currently
// processing. Absent when the worker is idle.
func Worker(id string) string { return "worker:" + id }

// WorkerStarted is the key holding a worker's human-readable start time.
func WorkerStarted(id string) string { return "worker:" + id + ":started" }

// Stat is an integer counter key.
func Stat(name string) string { return "stat:" + name }

// JobStatus is the key holding a job's status record.
func JobStatus(id string) string { return "job:" + id + ":status" }

// Failed is the key holding a job's failure record.
func Failed(id string) string { return "failed:" + id }

// Schedule is the sorted set of due timestamps for the delayed extension.
func Schedule() string { return "_schdlr_" }

// ScheduleAt is the list of envelopes due at the given timestamp.
func ScheduleAt(ts int64) string { return "_schdlr_:" + strconv.FormatInt(ts, 10) }

// SchedulePattern matches every per-timestamp delayed list, for scans that
// must search across all of them (e.g. removal of a delayed job by identity).
func SchedulePattern() string { return "_schdlr_:*" }

// WorkerLogger is the deprecated legacy logger-config hash; see spec's Open
// Questions — this implementation never reads or writes it.
func WorkerLogger() string { return "workerLogger" }
