// Copyright 2020 Kentaro Hibino. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package base defines the wire-level JSON records shared by every Redis
// key in the keyspace (job envelopes, status records, failure records, the
// "currently working on" record) together with their encode/decode helpers,
// so the root package never hand-rolls JSON shapes in more than one place.
package base

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Status is the job status enum persisted at job:<id>:status.
type Status int

const (
	Waiting   Status = 1
	Running   Status = 2
	Failed    Status = 3
	Complete  Status = 4
	Scheduled Status = 63
)

func (s Status) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Running:
		return "running"
	case Failed:
		return "failed"
	case Complete:
		return "complete"
	case Scheduled:
		return "scheduled"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether s is a state a status record never transitions
// out of, and is therefore subject to the TTL on terminal states.
func (s Status) Terminal() bool { return s == Failed || s == Complete }

// GenerateID returns a 32 hex character job id: 16 random bytes rendered
// without separators, matching the original protocol's id shape.
func GenerateID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Envelope is the JSON record pushed onto a queue list. Args carries at
// most one positional argument, left as raw JSON so big-integer arguments
// embedded in job payloads survive a decode/re-encode round trip unchanged.
type Envelope struct {
	Class string          `json:"class"`
	Args  json.RawMessage `json:"args,omitempty"`
	ID    string          `json:"id"`

	// Queue and Track are only populated for envelopes that have passed
	// through the delayed schedule; a plain queued envelope omits them.
	Queue string `json:"queue,omitempty"`
	Track bool   `json:"track,omitempty"`
}

// EncodeEnvelope serializes e.
func EncodeEnvelope(e *Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses a raw queue entry into an Envelope.
func DecodeEnvelope(b []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// StatusRecord is the JSON record at job:<id>:status.
type StatusRecord struct {
	Status  Status `json:"status"`
	Updated int64  `json:"updated"`
	Started int64  `json:"started,omitempty"`
}

func EncodeStatus(s *StatusRecord) ([]byte, error) { return json.Marshal(s) }

func DecodeStatus(b []byte) (*StatusRecord, error) {
	var s StatusRecord
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// FailureRecord is the JSON record at failed:<id>.
type FailureRecord struct {
	FailedAt  string          `json:"failed_at"`
	Payload   json.RawMessage `json:"payload"`
	Exception string          `json:"exception"`
	Error     string          `json:"error"`
	Backtrace []string        `json:"backtrace"`
	Worker    string          `json:"worker"`
	Queue     string          `json:"queue"`
}

func EncodeFailure(f *FailureRecord) ([]byte, error) { return json.Marshal(f) }

func DecodeFailure(b []byte) (*FailureRecord, error) {
	var f FailureRecord
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// WorkingOn is the JSON record written to worker:<id> while a job is being
// processed, and deleted once it completes.
type WorkingOn struct {
	Queue   string          `json:"queue"`
	RunAt   string          `json:"run_at"`
	Payload json.RawMessage `json:"payload"`
}

func EncodeWorkingOn(w *WorkingOn) ([]byte, error) { return json.Marshal(w) }

func DecodeWorkingOn(b []byte) (*WorkingOn, error) {
	var w WorkingOn
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, err
	}
	return &w, nil
}
