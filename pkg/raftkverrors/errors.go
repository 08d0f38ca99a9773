// Package raftkverrors defines the structured error taxonomy shared by the
// storage, state machine, and service layers so callers can branch on a
// stable Kind instead of matching error strings.
package raftkverrors

import (
	"fmt"

	"github.com/kvcluster/raftkv/pkg/metrics"
)

// Kind classifies the failure so callers (chiefly pkg/service) can map it
// onto a coarse status without inspecting the wrapped cause.
type Kind string

const (
	StorageRead      Kind = "storage_read"
	StorageWrite     Kind = "storage_write"
	ReadLogs         Kind = "read_logs"
	WriteLogs        Kind = "write_logs"
	ReadStateMachine Kind = "read_state_machine"
	WriteSnapshot    Kind = "write_snapshot"
	ReadSnapshot     Kind = "read_snapshot"
	WriteVote        Kind = "write_vote"
	NotLeader        Kind = "not_leader"
	Unavailable      Kind = "unavailable"
	NotFound         Kind = "not_found"
	InvalidArgument  Kind = "invalid_argument"
)

// Subject names the storage area a failure occurred against.
type Subject string

const (
	SubjectLog      Subject = "log"
	SubjectVote     Subject = "vote"
	SubjectStore    Subject = "store"
	SubjectSnapshot Subject = "snapshot"
)

// Verb names the direction of the failed operation.
type Verb string

const (
	VerbRead  Verb = "read"
	VerbWrite Verb = "write"
)

// Error is the structured error returned by the core. It wraps Cause so
// callers that need the underlying detail can still errors.Is/As through
// it, while pkg/service only ever inspects Kind.
type Error struct {
	Kind    Kind
	Subject Subject
	Verb    Verb
	// SnapshotID identifies the snapshot a Snapshot-kind error relates to,
	// for traceability.
	SnapshotID string
	Cause      error
}

func (e *Error) Error() string {
	if e.SnapshotID != "" {
		return fmt.Sprintf("%s %s %s(%s): %v", e.Verb, e.Subject, e.Kind, e.SnapshotID, e.Cause)
	}
	return fmt.Sprintf("%s %s %s: %v", e.Verb, e.Subject, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind/subject/verb wrapping cause and
// counts it into StorageErrorsTotal, as NewSnapshot does; storage and
// Raft failures are built through these two. NotFoundError and
// InvalidArgumentError are not counted.
func New(kind Kind, subject Subject, verb Verb, cause error) *Error {
	metrics.StorageErrorsTotal.WithLabelValues(string(kind)).Inc()
	return &Error{Kind: kind, Subject: subject, Verb: verb, Cause: cause}
}

// NewSnapshot builds a Snapshot-kind Error carrying the snapshot's id for
// traceability.
func NewSnapshot(kind Kind, verb Verb, snapshotID string, cause error) *Error {
	metrics.StorageErrorsTotal.WithLabelValues(string(kind)).Inc()
	return &Error{Kind: kind, Subject: SubjectSnapshot, Verb: verb, SnapshotID: snapshotID, Cause: cause}
}

// NotFoundError returns a NotFound error for a missing key.
func NotFoundError(key string) *Error {
	return &Error{Kind: NotFound, Subject: SubjectStore, Verb: VerbRead, Cause: fmt.Errorf("key not found: %s", key)}
}

// InvalidArgumentError returns an InvalidArgument error with msg as cause.
func InvalidArgumentError(msg string) *Error {
	return &Error{Kind: InvalidArgument, Cause: fmt.Errorf("%s", msg)}
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error, and
// reports ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind, true
	}
	return "", false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
