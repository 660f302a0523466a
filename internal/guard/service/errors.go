package service

import (
	"errors"
	"fmt"
	"strings"
)

// Precondition violations: rejected before any mutation, recoverable by the
// caller.
var (
	ErrRequestNotFound   = errors.New("clear request not found")
	ErrNotPending        = errors.New("clear request is no longer pending")
	ErrNotInitiator      = errors.New("only the initiating principal may act on this request")
	ErrAwaitingInitiator = errors.New("initiator confirmation sequence is not complete")
	ErrSequenceComplete  = errors.New("confirmation sequence already complete")
	ErrConcurrentUpdate  = errors.New("request changed concurrently, re-read and retry")

	ErrPermissionDenied = errors.New("principal lacks the required capability")

	// Credential verification failures at a fifth-step checkpoint. The
	// counter is never advanced on either of these.
	ErrPasswordRequired = errors.New("password is required for the final confirmation")
	ErrPasswordMismatch = errors.New("credential re-verification failed")

	// ErrArtifactGeneration wraps snapshot/report failures during Initiate;
	// nothing is persisted when it is returned.
	ErrArtifactGeneration = errors.New("artifact generation failed")

	ErrInvalidSnapshotID = errors.New("invalid snapshot identifier")
	ErrSnapshotNotFound  = errors.New("snapshot not found")
)

// IsPreconditionViolation reports whether err is one of the state/identity
// checks that fail before any mutation.
func IsPreconditionViolation(err error) bool {
	return errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrNotPending) ||
		errors.Is(err, ErrNotInitiator) ||
		errors.Is(err, ErrAwaitingInitiator) ||
		errors.Is(err, ErrSequenceComplete) ||
		errors.Is(err, ErrConcurrentUpdate)
}

// TableOutcome is the result of clearing a single table.
type TableOutcome struct {
	Table       string
	RowsDeleted int64
	Err         error
}

// ExecutionResult lists the per-table outcomes of one destructive run.
// There is no cross-table transactionality: tables that succeeded stay
// cleared even when others fail.
type ExecutionResult struct {
	Outcomes []TableOutcome
}

func (r ExecutionResult) AllSucceeded() bool {
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return false
		}
	}
	return true
}

// PartialExecutionError reports a destructive run in which at least one
// table failed to clear. It must never be swallowed: the data already
// erased cannot be brought back without the retained snapshot.
type PartialExecutionError struct {
	Outcomes []TableOutcome
}

func (e *PartialExecutionError) Error() string {
	var failed []string
	for _, o := range e.Outcomes {
		if o.Err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", o.Table, o.Err))
		}
	}
	return fmt.Sprintf("cleared %d of %d tables; failed: %s",
		len(e.Outcomes)-len(failed), len(e.Outcomes), strings.Join(failed, "; "))
}
