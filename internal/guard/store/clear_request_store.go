package store

import (
	"context"
	"time"
)

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusRejected  RequestStatus = "rejected"
	StatusCancelled RequestStatus = "cancelled"
	StatusCompleted RequestStatus = "completed"
)

// Terminal reports whether no further transition is permitted.
func (s RequestStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusCompleted
}

// ClearRequestRecord is the durable ledger row for one destructive-operation
// request. Rows are created once, mutated only through the guarded store
// operations, and never deleted.
type ClearRequestRecord struct {
	ID                      string
	InitiatorID             string
	Status                  RequestStatus
	InitiatorConfirmations  int
	AuthorizerConfirmations int
	SnapshotPath            string
	ReportPath              string
	CreatedAt               time.Time
	UpdatedAt               time.Time
	CompletedAt             *time.Time
}

// ClearRequestStore is the request ledger. Counter and status mutations are
// compare-and-set: every mutation names the state it expects, and a stale
// expectation yields ErrConflict without touching the row. Two racing
// confirmation calls therefore cannot both advance the same counter value.
type ClearRequestStore interface {
	// Create inserts a new pending request. The record must already carry
	// both artifact paths; a request never exists without them.
	Create(ctx context.Context, rec ClearRequestRecord) error

	Get(ctx context.Context, id string) (ClearRequestRecord, error)

	// ListAwaitingAuthorizer returns pending requests whose initiator
	// sequence is complete, oldest first. This is the authorizer queue.
	ListAwaitingAuthorizer(ctx context.Context) ([]ClearRequestRecord, error)

	// IncrementInitiatorConfirmations moves the initiator counter from
	// `from` to from+1, provided the request is still pending.
	IncrementInitiatorConfirmations(ctx context.Context, id string, from int) error

	// IncrementAuthorizerConfirmations moves the authorizer counter from
	// `from` to from+1, provided the request is still pending and the
	// initiator sequence is complete.
	IncrementAuthorizerConfirmations(ctx context.Context, id string, from int) error

	// SetStatus transitions status from `from` to `to`.
	SetStatus(ctx context.Context, id string, from, to RequestStatus) error

	// Complete marks a pending request completed and stamps completedAt.
	Complete(ctx context.Context, id string, at time.Time) error
}
