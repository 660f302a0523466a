package store

import (
	"context"
	"time"
)

// AuditEntry is one append-only audit record. Entries are never updated or
// deleted.
type AuditEntry struct {
	PrincipalID  *string // nil for system-originated entries
	Action       string
	ResourceType string
	ResourceID   string
	SourceAddr   string
	Detail       string
	CreatedAt    time.Time
}

type AuditLogStore interface {
	Append(ctx context.Context, e AuditEntry) error
}
