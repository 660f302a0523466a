package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/stockguard/server/internal/guard"
	"github.com/stockguard/server/internal/guard/store"
)

// AuditRecorder appends an entry for every protocol transition and restore
// step. Audit is best-effort and sits outside the consistency boundary: a
// failed write is logged and swallowed, never surfaced to the operation
// that triggered it.
type AuditRecorder struct {
	store  store.AuditLogStore
	logger *zap.Logger
}

func NewAuditRecorder(st store.AuditLogStore, logger *zap.Logger) *AuditRecorder {
	return &AuditRecorder{store: st, logger: logger}
}

// Record appends one entry on behalf of principal. principal may be nil for
// system-originated entries.
func (r *AuditRecorder) Record(ctx context.Context, principal *guard.Principal, action, resourceType, resourceID, detail string) {
	e := store.AuditEntry{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Detail:       detail,
	}
	if principal != nil {
		id := principal.ID
		e.PrincipalID = &id
		e.SourceAddr = principal.SourceAddr
	}

	if err := r.store.Append(ctx, e); err != nil {
		r.logger.Warn("audit write failed",
			zap.String("action", action),
			zap.String("resource_id", resourceID),
			zap.Error(err))
	}
}
