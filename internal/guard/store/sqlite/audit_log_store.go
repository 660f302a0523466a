package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/stockguard/server/internal/db"
	"github.com/stockguard/server/internal/guard/store"
)

// AuditLogStore persists audit entries append-only.
type AuditLogStore struct {
	h *dbpkg.Handle
}

func NewAuditLogStore(h *dbpkg.Handle) *AuditLogStore {
	return &AuditLogStore{h: h}
}

func (s *AuditLogStore) Append(ctx context.Context, e store.AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var principalID any
	if e.PrincipalID != nil {
		principalID = *e.PrincipalID
	}

	return s.h.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO audit_log(
  principal_id, action, resource_type, resource_id, source_addr, detail, created_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?);
`,
			principalID, e.Action, e.ResourceType, e.ResourceID,
			e.SourceAddr, e.Detail, e.CreatedAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("Append audit entry: %w", err)
		}
		return nil
	})
}
