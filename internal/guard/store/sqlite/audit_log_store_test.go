package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stockguard/server/internal/guard/store"
	sqlitestore "github.com/stockguard/server/internal/guard/store/sqlite"
)

func TestAuditLogStore_Append_InsertsRow(t *testing.T) {
	h := newTestHandle(t)
	as := sqlitestore.NewAuditLogStore(h)
	conn := testConn(t, h)

	principal := "owner"
	now := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	err := as.Append(context.Background(), store.AuditEntry{
		PrincipalID:  &principal,
		Action:       "clear_request.initiate",
		ResourceType: "clear_request",
		ResourceID:   "req-1",
		SourceAddr:   "10.0.0.5:51234",
		Detail:       "snapshot=a report=b",
		CreatedAt:    now,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	var (
		principalID sql.NullString
		action      string
		detail      string
		createdMs   int64
	)
	err = conn.QueryRowContext(context.Background(), `
SELECT principal_id, action, detail, created_at_ms FROM audit_log;`,
	).Scan(&principalID, &action, &detail, &createdMs)
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if !principalID.Valid || principalID.String != "owner" {
		t.Errorf("expected principal_id=owner, got %v", principalID)
	}
	if action != "clear_request.initiate" {
		t.Errorf("expected action=clear_request.initiate, got %q", action)
	}
	if createdMs != now.UnixMilli() {
		t.Errorf("expected created_at_ms=%d, got %d", now.UnixMilli(), createdMs)
	}
}

func TestAuditLogStore_Append_NullPrincipal(t *testing.T) {
	h := newTestHandle(t)
	as := sqlitestore.NewAuditLogStore(h)
	conn := testConn(t, h)

	err := as.Append(context.Background(), store.AuditEntry{
		Action:       "restore.complete",
		ResourceType: "snapshot",
		ResourceID:   "snapshot_20260820T090000Z.db",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	var principalID sql.NullString
	if err := conn.QueryRowContext(context.Background(),
		`SELECT principal_id FROM audit_log;`).Scan(&principalID); err != nil {
		t.Fatalf("query: %v", err)
	}
	if principalID.Valid {
		t.Error("expected principal_id to be NULL")
	}
}

func TestAuditLogStore_Append_AppendOnly(t *testing.T) {
	h := newTestHandle(t)
	as := sqlitestore.NewAuditLogStore(h)
	conn := testConn(t, h)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := as.Append(ctx, store.AuditEntry{
			Action:       "clear_request.confirm_initiator",
			ResourceType: "clear_request",
			ResourceID:   "req-1",
		})
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	if n := countRows(t, conn, "audit_log"); n != 3 {
		t.Errorf("expected 3 rows (append-only), got %d", n)
	}
}
