package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	dbpkg "github.com/stockguard/server/internal/db"
)

// newTestHandle opens a store handle on a throwaway database file with the
// same PRAGMAs and migrations as production. A real file (not :memory:)
// because the handle is also the unit the snapshot/restore flow copies.
func newTestHandle(t *testing.T) *dbpkg.Handle {
	t.Helper()

	path := filepath.Join(t.TempDir(), "stockguard.db")
	h, err := dbpkg.NewHandle(context.Background(), dbpkg.Config{Path: path, Env: "dev"})
	if err != nil {
		t.Fatalf("newTestHandle: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

// testConn returns the handle's live connection for direct seeding and
// assertions.
func testConn(t *testing.T, h *dbpkg.Handle) *sql.DB {
	t.Helper()

	conn, err := h.DB()
	if err != nil {
		t.Fatalf("testConn: %v", err)
	}
	return conn
}

// seedAccount inserts an account row so credential lookups have something
// to find.
func seedAccount(t *testing.T, conn *sql.DB, id, role, passwordHash string) {
	t.Helper()

	nowMs := time.Now().UTC().UnixMilli()
	_, err := conn.ExecContext(context.Background(), `
INSERT OR IGNORE INTO accounts(account_id, display_name, role, password_hash, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?);`, id, id, role, passwordHash, nowMs, nowMs)
	if err != nil {
		t.Fatalf("seedAccount(%s): %v", id, err)
	}
}

// countRows returns SELECT COUNT(*) for the given table.
func countRows(t *testing.T, conn *sql.DB, table string) int {
	t.Helper()

	var n int
	if err := conn.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table+";").Scan(&n); err != nil {
		t.Fatalf("countRows(%s): %v", table, err)
	}
	return n
}
