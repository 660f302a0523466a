package service_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	dbpkg "github.com/stockguard/server/internal/db"
)

// newTestHandle opens a store handle on a real database file in a temp
// directory; the snapshot and restore flows copy that file around, so
// :memory: is not an option here.
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

func testConn(t *testing.T, h *dbpkg.Handle) *sql.DB {
	t.Helper()

	conn, err := h.DB()
	if err != nil {
		t.Fatalf("testConn: %v", err)
	}
	return conn
}

// seedCatalog inserts one row into every mutable entity table plus the two
// configuration tables, satisfying foreign keys along the way.
func seedCatalog(t *testing.T, conn *sql.DB) {
	t.Helper()

	ctx := context.Background()
	now := time.Now().UTC().UnixMilli()

	stmts := []struct {
		name string
		sql  string
	}{
		{"accounts", `INSERT INTO accounts(account_id, display_name, role, password_hash, created_at_ms, updated_at_ms)
VALUES ('owner', 'Shop Owner', 'initiator', 'x', ?, ?);`},
		{"shop_settings", `INSERT INTO shop_settings(key, value, updated_at_ms) VALUES ('currency', 'USD', ?);`},
		{"categories", `INSERT INTO categories(category_id, name, created_at_ms, updated_at_ms) VALUES (1, 'General', ?, ?);`},
		{"suppliers", `INSERT INTO suppliers(supplier_id, name, phone, created_at_ms, updated_at_ms) VALUES (1, 'Acme', '', ?, ?);`},
		{"items", `INSERT INTO items(item_id, category_id, supplier_id, name, sku, unit_price_cents, stock_qty, created_at_ms, updated_at_ms)
VALUES (1, 1, 1, 'Widget', 'SKU-1', 100, 5, ?, ?);`},
		{"purchases", `INSERT INTO purchases(purchase_id, supplier_id, total_cents, purchased_at_ms, created_at_ms) VALUES (1, 1, 500, ?, ?);`},
		{"purchase_items", `INSERT INTO purchase_items(purchase_id, item_id, qty, unit_cost_cents) VALUES (1, 1, 5, 100);`},
		{"sales", `INSERT INTO sales(sale_id, account_id, total_cents, sold_at_ms, created_at_ms) VALUES (1, 'owner', 200, ?, ?);`},
		{"sale_items", `INSERT INTO sale_items(sale_id, item_id, qty, unit_price_cents) VALUES (1, 1, 2, 100);`},
		{"stock_adjustments", `INSERT INTO stock_adjustments(item_id, delta_qty, reason, adjusted_at_ms) VALUES (1, -1, 'damaged', ?);`},
	}

	for _, s := range stmts {
		args := make([]any, 0, 2)
		for i := 0; i < countPlaceholders(s.sql); i++ {
			args = append(args, now)
		}
		if _, err := conn.ExecContext(ctx, s.sql, args...); err != nil {
			t.Fatalf("seed %s: %v", s.name, err)
		}
	}
}

func countPlaceholders(sql string) int {
	n := 0
	for _, r := range sql {
		if r == '?' {
			n++
		}
	}
	return n
}

func countRows(t *testing.T, conn *sql.DB, table string) int {
	t.Helper()

	var n int
	if err := conn.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table+";").Scan(&n); err != nil {
		t.Fatalf("countRows(%s): %v", table, err)
	}
	return n
}
