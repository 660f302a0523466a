package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type SeedDevOptions struct {
	// Plaintext dev passwords, hashed on insert. Never used in prod.
	InitiatorPassword  string
	AuthorizerPassword string
}

// SeedDev inserts a pair of dev accounts (one per role) and a small starter
// catalog so the confirmation flow and the content report have something to
// chew on. Idempotent.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()

	if opt.InitiatorPassword == "" {
		opt.InitiatorPassword = "owner-dev"
	}
	if opt.AuthorizerPassword == "" {
		opt.AuthorizerPassword = "admin-dev"
	}

	accounts := []struct {
		id, name, role, password string
	}{
		{"owner", "Shop Owner", "initiator", opt.InitiatorPassword},
		{"admin", "System Admin", "authorizer", opt.AuthorizerPassword},
	}
	for _, a := range accounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(a.password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash dev password for %s: %w", a.id, err)
		}
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO accounts(account_id, display_name, role, password_hash, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?);`, a.id, a.name, a.role, string(hash), now, now); err != nil {
			return fmt.Errorf("seed account %s: %w", a.id, err)
		}
	}

	// Minimal starter catalog.
	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO categories(category_id, name, created_at_ms, updated_at_ms)
VALUES (1, 'General', ?, ?);`, now, now); err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO suppliers(supplier_id, name, phone, created_at_ms, updated_at_ms)
VALUES (1, 'Default Supplier', '', ?, ?);`, now, now); err != nil {
		return fmt.Errorf("seed suppliers: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO items(item_id, category_id, supplier_id, name, sku, unit_price_cents, stock_qty, created_at_ms, updated_at_ms)
VALUES (1, 1, 1, 'Sample Item', 'SKU-0001', 1500, 10, ?, ?);`, now, now); err != nil {
		return fmt.Errorf("seed items: %w", err)
	}

	return nil
}
