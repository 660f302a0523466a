package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	dbpkg "github.com/stockguard/server/internal/db"
	"github.com/stockguard/server/internal/guard/store"
)

type AccountStore struct {
	h *dbpkg.Handle
}

func NewAccountStore(h *dbpkg.Handle) *AccountStore {
	return &AccountStore{h: h}
}

func (s *AccountStore) Get(ctx context.Context, id string) (store.AccountRecord, error) {
	conn, err := s.h.DB()
	if err != nil {
		return store.AccountRecord{}, err
	}

	var rec store.AccountRecord
	err = conn.QueryRowContext(ctx, `
SELECT account_id, display_name, role, password_hash
FROM accounts
WHERE account_id = ?;
`, id).Scan(&rec.ID, &rec.DisplayName, &rec.Role, &rec.PasswordHash)

	if err == sql.ErrNoRows {
		return store.AccountRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.AccountRecord{}, fmt.Errorf("Get account: %w", err)
	}
	return rec, nil
}
