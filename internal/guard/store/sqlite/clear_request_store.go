package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/stockguard/server/internal/db"
	"github.com/stockguard/server/internal/guard/store"
)

type ClearRequestStore struct {
	h *dbpkg.Handle
}

func NewClearRequestStore(h *dbpkg.Handle) *ClearRequestStore {
	return &ClearRequestStore{h: h}
}

func (s *ClearRequestStore) Create(ctx context.Context, rec store.ClearRequestRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	if rec.Status == "" {
		rec.Status = store.StatusPending
	}

	return s.h.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO clear_requests(
  request_id, initiator_id, status,
  initiator_confirmations, authorizer_confirmations,
  snapshot_path, report_path,
  created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.ID, rec.InitiatorID, string(rec.Status),
			rec.InitiatorConfirmations, rec.AuthorizerConfirmations,
			rec.SnapshotPath, rec.ReportPath,
			rec.CreatedAt.UTC().UnixMilli(), rec.UpdatedAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("Create clear_request: %w", err)
		}
		return nil
	})
}

const clearRequestColumns = `
request_id, initiator_id, status,
initiator_confirmations, authorizer_confirmations,
snapshot_path, report_path,
created_at_ms, updated_at_ms, completed_at_ms`

func (s *ClearRequestStore) Get(ctx context.Context, id string) (store.ClearRequestRecord, error) {
	conn, err := s.h.DB()
	if err != nil {
		return store.ClearRequestRecord{}, err
	}

	row := conn.QueryRowContext(ctx,
		`SELECT `+clearRequestColumns+` FROM clear_requests WHERE request_id = ?;`, id)

	rec, err := scanClearRequest(row)
	if err == sql.ErrNoRows {
		return store.ClearRequestRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.ClearRequestRecord{}, fmt.Errorf("Get clear_request: %w", err)
	}
	return rec, nil
}

func (s *ClearRequestStore) ListAwaitingAuthorizer(ctx context.Context) ([]store.ClearRequestRecord, error) {
	conn, err := s.h.DB()
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, `
SELECT `+clearRequestColumns+`
FROM clear_requests
WHERE status = 'pending' AND initiator_confirmations = 5
ORDER BY created_at_ms;
`)
	if err != nil {
		return nil, fmt.Errorf("ListAwaitingAuthorizer query: %w", err)
	}
	defer rows.Close()

	var out []store.ClearRequestRecord
	for rows.Next() {
		rec, err := scanClearRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("ListAwaitingAuthorizer scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// IncrementInitiatorConfirmations is a compare-and-increment: the UPDATE
// names the counter value it expects, so a racing call that already advanced
// the counter matches no row and yields ErrConflict.
func (s *ClearRequestStore) IncrementInitiatorConfirmations(ctx context.Context, id string, from int) error {
	return s.guardedUpdate(ctx, "IncrementInitiatorConfirmations", `
UPDATE clear_requests
SET initiator_confirmations = ? + 1,
    updated_at_ms = ?
WHERE request_id = ?
  AND status = 'pending'
  AND initiator_confirmations = ?;
`, from, time.Now().UTC().UnixMilli(), id, from)
}

func (s *ClearRequestStore) IncrementAuthorizerConfirmations(ctx context.Context, id string, from int) error {
	return s.guardedUpdate(ctx, "IncrementAuthorizerConfirmations", `
UPDATE clear_requests
SET authorizer_confirmations = ? + 1,
    updated_at_ms = ?
WHERE request_id = ?
  AND status = 'pending'
  AND initiator_confirmations = 5
  AND authorizer_confirmations = ?;
`, from, time.Now().UTC().UnixMilli(), id, from)
}

func (s *ClearRequestStore) SetStatus(ctx context.Context, id string, from, to store.RequestStatus) error {
	return s.guardedUpdate(ctx, "SetStatus", `
UPDATE clear_requests
SET status = ?,
    updated_at_ms = ?
WHERE request_id = ?
  AND status = ?;
`, string(to), time.Now().UTC().UnixMilli(), id, string(from))
}

func (s *ClearRequestStore) Complete(ctx context.Context, id string, at time.Time) error {
	ms := at.UTC().UnixMilli()
	return s.guardedUpdate(ctx, "Complete", `
UPDATE clear_requests
SET status = 'completed',
    completed_at_ms = ?,
    updated_at_ms = ?
WHERE request_id = ?
  AND status = 'pending';
`, ms, ms, id)
}

// guardedUpdate runs an UPDATE whose WHERE clause encodes the expected
// current state. Zero affected rows means the expectation was stale.
func (s *ClearRequestStore) guardedUpdate(ctx context.Context, op, query string, args ...any) error {
	return s.h.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%s rows affected: %w", op, err)
		}
		if n == 0 {
			return store.ErrConflict
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClearRequest(row rowScanner) (store.ClearRequestRecord, error) {
	var (
		rec         store.ClearRequestRecord
		status      string
		createdMs   int64
		updatedMs   int64
		completedMs sql.NullInt64
	)
	err := row.Scan(
		&rec.ID, &rec.InitiatorID, &status,
		&rec.InitiatorConfirmations, &rec.AuthorizerConfirmations,
		&rec.SnapshotPath, &rec.ReportPath,
		&createdMs, &updatedMs, &completedMs,
	)
	if err != nil {
		return store.ClearRequestRecord{}, err
	}

	rec.Status = store.RequestStatus(status)
	rec.CreatedAt = time.UnixMilli(createdMs).UTC()
	rec.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	if completedMs.Valid {
		t := time.UnixMilli(completedMs.Int64).UTC()
		rec.CompletedAt = &t
	}
	return rec, nil
}
