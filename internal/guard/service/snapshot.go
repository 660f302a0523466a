package service

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// snapshotTimeFormat is the canonical timestamp embedded in every artifact
// filename. UTC, second precision, lexically sortable.
const snapshotTimeFormat = "20060102T150405Z"

// StoreSource is what SnapshotService needs from the live store: its file
// path, a way to flush the WAL into the main file, and a read connection.
type StoreSource interface {
	Path() string
	Checkpoint(ctx context.Context) error
	DB() (*sql.DB, error)
}

// SnapshotService produces point-in-time file copies of the store and
// best-effort human-readable content reports. Snapshot files are immutable
// once written and are never auto-deleted.
type SnapshotService struct {
	src         StoreSource
	snapshotDir string
	reportDir   string
	logger      *zap.Logger
}

func NewSnapshotService(src StoreSource, snapshotDir, reportDir string, logger *zap.Logger) *SnapshotService {
	return &SnapshotService{
		src:         src,
		snapshotDir: snapshotDir,
		reportDir:   reportDir,
		logger:      logger,
	}
}

// Dir returns the directory snapshots are written to.
func (s *SnapshotService) Dir() string { return s.snapshotDir }

// CreateSnapshot copies the live store file into the snapshot directory and
// returns the snapshot path. It fails fast if the store file is unreadable.
// The copy assumes no concurrent structural write is in flight; acceptable
// for this low-concurrency administrative flow.
func (s *SnapshotService) CreateSnapshot(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.snapshotDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir snapshot dir: %w", err)
	}

	// Flush the WAL so the main file holds every committed write.
	if err := s.src.Checkpoint(ctx); err != nil {
		return "", fmt.Errorf("checkpoint before snapshot: %w", err)
	}

	name := "snapshot_" + time.Now().UTC().Format(snapshotTimeFormat) + ".db"
	dst := filepath.Join(s.snapshotDir, name)

	if err := copyFile(s.src.Path(), dst); err != nil {
		return "", fmt.Errorf("copy store to snapshot: %w", err)
	}

	s.logger.Info("snapshot created", zap.String("path", dst))
	return dst, nil
}

// reportSections enumerates every mutable entity type plus the account list.
// Password hashes are deliberately not part of any query here.
var reportSections = []struct {
	name  string
	query string
}{
	{"categories", `SELECT category_id, name FROM categories ORDER BY category_id;`},
	{"suppliers", `SELECT supplier_id, name, phone FROM suppliers ORDER BY supplier_id;`},
	{"items", `SELECT item_id, name, sku, unit_price_cents, stock_qty FROM items ORDER BY item_id;`},
	{"purchases", `SELECT purchase_id, supplier_id, total_cents, purchased_at_ms FROM purchases ORDER BY purchase_id;`},
	{"purchase_items", `SELECT purchase_item_id, purchase_id, item_id, qty, unit_cost_cents FROM purchase_items ORDER BY purchase_item_id;`},
	{"sales", `SELECT sale_id, account_id, total_cents, sold_at_ms FROM sales ORDER BY sale_id;`},
	{"sale_items", `SELECT sale_item_id, sale_id, item_id, qty, unit_price_cents FROM sale_items ORDER BY sale_item_id;`},
	{"stock_adjustments", `SELECT adjustment_id, item_id, delta_qty, reason, adjusted_at_ms FROM stock_adjustments ORDER BY adjustment_id;`},
	{"accounts", `SELECT account_id, display_name, role FROM accounts ORDER BY account_id;`},
}

// CreateContentReport writes a linear, human-readable export of the store's
// contents and returns the report path. Per-entity enumeration failures are
// logged and the section omitted; a partial report is still a report.
func (s *SnapshotService) CreateContentReport(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.reportDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir report dir: %w", err)
	}

	conn, err := s.src.DB()
	if err != nil {
		return "", err
	}

	name := "report_" + time.Now().UTC().Format(snapshotTimeFormat) + ".txt"
	path := filepath.Join(s.reportDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "STOCKGUARD CONTENT REPORT\ngenerated: %s\nstore: %s\n",
		time.Now().UTC().Format(time.RFC3339), s.src.Path())

	for _, sec := range reportSections {
		if err := writeReportSection(ctx, conn, w, sec.name, sec.query); err != nil {
			s.logger.Warn("report section skipped",
				zap.String("section", sec.name), zap.Error(err))
		}
	}

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("flush report: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("sync report: %w", err)
	}
	return path, nil
}

func writeReportSection(ctx context.Context, conn *sql.DB, w *bufio.Writer, name, query string) error {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n== %s ==\n", name)
	n := 0
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}

		parts := make([]string, len(cols))
		for i, c := range cols {
			parts[i] = fmt.Sprintf("%s=%v", c, vals[i])
		}
		fmt.Fprintln(w, strings.Join(parts, "  "))
		n++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	fmt.Fprintf(w, "(%d rows)\n", n)
	return nil
}

// SnapshotMeta describes one snapshot file available for restore.
type SnapshotMeta struct {
	ID        string // bare filename, usable as a restore identifier
	SizeBytes int64
	CreatedAt time.Time
}

// List enumerates the snapshot directory, newest first. Safety copies made
// by restores are excluded; only regular snapshots can be restore targets
// through the API.
func (s *SnapshotService) List(_ context.Context) ([]SnapshotMeta, error) {
	entries, err := os.ReadDir(s.snapshotDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}

	var out []SnapshotMeta
	for _, e := range entries {
		if e.IsDir() || !snapshotIDPattern.MatchString(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, SnapshotMeta{
			ID:        e.Name(),
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime().UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// copyFile copies src to dst, fsyncing dst before returning. dst is
// truncated if it already exists.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("sync %s: %w", dst, err)
	}
	return out.Close()
}
