package service_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	dbpkg "github.com/stockguard/server/internal/db"
	"github.com/stockguard/server/internal/guard"
	"github.com/stockguard/server/internal/guard/service"
	"github.com/stockguard/server/internal/guard/store/memory"
)

type restoreFixture struct {
	handle  *dbpkg.Handle
	coord   *service.RestoreCoordinator
	snaps   *service.SnapshotService
	audits  *memory.AuditLogStore
	snapDir string
}

func newRestoreFixture(t *testing.T) *restoreFixture {
	t.Helper()

	h := newTestHandle(t)
	dir := t.TempDir()
	snapDir := filepath.Join(dir, "snapshots")

	audits := memory.NewAuditLogStore()
	audit := service.NewAuditRecorder(audits, zap.NewNop())
	snaps := service.NewSnapshotService(h, snapDir, filepath.Join(dir, "reports"), zap.NewNop())

	return &restoreFixture{
		handle:  h,
		coord:   service.NewRestoreCoordinator(h, snapDir, audit, zap.NewNop()),
		snaps:   snaps,
		audits:  audits,
		snapDir: snapDir,
	}
}

func TestRestore_RejectsTraversalBeforeAnyFileOperation(t *testing.T) {
	f := newRestoreFixture(t)

	for _, id := range []string{
		"../stockguard.db",
		"../../etc/passwd",
		"snapshot_20260820T090000Z.db/../../x.db",
		"prerestore_20260820T090000Z.db",
		"",
	} {
		_, err := f.coord.Restore(context.Background(), id, initiator)
		if !errors.Is(err, service.ErrInvalidSnapshotID) {
			t.Errorf("id %q: expected ErrInvalidSnapshotID, got %v", id, err)
		}
	}

	// No file operation happened: no safety copy, store never closed.
	if entries, err := os.ReadDir(f.snapDir); err == nil {
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), "prerestore_") {
				t.Errorf("safety copy %q created for a rejected identifier", e.Name())
			}
		}
	}
	if _, err := f.handle.DB(); err != nil {
		t.Errorf("store closed for a rejected identifier: %v", err)
	}
}

func TestRestore_UnknownSnapshot(t *testing.T) {
	f := newRestoreFixture(t)

	_, err := f.coord.Restore(context.Background(), "snapshot_20990101T000000Z.db", initiator)
	if !errors.Is(err, service.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
}

func TestRestore_RequiresCapability(t *testing.T) {
	f := newRestoreFixture(t)

	viewer := guard.Principal{ID: "guest", Role: guard.Role("viewer")}
	_, err := f.coord.Restore(context.Background(), "snapshot_20260820T090000Z.db", viewer)
	if !errors.Is(err, service.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestRestore_SwapsLiveStoreForSnapshot(t *testing.T) {
	f := newRestoreFixture(t)
	ctx := context.Background()
	conn := testConn(t, f.handle)
	seedCatalog(t, conn)

	snapPath, err := f.snaps.CreateSnapshot(ctx)
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	// Mutate the live store after the snapshot.
	if _, err := conn.ExecContext(ctx, `
INSERT INTO categories(name, created_at_ms, updated_at_ms) VALUES ('Post-snapshot', 0, 0);`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n := countRows(t, conn, "categories"); n != 2 {
		t.Fatalf("expected 2 categories before restore, got %d", n)
	}

	safetyCopy, err := f.coord.Restore(ctx, filepath.Base(snapPath), initiator)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	// The store came back and shows the snapshot's contents.
	conn = testConn(t, f.handle)
	if n := countRows(t, conn, "categories"); n != 1 {
		t.Errorf("expected 1 category after restore, got %d", n)
	}

	// Safety copy exists and holds the pre-restore state, including the
	// row committed after the snapshot: the copy must be taken after a WAL
	// flush, or a recent commit would live only in a sidecar the swap
	// deletes.
	if !strings.HasPrefix(filepath.Base(safetyCopy), "prerestore_") {
		t.Errorf("unexpected safety copy name %q", safetyCopy)
	}
	copyConn, err := sql.Open("sqlite", safetyCopy)
	if err != nil {
		t.Fatalf("open safety copy: %v", err)
	}
	defer copyConn.Close()
	if n := countRows(t, copyConn, "categories"); n != 2 {
		t.Errorf("expected 2 categories in the safety copy, got %d", n)
	}
}

func TestRestore_AuthorizerMayRestore(t *testing.T) {
	f := newRestoreFixture(t)
	ctx := context.Background()
	seedCatalog(t, testConn(t, f.handle))

	snapPath, err := f.snaps.CreateSnapshot(ctx)
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	if _, err := f.coord.Restore(ctx, filepath.Base(snapPath), authorizer); err != nil {
		t.Fatalf("authorizer restore: %v", err)
	}
}

func TestRestore_AuditsEachStep(t *testing.T) {
	f := newRestoreFixture(t)
	ctx := context.Background()
	seedCatalog(t, testConn(t, f.handle))

	snapPath, err := f.snaps.CreateSnapshot(ctx)
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if _, err := f.coord.Restore(ctx, filepath.Base(snapPath), initiator); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	var actions []string
	for _, e := range f.audits.Entries() {
		if strings.HasPrefix(e.Action, "restore.") {
			actions = append(actions, e.Action)
		}
	}
	want := []string{"restore.begin", "restore.safety_copy", "restore.store_closed", "restore.swapped", "restore.complete"}
	if len(actions) != len(want) {
		t.Fatalf("expected %d restore audit entries, got %v", len(want), actions)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Errorf("audit entry %d: expected %s, got %s", i, want[i], actions[i])
		}
	}
}
