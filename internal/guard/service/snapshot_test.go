package service_test

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/stockguard/server/internal/guard/service"
)

func TestCreateSnapshot_CopiesStoreFile(t *testing.T) {
	h := newTestHandle(t)
	seedCatalog(t, testConn(t, h))

	dir := t.TempDir()
	svc := service.NewSnapshotService(h, filepath.Join(dir, "snapshots"), filepath.Join(dir, "reports"), zap.NewNop())

	path, err := svc.CreateSnapshot(context.Background())
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	if ok, _ := regexp.MatchString(`^snapshot_\d{8}T\d{6}Z\.db$`, filepath.Base(path)); !ok {
		t.Errorf("snapshot name %q does not match the canonical pattern", filepath.Base(path))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat snapshot: %v", err)
	}
	if info.Size() == 0 {
		t.Error("snapshot file is empty")
	}
}

func TestCreateContentReport_EnumeratesEntities(t *testing.T) {
	h := newTestHandle(t)
	seedCatalog(t, testConn(t, h))

	dir := t.TempDir()
	svc := service.NewSnapshotService(h, filepath.Join(dir, "snapshots"), filepath.Join(dir, "reports"), zap.NewNop())

	path, err := svc.CreateContentReport(context.Background())
	if err != nil {
		t.Fatalf("CreateContentReport: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	report := string(b)

	for _, want := range []string{
		"== items ==", "== sales ==", "== sale_items ==",
		"== purchase_items ==", "== accounts ==", "Widget",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if strings.Contains(report, "password_hash") {
		t.Error("report leaks password hashes")
	}
}

func TestCreateContentReport_SectionFailureIsTolerated(t *testing.T) {
	h := newTestHandle(t)
	conn := testConn(t, h)
	seedCatalog(t, conn)

	// Break one entity enumeration; the report must still be produced.
	if _, err := conn.ExecContext(context.Background(), `DROP TABLE suppliers;`); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	dir := t.TempDir()
	svc := service.NewSnapshotService(h, filepath.Join(dir, "snapshots"), filepath.Join(dir, "reports"), zap.NewNop())

	path, err := svc.CreateContentReport(context.Background())
	if err != nil {
		t.Fatalf("CreateContentReport with broken section: %v", err)
	}

	b, _ := os.ReadFile(path)
	report := string(b)
	if !strings.Contains(report, "== items ==") {
		t.Error("surviving sections missing from report")
	}
}

func TestList_ReturnsOnlyCanonicalSnapshots(t *testing.T) {
	h := newTestHandle(t)
	dir := t.TempDir()
	snapDir := filepath.Join(dir, "snapshots")
	svc := service.NewSnapshotService(h, snapDir, filepath.Join(dir, "reports"), zap.NewNop())

	if _, err := svc.CreateSnapshot(context.Background()); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	// Safety copies and strays are not restore targets.
	for _, name := range []string{"prerestore_20260820T090000Z.db", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(snapDir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	metas, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(metas))
	}
	if !strings.HasPrefix(metas[0].ID, "snapshot_") {
		t.Errorf("unexpected snapshot id %q", metas[0].ID)
	}
}

func TestList_EmptyDirIsNotAnError(t *testing.T) {
	h := newTestHandle(t)
	svc := service.NewSnapshotService(h, filepath.Join(t.TempDir(), "missing"), t.TempDir(), zap.NewNop())

	metas, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List on missing dir: %v", err)
	}
	if len(metas) != 0 {
		t.Errorf("expected no snapshots, got %d", len(metas))
	}
}
