package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stockguard/server/internal/guard"
)

// snapshotIDPattern pins restore identifiers to the exact canonical
// snapshot filename: no separators, no dots beyond the extension, nothing
// that could address another file.
var snapshotIDPattern = regexp.MustCompile(`^snapshot_\d{8}T\d{6}Z\.db$`)

const resourceSnapshot = "snapshot"

// StoreSwapper is what RestoreCoordinator needs from the live store handle:
// its file path, a WAL flush, and explicit close/reopen control.
type StoreSwapper interface {
	Path() string
	Checkpoint(ctx context.Context) error
	Close() error
	Reopen(ctx context.Context) error
}

// RestoreCoordinator swaps the live store for a prior snapshot. Independent
// of the quorum flow; used for disaster recovery. The close/copy/reopen
// window is a deliberate, short, total outage for every other operation.
type RestoreCoordinator struct {
	store       StoreSwapper
	snapshotDir string
	audit       *AuditRecorder
	logger      *zap.Logger
}

func NewRestoreCoordinator(st StoreSwapper, snapshotDir string, audit *AuditRecorder, logger *zap.Logger) *RestoreCoordinator {
	return &RestoreCoordinator{
		store:       st,
		snapshotDir: snapshotDir,
		audit:       audit,
		logger:      logger,
	}
}

// Restore replaces the live store file with the named snapshot. Before
// anything touches the filesystem the identifier is validated and resolved
// strictly inside the snapshot directory. A just-in-time safety copy of the
// current store is taken first and retained indefinitely.
//
// Whatever goes wrong after the close, the coordinator always attempts to
// reconnect so the service is not left fully unavailable; the original
// error is still reported.
func (c *RestoreCoordinator) Restore(ctx context.Context, snapshotID string, p guard.Principal) (safetyCopy string, err error) {
	if !p.CanRestore() {
		return "", ErrPermissionDenied
	}

	src, err := c.resolveSnapshot(snapshotID)
	if err != nil {
		return "", err
	}

	c.audit.Record(ctx, &p, "restore.begin", resourceSnapshot, snapshotID, "")

	// Safety copy of the current live store. Never auto-deleted. The WAL
	// is flushed first so writes committed since the last checkpoint are
	// in the copied file rather than stranded in a sidecar the swap will
	// delete.
	if err := c.store.Checkpoint(ctx); err != nil {
		c.audit.Record(ctx, &p, "restore.safety_copy_failed", resourceSnapshot, snapshotID, err.Error())
		return "", fmt.Errorf("checkpoint before safety copy: %w", err)
	}
	safetyCopy = filepath.Join(c.snapshotDir,
		"prerestore_"+time.Now().UTC().Format(snapshotTimeFormat)+".db")
	if err := copyFile(c.store.Path(), safetyCopy); err != nil {
		c.audit.Record(ctx, &p, "restore.safety_copy_failed", resourceSnapshot, snapshotID, err.Error())
		return "", fmt.Errorf("safety copy: %w", err)
	}
	c.audit.Record(ctx, &p, "restore.safety_copy", resourceSnapshot, snapshotID, safetyCopy)

	if err := c.store.Close(); err != nil {
		c.audit.Record(ctx, &p, "restore.close_failed", resourceSnapshot, snapshotID, err.Error())
		c.reconnect(ctx)
		return safetyCopy, fmt.Errorf("close store: %w", err)
	}
	c.audit.Record(ctx, &p, "restore.store_closed", resourceSnapshot, snapshotID, "")

	if err := c.swapStoreFile(src); err != nil {
		c.audit.Record(ctx, &p, "restore.swap_failed", resourceSnapshot, snapshotID, err.Error())
		c.reconnect(ctx)
		return safetyCopy, fmt.Errorf("swap store file: %w", err)
	}
	c.audit.Record(ctx, &p, "restore.swapped", resourceSnapshot, snapshotID, "")

	if err := c.store.Reopen(ctx); err != nil {
		c.audit.Record(ctx, &p, "restore.reopen_failed", resourceSnapshot, snapshotID, err.Error())
		c.reconnect(ctx)
		return safetyCopy, fmt.Errorf("reopen store: %w", err)
	}

	c.audit.Record(ctx, &p, "restore.complete", resourceSnapshot, snapshotID, safetyCopy)
	c.logger.Info("store restored",
		zap.String("snapshot", snapshotID), zap.String("safety_copy", safetyCopy))
	return safetyCopy, nil
}

// resolveSnapshot validates the identifier and resolves it inside the
// snapshot directory, rejecting anything that would escape it. Runs before
// any file operation.
func (c *RestoreCoordinator) resolveSnapshot(snapshotID string) (string, error) {
	if !snapshotIDPattern.MatchString(snapshotID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSnapshotID, snapshotID)
	}

	base, err := filepath.Abs(c.snapshotDir)
	if err != nil {
		return "", fmt.Errorf("resolve snapshot dir: %w", err)
	}
	target, err := filepath.Abs(filepath.Join(base, snapshotID))
	if err != nil {
		return "", fmt.Errorf("resolve snapshot path: %w", err)
	}
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q escapes snapshot directory", ErrInvalidSnapshotID, snapshotID)
	}

	if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrSnapshotNotFound, snapshotID)
	} else if err != nil {
		return "", fmt.Errorf("stat snapshot: %w", err)
	}
	return target, nil
}

// swapStoreFile copies the snapshot over the live store file and drops any
// leftover WAL/SHM sidecars so the reopened connection sees only the
// restored bytes.
func (c *RestoreCoordinator) swapStoreFile(src string) error {
	live := c.store.Path()
	if err := copyFile(src, live); err != nil {
		return err
	}
	for _, sidecar := range []string{live + "-wal", live + "-shm"} {
		if err := os.Remove(sidecar); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", sidecar, err)
		}
	}
	return nil
}

// reconnect is the best-effort safety net after a mid-restore failure: the
// caller still gets the original error, but the service should not stay
// down if the store can be brought back.
func (c *RestoreCoordinator) reconnect(ctx context.Context) {
	if err := c.store.Reopen(ctx); err != nil {
		c.logger.Error("reconnect after failed restore", zap.Error(err))
	}
}
