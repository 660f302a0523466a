package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// ErrUnavailable is returned by Handle methods while the store is closed,
// i.e. during the close/reopen window of a restore.
var ErrUnavailable = errors.New("store is unavailable")

// Handle is the single owned "open connection" to the store. Every store
// implementation reads and writes through it rather than holding a raw
// *sql.DB, so a restore can close the file, swap it, and reopen without
// leaving stale references anywhere.
//
// While closed, every operation fails with ErrUnavailable. That window is
// deliberately a total outage for the whole service.
type Handle struct {
	cfg Config

	mu     sync.RWMutex
	db     *sql.DB
	writer *Worker
}

// NewHandle opens the store at cfg.Path and wraps it.
func NewHandle(ctx context.Context, cfg Config) (*Handle, error) {
	conn, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Handle{
		cfg:    cfg,
		db:     conn,
		writer: NewWorker(conn),
	}, nil
}

// Path returns the filesystem path of the live store file.
func (h *Handle) Path() string { return h.cfg.Path }

// DB returns the current connection for reads, or ErrUnavailable while the
// handle is closed.
func (h *Handle) DB() (*sql.DB, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return nil, ErrUnavailable
	}
	return h.db, nil
}

// Do runs fn as a serialized write transaction through the worker. The
// read lock is held for the whole call: Close takes the write lock, so it
// cannot close the worker's channel while a send is in flight, and a Do
// arriving after Close sees the nil writer instead of a closed channel.
func (h *Handle) Do(ctx context.Context, fn TxFn) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.writer == nil {
		return ErrUnavailable
	}
	return h.writer.Do(ctx, fn)
}

// Checkpoint forces a full WAL checkpoint so the main store file contains
// every committed write. Called before a file-level copy of the store.
func (h *Handle) Checkpoint(ctx context.Context) error {
	conn, err := h.DB()
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}

// Close stops the write worker and closes the connection. Idempotent.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return nil
	}
	h.writer.Close()
	h.writer = nil
	err := h.db.Close()
	h.db = nil
	if err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// Reopen re-establishes the connection to whatever file now lives at the
// store path. No-op if the handle is already open.
func (h *Handle) Reopen(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db != nil {
		return nil
	}
	conn, err := Open(ctx, h.cfg)
	if err != nil {
		return fmt.Errorf("reopen store: %w", err)
	}
	h.db = conn
	h.writer = NewWorker(conn)
	return nil
}
