package memory

import (
	"context"
	"sync"
	"time"

	"github.com/stockguard/server/internal/guard/store"
)

type AuditLogStore struct {
	mu      sync.Mutex
	entries []store.AuditEntry
	err     error
}

func NewAuditLogStore() *AuditLogStore {
	return &AuditLogStore{}
}

func (s *AuditLogStore) Append(_ context.Context, e store.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.entries = append(s.entries, e)
	return nil
}

// Entries returns a copy of everything appended so far.
func (s *AuditLogStore) Entries() []store.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.AuditEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// FailWith makes subsequent Append calls return err (nil restores normal
// behavior). Lets tests exercise the audit-is-best-effort contract.
func (s *AuditLogStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
