package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stockguard/server/internal/guard/store"
)

// ClearRequestStore is a mutex-guarded in-memory ledger with the same
// compare-and-set semantics as the SQLite implementation.
type ClearRequestStore struct {
	mu   sync.Mutex
	data map[string]store.ClearRequestRecord
}

func NewClearRequestStore() *ClearRequestStore {
	return &ClearRequestStore{data: make(map[string]store.ClearRequestRecord)}
}

func (s *ClearRequestStore) Create(_ context.Context, rec store.ClearRequestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	if rec.Status == "" {
		rec.Status = store.StatusPending
	}
	if _, exists := s.data[rec.ID]; exists {
		return store.ErrConflict
	}
	s.data[rec.ID] = rec
	return nil
}

func (s *ClearRequestStore) Get(_ context.Context, id string) (store.ClearRequestRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[id]
	if !ok {
		return store.ClearRequestRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *ClearRequestStore) ListAwaitingAuthorizer(_ context.Context) ([]store.ClearRequestRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.ClearRequestRecord
	for _, rec := range s.data {
		if rec.Status == store.StatusPending && rec.InitiatorConfirmations == 5 {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// All returns every record in the ledger, in no particular order. Test
// inspection helper, not part of the store interface.
func (s *ClearRequestStore) All() []store.ClearRequestRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.ClearRequestRecord, 0, len(s.data))
	for _, rec := range s.data {
		out = append(out, rec)
	}
	return out
}

func (s *ClearRequestStore) IncrementInitiatorConfirmations(_ context.Context, id string, from int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[id]
	if !ok || rec.Status != store.StatusPending || rec.InitiatorConfirmations != from {
		return store.ErrConflict
	}
	rec.InitiatorConfirmations++
	rec.UpdatedAt = time.Now().UTC()
	s.data[id] = rec
	return nil
}

func (s *ClearRequestStore) IncrementAuthorizerConfirmations(_ context.Context, id string, from int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[id]
	if !ok || rec.Status != store.StatusPending ||
		rec.InitiatorConfirmations != 5 || rec.AuthorizerConfirmations != from {
		return store.ErrConflict
	}
	rec.AuthorizerConfirmations++
	rec.UpdatedAt = time.Now().UTC()
	s.data[id] = rec
	return nil
}

func (s *ClearRequestStore) SetStatus(_ context.Context, id string, from, to store.RequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[id]
	if !ok || rec.Status != from {
		return store.ErrConflict
	}
	rec.Status = to
	rec.UpdatedAt = time.Now().UTC()
	s.data[id] = rec
	return nil
}

func (s *ClearRequestStore) Complete(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[id]
	if !ok || rec.Status != store.StatusPending {
		return store.ErrConflict
	}
	t := at.UTC()
	rec.Status = store.StatusCompleted
	rec.CompletedAt = &t
	rec.UpdatedAt = t
	s.data[id] = rec
	return nil
}
