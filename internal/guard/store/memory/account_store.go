package memory

import (
	"context"
	"sync"

	"github.com/stockguard/server/internal/guard/store"
)

type AccountStore struct {
	mu   sync.RWMutex
	data map[string]store.AccountRecord
}

func NewAccountStore(accounts ...store.AccountRecord) *AccountStore {
	s := &AccountStore{data: make(map[string]store.AccountRecord, len(accounts))}
	for _, a := range accounts {
		s.data[a.ID] = a
	}
	return s
}

func (s *AccountStore) Get(_ context.Context, id string) (store.AccountRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[id]
	if !ok {
		return store.AccountRecord{}, store.ErrNotFound
	}
	return rec, nil
}
