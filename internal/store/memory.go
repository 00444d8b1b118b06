package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/codox/token-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[model.AccountID][]byte
	ledger   []model.LedgerEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[model.AccountID][]byte),
	}
}

func (s *MemoryStore) GetAccount(_ context.Context, key model.AccountID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.accounts[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Commit(_ context.Context, records []model.AccountRecord, entries []model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store copies to avoid external mutation.
	for _, r := range records {
		s.accounts[r.Key] = append([]byte(nil), r.Data...)
	}
	s.ledger = append(s.ledger, entries...)
	return nil
}

func (s *MemoryStore) GetLedgerEntries(_ context.Context, account model.AccountID) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LedgerEntry
	for _, e := range s.ledger {
		if e.Source == account || e.Destination == account {
			result = append(result, e)
		}
	}
	return result, nil
}
