// Package store defines the persistence interface for the token engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/codox/token-engine/internal/model"
)

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*CachedStore)(nil)
)

// ErrNotFound is returned when an account has never been written.
var ErrNotFound = errors.New("store: account not found")

// Store is the persistence interface. Accounts are opaque byte records keyed
// by account ID; the store never interprets them.
type Store interface {
	// --- Account records ---

	// GetAccount returns the stored bytes of key, or ErrNotFound.
	GetAccount(ctx context.Context, key model.AccountID) ([]byte, error)

	// Commit writes every record and appends every ledger entry atomically.
	// Either all of them become visible or none do.
	Commit(ctx context.Context, records []model.AccountRecord, entries []model.LedgerEntry) error

	// --- Immutable ledger ---

	// GetLedgerEntries returns the movements touching account, oldest first.
	GetLedgerEntries(ctx context.Context, account model.AccountID) ([]model.LedgerEntry, error)
}

// Layered is implemented by stores that front an authoritative store, such
// as a cache.
type Layered interface {
	Primary() Store
}

// Primary returns the authoritative store behind s, or s itself. Reads that
// feed a write must go to the primary store.
func Primary(s Store) Store {
	for {
		l, ok := s.(Layered)
		if !ok {
			return s
		}
		s = l.Primary()
	}
}
