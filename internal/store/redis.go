package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codox/token-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
//
// Every commit bumps a per-account generation key. A cache fill watches that
// key, so a fill racing a commit is discarded instead of caching the bytes
// the commit replaced.
type CachedStore struct {
	log     *slog.Logger
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(log *slog.Logger, primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		log:     log,
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// Primary returns the store behind the cache.
func (s *CachedStore) Primary() Store { return s.primary }

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) Commit(ctx context.Context, records []model.AccountRecord, entries []model.LedgerEntry) error {
	if err := s.primary.Commit(ctx, records, entries); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	// The commit is durable at this point. A failed invalidation leaves
	// stale entries until the TTL expires; only queries read them.
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, r := range records {
			p.Incr(ctx, generationKey(r.Key))
			p.Del(ctx, accountKey(r.Key))
		}
		return nil
	})
	if err != nil {
		s.log.Error("cache invalidation failed", "accounts", len(records), "error", err)
	}
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetAccount(ctx context.Context, key model.AccountID) ([]byte, error) {
	data, err := s.rdb.Get(ctx, accountKey(key)).Bytes()
	if err == nil {
		return data, nil
	}

	// Cache miss: read from primary under a watch on the generation key.
	// Missing accounts are not cached.
	var primaryErr error
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		data, primaryErr = s.primary.GetAccount(ctx, key)
		if primaryErr != nil {
			return primaryErr
		}
		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, accountKey(key), data, s.ttl)
			return nil
		})
		return err
	}, generationKey(key))
	if primaryErr != nil {
		return nil, primaryErr
	}
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, redis.TxFailedErr) {
		s.log.Warn("cache fill failed", "key", key.String(), "error", err)
	}
	// A commit raced the fill, or Redis is failing: serve the primary
	// without caching.
	return s.primary.GetAccount(ctx, key)
}

// --- Passthrough (not cached) ---

func (s *CachedStore) GetLedgerEntries(ctx context.Context, account model.AccountID) ([]model.LedgerEntry, error) {
	return s.primary.GetLedgerEntries(ctx, account)
}

// Ping checks the cache connection.
func (s *CachedStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func accountKey(key model.AccountID) string    { return "account:" + key.String() }
func generationKey(key model.AccountID) string { return "account-gen:" + key.String() }
