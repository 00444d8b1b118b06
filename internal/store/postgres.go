package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codox/token-engine/internal/model"
)

// Schema creates the tables PostgresStore uses. Token amounts are u64 and
// are stored as NUMERIC(20,0) so the full range survives.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	key        BYTEA PRIMARY KEY,
	data       BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	seq         BIGSERIAL,
	id          UUID PRIMARY KEY,
	tx_id       UUID NOT NULL,
	instruction TEXT NOT NULL,
	source      BYTEA NOT NULL,
	destination BYTEA NOT NULL,
	authority   BYTEA NOT NULL,
	amount      NUMERIC(20,0) NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS ledger_entries_source_idx ON ledger_entries (source, seq);
CREATE INDEX IF NOT EXISTS ledger_entries_destination_idx ON ledger_entries (destination, seq);
`

// PostgresStore implements Store using PostgreSQL as the source of truth.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *PostgresStore) GetAccount(ctx context.Context, key model.AccountID) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM accounts WHERE key = $1`, key[:]).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", key, err)
	}
	return data, nil
}

func (s *PostgresStore) Commit(ctx context.Context, records []model.AccountRecord, entries []model.LedgerEntry) error {
	if len(records) == 0 && len(entries) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range records {
			batch.Queue(
				`INSERT INTO accounts (key, data, updated_at) VALUES ($1, $2, now())
				 ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
				r.Key[:], r.Data,
			)
		}
		for _, e := range entries {
			batch.Queue(
				`INSERT INTO ledger_entries (id, tx_id, instruction, source, destination, authority, amount, timestamp)
				 VALUES ($1::UUID, $2::UUID, $3, $4, $5, $6, $7::NUMERIC, $8)`,
				e.ID, e.TxID, e.Instruction,
				e.Source[:], e.Destination[:], e.Authority[:],
				strconv.FormatUint(e.Amount, 10), e.Timestamp,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("commit %d records, %d entries: %w", len(records), len(entries), err)
		}
		return nil
	})
}

func (s *PostgresStore) GetLedgerEntries(ctx context.Context, account model.AccountID) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::TEXT, tx_id::TEXT, instruction, source, destination, authority, amount::TEXT, timestamp
		 FROM ledger_entries
		 WHERE source = $1 OR destination = $1
		 ORDER BY seq`, account[:])
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

// scanLedgerEntries reads pgx rows into LedgerEntry slices.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanLedgerEntries(rows pgxRows) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var src, dst, auth []byte
		var amount string

		if err := rows.Scan(&e.ID, &e.TxID, &e.Instruction, &src, &dst, &auth, &amount, &e.Timestamp); err != nil {
			return nil, err
		}

		e.Source = solana.PublicKeyFromBytes(src)
		e.Destination = solana.PublicKeyFromBytes(dst)
		e.Authority = solana.PublicKeyFromBytes(auth)
		v, err := strconv.ParseUint(amount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ledger entry %s amount %q: %w", e.ID, amount, err)
		}
		e.Amount = v

		entries = append(entries, e)
	}
	return entries, rows.Err()
}
