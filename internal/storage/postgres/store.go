package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"swapdesk/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS tx_journal (
	id           BIGSERIAL PRIMARY KEY,
	chain_id     BIGINT      NOT NULL,
	slot         TEXT        NOT NULL,
	kind         TEXT        NOT NULL,
	account      TEXT        NOT NULL,
	tx_hash      TEXT,
	block_number BIGINT,
	state        TEXT        NOT NULL,
	reason       TEXT,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS tx_journal_hash_uniq
	ON tx_journal (chain_id, tx_hash) WHERE tx_hash IS NOT NULL;
CREATE INDEX IF NOT EXISTS tx_journal_account_idx
	ON tx_journal (chain_id, account, finished_at DESC);
`

// Store provides Postgres persistence for the transaction journal.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the journal table and indexes when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Append inserts records. A record for an already journaled transaction
// hash updates the outcome in place.
func (s *Store) Append(ctx context.Context, records []model.TxRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range records {
		startedAt, err := time.Parse(time.RFC3339Nano, rec.StartedAt)
		if err != nil {
			return fmt.Errorf("parse started_at: %w", err)
		}
		finishedAt, err := time.Parse(time.RFC3339Nano, rec.FinishedAt)
		if err != nil {
			return fmt.Errorf("parse finished_at: %w", err)
		}
		batch.Queue(`
			INSERT INTO tx_journal (
				chain_id, slot, kind, account, tx_hash, block_number, state, reason, started_at, finished_at
			) VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6::BIGINT, 0), $7, NULLIF($8, ''), $9, $10)
			ON CONFLICT (chain_id, tx_hash) WHERE tx_hash IS NOT NULL
			DO UPDATE SET
				block_number = EXCLUDED.block_number,
				state = EXCLUDED.state,
				reason = EXCLUDED.reason,
				finished_at = EXCLUDED.finished_at
		`,
			int64(rec.ChainID),
			rec.Slot,
			string(rec.Kind),
			rec.Account,
			rec.TxHash,
			int64(rec.BlockNumber),
			rec.State,
			rec.Reason,
			startedAt,
			finishedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("append tx record: %w", err)
		}
	}
	return nil
}

// Recent returns the newest records of account, newest first.
func (s *Store) Recent(ctx context.Context, chainID uint64, account string, limit int) ([]model.TxRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT chain_id, slot, kind, account, COALESCE(tx_hash, ''), COALESCE(block_number, 0),
			state, COALESCE(reason, ''), started_at, finished_at
		FROM tx_journal
		WHERE chain_id = $1 AND account = $2
		ORDER BY finished_at DESC
		LIMIT $3
	`, int64(chainID), account, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []model.TxRecord
	for rows.Next() {
		var (
			rec         model.TxRecord
			chain       int64
			kind        string
			blockNumber int64
			startedAt   time.Time
			finishedAt  time.Time
		)
		if err := rows.Scan(&chain, &rec.Slot, &kind, &rec.Account, &rec.TxHash, &blockNumber,
			&rec.State, &rec.Reason, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		rec.ChainID = uint64(chain)
		rec.Kind = model.IntentKind(kind)
		rec.BlockNumber = uint64(blockNumber)
		rec.StartedAt = startedAt.UTC().Format(time.RFC3339Nano)
		rec.FinishedAt = finishedAt.UTC().Format(time.RFC3339Nano)
		out = append(out, rec)
	}
	return out, rows.Err()
}
