package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a blockchain record does not exist.
var ErrNotFound = errors.New("blockchain not found")

// Store wraps SQLite-backed persistence for blockchain records, cursors and transfers.
type Store struct {
	db *sql.DB
}

// Open initializes a SQLite database and runs minimal schema setup.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := configure(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	return s.db.PingContext(ctx)
}

func configure(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("set pragma %q: %w", p, err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	schema := `
CREATE TABLE IF NOT EXISTS blockchains (
  name                      TEXT PRIMARY KEY,
  symbol                    TEXT NOT NULL,
  block_interval_seconds    INTEGER NOT NULL DEFAULT 1,
  confirmations             INTEGER NOT NULL DEFAULT 0,
  enabled                   INTEGER NOT NULL DEFAULT 1,
  adapt_concurrently        INTEGER NOT NULL DEFAULT 1,
  options_json              TEXT NOT NULL DEFAULT '{}',
  dirty_processed_block     INTEGER NOT NULL DEFAULT 0,
  confirmed_processed_block INTEGER NOT NULL DEFAULT 0,
  rescan_active             INTEGER NOT NULL DEFAULT 0,
  rescan_processed_block    INTEGER NOT NULL DEFAULT 0,
  rescan_target_block       INTEGER NOT NULL DEFAULT 0,
  updated_at                TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS transfers (
  blockchain    TEXT NOT NULL,
  tx_hash       TEXT NOT NULL,
  provider      TEXT NOT NULL,
  direction     TEXT NOT NULL,
  seq           INTEGER NOT NULL,
  block_number  INTEGER NOT NULL,
  block_time    INTEGER NOT NULL,
  address       TEXT NOT NULL,
  currency      TEXT,
  amount        TEXT NOT NULL,
  raw_amount    TEXT,
  log_index     INTEGER,
  memo          TEXT,
  confirmed     INTEGER NOT NULL DEFAULT 0,
  created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY(blockchain, tx_hash, provider, direction, seq)
);

CREATE INDEX IF NOT EXISTS transfers_block ON transfers(blockchain, block_number);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// WithTx executes a callback inside a transaction for callers needing atomicity.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
