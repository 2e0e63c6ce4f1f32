package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/devblac/chain-extractor/internal/source"
)

// Mode is a confirmation mode with its own persisted cursor.
type Mode string

const (
	ModeDirty     Mode = "dirty"
	ModeConfirmed Mode = "confirmed"
	ModeRescan    Mode = "rescan"
)

// Confirmed reports whether the mode trails the tip by the confirmation depth.
func (m Mode) Confirmed() bool {
	return m == ModeConfirmed || m == ModeRescan
}

func (m Mode) cursorColumn() (string, error) {
	switch m {
	case ModeDirty:
		return "dirty_processed_block", nil
	case ModeConfirmed:
		return "confirmed_processed_block", nil
	case ModeRescan:
		return "rescan_processed_block", nil
	default:
		return "", fmt.Errorf("unknown mode %q", m)
	}
}

// Blockchain is the persisted configuration and progress of one chain.
type Blockchain struct {
	Name                    string         `json:"name" yaml:"name"`
	Symbol                  string         `json:"symbol" yaml:"symbol"`
	BlockIntervalSeconds    int            `json:"block_interval_seconds" yaml:"block_interval_seconds"`
	Confirmations           uint64         `json:"confirmations" yaml:"confirmations"`
	Enabled                 bool           `json:"enabled" yaml:"enabled"`
	AdaptConcurrently       int            `json:"adapt_concurrently" yaml:"adapt_concurrently"`
	Options                 source.Options `json:"options" yaml:"options"`
	DirtyProcessedBlock     uint64         `json:"dirty_processed_block" yaml:"dirty_processed_block"`
	ConfirmedProcessedBlock uint64         `json:"confirmed_processed_block" yaml:"confirmed_processed_block"`
	RescanActive            bool           `json:"rescan_active" yaml:"rescan_active"`
	RescanProcessedBlock    uint64         `json:"rescan_processed_block" yaml:"rescan_processed_block"`
	RescanTargetBlock       uint64         `json:"rescan_target_block" yaml:"rescan_target_block"`
	UpdatedAt               time.Time      `json:"updated_at" yaml:"updated_at"`
}

// Cursor returns the last processed block for mode.
func (b Blockchain) Cursor(mode Mode) uint64 {
	switch mode {
	case ModeDirty:
		return b.DirtyProcessedBlock
	case ModeConfirmed:
		return b.ConfirmedProcessedBlock
	case ModeRescan:
		return b.RescanProcessedBlock
	}
	return 0
}

// BlockInterval is the pause between height polls; at least one second.
func (b Blockchain) BlockInterval() time.Duration {
	if b.BlockIntervalSeconds <= 0 {
		return time.Second
	}
	return time.Duration(b.BlockIntervalSeconds) * time.Second
}

const blockchainColumns = `name, symbol, block_interval_seconds, confirmations, enabled, adapt_concurrently,
  options_json, dirty_processed_block, confirmed_processed_block, rescan_active,
  rescan_processed_block, rescan_target_block, updated_at`

// SeedBlockchain inserts or refreshes a blockchain's configuration. Cursors in b are
// only used on first insert; existing progress is never rewound.
func (s *Store) SeedBlockchain(ctx context.Context, b Blockchain) error {
	if b.Name == "" || b.Symbol == "" {
		return errors.New("blockchain name and symbol required")
	}
	opts, err := json.Marshal(b.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO blockchains (name, symbol, block_interval_seconds, confirmations, enabled, adapt_concurrently,
  options_json, dirty_processed_block, confirmed_processed_block, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(name) DO UPDATE SET
  symbol=excluded.symbol,
  block_interval_seconds=excluded.block_interval_seconds,
  confirmations=excluded.confirmations,
  enabled=excluded.enabled,
  adapt_concurrently=excluded.adapt_concurrently,
  options_json=excluded.options_json,
  updated_at=CURRENT_TIMESTAMP;
`, b.Name, b.Symbol, b.BlockIntervalSeconds, b.Confirmations, boolInt(b.Enabled), b.AdaptConcurrently,
		string(opts), b.DirtyProcessedBlock, b.ConfirmedProcessedBlock)
	if err != nil {
		return fmt.Errorf("seed blockchain %s: %w", b.Name, err)
	}
	return nil
}

// ListBlockchains returns blockchain records ordered by name.
func (s *Store) ListBlockchains(ctx context.Context, enabledOnly bool) ([]Blockchain, error) {
	query := `SELECT ` + blockchainColumns + ` FROM blockchains`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY name;`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list blockchains: %w", err)
	}
	defer rows.Close()

	var out []Blockchain
	for rows.Next() {
		b, err := scanBlockchain(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list blockchains: %w", err)
	}
	return out, nil
}

// GetBlockchain returns one record or ErrNotFound.
func (s *Store) GetBlockchain(ctx context.Context, name string) (Blockchain, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+blockchainColumns+` FROM blockchains WHERE name = ?;`, name)
	b, err := scanBlockchain(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Blockchain{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return b, err
}

// AdvanceCursor moves the mode cursor of name forward to n. Lower or equal values are
// ignored, so the cursor never decreases.
func (s *Store) AdvanceCursor(ctx context.Context, name string, mode Mode, n uint64) error {
	col, err := mode.cursorColumn()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
UPDATE blockchains SET `+col+` = ?, updated_at = CURRENT_TIMESTAMP
WHERE name = ? AND `+col+` < ?;
`, n, name, n)
	if err != nil {
		return fmt.Errorf("advance %s cursor of %s: %w", mode, name, err)
	}
	return nil
}

// StartRescan records a rescan request covering from..to. A zero to follows the tip.
func (s *Store) StartRescan(ctx context.Context, name string, from, to uint64) error {
	if from == 0 {
		return errors.New("rescan start block must be positive")
	}
	if to != 0 && to < from {
		return fmt.Errorf("rescan target %d is below start %d", to, from)
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE blockchains SET
  rescan_active = 1,
  rescan_processed_block = ?,
  rescan_target_block = ?,
  updated_at = CURRENT_TIMESTAMP
WHERE name = ?;
`, from-1, to, name)
	if err != nil {
		return fmt.Errorf("start rescan of %s: %w", name, err)
	}
	return requireAffected(res, name)
}

// FinishRescan clears the rescan request of name.
func (s *Store) FinishRescan(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE blockchains SET rescan_active = 0, updated_at = CURRENT_TIMESTAMP WHERE name = ?;
`, name)
	if err != nil {
		return fmt.Errorf("finish rescan of %s: %w", name, err)
	}
	return requireAffected(res, name)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBlockchain(row scanner) (Blockchain, error) {
	var (
		b           Blockchain
		enabled     int
		rescan      int
		optionsJSON string
	)
	err := row.Scan(&b.Name, &b.Symbol, &b.BlockIntervalSeconds, &b.Confirmations, &enabled,
		&b.AdaptConcurrently, &optionsJSON, &b.DirtyProcessedBlock, &b.ConfirmedProcessedBlock,
		&rescan, &b.RescanProcessedBlock, &b.RescanTargetBlock, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Blockchain{}, err
		}
		return Blockchain{}, fmt.Errorf("scan blockchain: %w", err)
	}
	b.Enabled = enabled != 0
	b.RescanActive = rescan != 0
	if optionsJSON != "" {
		if err := json.Unmarshal([]byte(optionsJSON), &b.Options); err != nil {
			return Blockchain{}, fmt.Errorf("decode options of %s: %w", b.Name, err)
		}
	}
	return b, nil
}

func requireAffected(res sql.Result, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}
