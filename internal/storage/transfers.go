package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/devblac/chain-extractor/internal/source"
)

// Transfer is a stored transfer event.
type Transfer struct {
	source.TransferEvent `yaml:",inline"`
	Seq                  int  `json:"seq" yaml:"seq"`
	Confirmed            bool `json:"confirmed" yaml:"confirmed"`
}

// InsertTransfers stores the transfers of block idempotently. Rows are keyed by
// blockchain, tx hash, provider, direction and their ordinal within that group, so
// replaying a block writes nothing new; a confirmed write marks existing rows confirmed.
func (s *Store) InsertTransfers(ctx context.Context, blockchain string, mode Mode, block source.ExtractedBlock) error {
	if len(block.Transfers) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO transfers (blockchain, tx_hash, provider, direction, seq, block_number, block_time,
  address, currency, amount, raw_amount, log_index, memo, confirmed)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(blockchain, tx_hash, provider, direction, seq) DO UPDATE SET
  confirmed = MAX(confirmed, excluded.confirmed),
  updated_at = CURRENT_TIMESTAMP;
`)
		if err != nil {
			return fmt.Errorf("prepare insert transfer: %w", err)
		}
		defer stmt.Close()

		seqs := map[string]int{}
		for _, ev := range block.Transfers {
			key := ev.TxHash + "|" + ev.Provider + "|" + string(ev.Direction)
			seq := seqs[key]
			seqs[key] = seq + 1

			var currency string
			if ev.Currency != nil {
				currency = ev.Currency.ID
			}
			var logIndex any
			if ev.Index != nil {
				logIndex = int64(*ev.Index)
			}
			if _, err := stmt.ExecContext(ctx, blockchain, ev.TxHash, ev.Provider, ev.Direction, seq,
				ev.Number, ev.Timestamp, ev.Address, nullString(currency), ev.Amount,
				nullString(ev.RawAmount), logIndex, nullString(ev.Memo), boolInt(mode.Confirmed())); err != nil {
				return fmt.Errorf("insert transfer %s: %w", ev.TxHash, err)
			}
		}
		return nil
	})
}

// ListTransfers returns stored transfers of blockchain in block order. A limit <= 0 returns all.
func (s *Store) ListTransfers(ctx context.Context, blockchain string, limit int) ([]Transfer, error) {
	query := `
SELECT tx_hash, provider, direction, seq, block_number, block_time, address,
  COALESCE(currency, ''), amount, COALESCE(raw_amount, ''), log_index, COALESCE(memo, ''), confirmed
FROM transfers WHERE blockchain = ?
ORDER BY block_number, rowid`
	args := []any{blockchain}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query+";", args...)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var out []Transfer
	for rows.Next() {
		var (
			t         Transfer
			currency  string
			logIndex  sql.NullInt64
			confirmed int
		)
		if err := rows.Scan(&t.TxHash, &t.Provider, &t.Direction, &t.Seq, &t.Number, &t.Timestamp,
			&t.Address, &currency, &t.Amount, &t.RawAmount, &logIndex, &t.Memo, &confirmed); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		t.Blockchain = blockchain
		if currency != "" {
			t.Currency = &source.Currency{ID: currency}
		}
		if logIndex.Valid {
			idx := uint(logIndex.Int64)
			t.Index = &idx
		}
		t.Confirmed = confirmed != 0
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return out, nil
}
