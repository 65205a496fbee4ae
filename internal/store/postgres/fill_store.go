package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polytrack/polytrack/internal/domain"
)

// FillStore implements domain.FillStore using PostgreSQL.
type FillStore struct {
	pool *pgxpool.Pool
}

var _ domain.FillStore = (*FillStore)(nil)

// NewFillStore creates a new FillStore backed by the given connection pool.
func NewFillStore(pool *pgxpool.Pool) *FillStore {
	return &FillStore{pool: pool}
}

const fillSelectCols = `address, market_id, outcome_side, shares_delta,
	cash_delta_usdc, price, block_number, tx_hash, log_index, role`

func scanFillRows(rows pgx.Rows) ([]domain.Fill, error) {
	var fills []domain.Fill
	for rows.Next() {
		var (
			f        domain.Fill
			block    int64
			logIndex int32
		)
		if err := rows.Scan(
			&f.Address, &f.MarketID, &f.OutcomeSide, &f.SharesDelta,
			&f.CashDeltaUSDC, &f.Price, &block, &f.TxHash, &logIndex, &f.Role,
		); err != nil {
			return nil, err
		}
		f.Timestamp = uint64(block)
		f.LogIndex = uint(logIndex)
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// UpsertBatch inserts fills using pgx Batch. Duplicates on
// (tx_hash, log_index, role) are skipped, which makes window replays safe.
// Returns the number of rows actually inserted.
func (s *FillStore) UpsertBatch(ctx context.Context, fills []domain.Fill) (int64, error) {
	if len(fills) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO fills (
			address, market_id, outcome_side, shares_delta,
			cash_delta_usdc, price, block_number, tx_hash, log_index, role
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10
		) ON CONFLICT (tx_hash, log_index, role) DO NOTHING`

	for _, f := range fills {
		batch.Queue(query,
			f.Address, f.MarketID, f.OutcomeSide, f.SharesDelta,
			f.CashDeltaUSDC, f.Price, int64(f.Timestamp), f.TxHash,
			int32(f.LogIndex), f.Role,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	var inserted int64
	for i := range fills {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("postgres: insert fill batch item %d: %w", i, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// ListAll returns the full fill history in canonical replay order.
func (s *FillStore) ListAll(ctx context.Context) ([]domain.Fill, error) {
	query := `SELECT ` + fillSelectCols + ` FROM fills ORDER BY block_number ASC, log_index ASC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills: %w", err)
	}
	defer rows.Close()

	fills, err := scanFillRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan fills: %w", err)
	}
	return fills, nil
}

// ListByAddress returns one address's fills in canonical replay order.
func (s *FillStore) ListByAddress(ctx context.Context, address string) ([]domain.Fill, error) {
	query := `SELECT ` + fillSelectCols + ` FROM fills
		WHERE address = $1 ORDER BY block_number ASC, log_index ASC`
	rows, err := s.pool.Query(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills by address: %w", err)
	}
	defer rows.Close()

	fills, err := scanFillRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan fills by address: %w", err)
	}
	return fills, nil
}

// LatestBlock returns the highest stored fill block, or zero when no fills
// exist yet.
func (s *FillStore) LatestBlock(ctx context.Context) (uint64, error) {
	var block *int64
	err := s.pool.QueryRow(ctx, "SELECT MAX(block_number) FROM fills").Scan(&block)
	if err != nil {
		return 0, fmt.Errorf("postgres: latest fill block: %w", err)
	}
	if block == nil {
		return 0, nil
	}
	return uint64(*block), nil
}
