package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polytrack/polytrack/internal/domain"
)

// SignalStore implements domain.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *pgxpool.Pool
}

var _ domain.SignalStore = (*SignalStore)(nil)

// NewSignalStore creates a new SignalStore backed by the given pool.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

const signalSelectCols = `id, address, market_id, outcome_side, net_usdc,
	block_number, created_at`

func scanSignalRows(rows pgx.Rows) ([]domain.Signal, error) {
	var signals []domain.Signal
	for rows.Next() {
		var (
			s     domain.Signal
			block int64
		)
		if err := rows.Scan(
			&s.ID, &s.Address, &s.MarketID, &s.OutcomeSide, &s.NetUSDC,
			&block, &s.CreatedAt,
		); err != nil {
			return nil, err
		}
		s.Timestamp = uint64(block)
		signals = append(signals, s)
	}
	return signals, rows.Err()
}

// UpsertBatch inserts signals by deterministic ID. Regenerating a window
// refreshes the net amount rather than duplicating the signal. Returns the
// number of rows actually created.
func (s *SignalStore) UpsertBatch(ctx context.Context, signals []domain.Signal) (int64, error) {
	if len(signals) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO signals (
			id, address, market_id, outcome_side, net_usdc, block_number, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		) ON CONFLICT (id) DO UPDATE SET
			net_usdc = EXCLUDED.net_usdc
		RETURNING (xmax = 0) AS inserted`

	for _, sig := range signals {
		batch.Queue(query,
			sig.ID, sig.Address, sig.MarketID, sig.OutcomeSide,
			sig.NetUSDC, int64(sig.Timestamp), sig.CreatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	var created int64
	for i := range signals {
		var inserted bool
		if err := br.QueryRow().Scan(&inserted); err != nil {
			return created, fmt.Errorf("postgres: upsert signal batch item %d: %w", i, err)
		}
		if inserted {
			created++
		}
	}
	return created, nil
}

// ListSince returns signals at or after minBlock, strongest first.
func (s *SignalStore) ListSince(ctx context.Context, minBlock uint64) ([]domain.Signal, error) {
	query := `SELECT ` + signalSelectCols + ` FROM signals
		WHERE block_number >= $1 ORDER BY net_usdc DESC, id ASC`
	rows, err := s.pool.Query(ctx, query, int64(minBlock))
	if err != nil {
		return nil, fmt.Errorf("postgres: list signals: %w", err)
	}
	defer rows.Close()

	signals, err := scanSignalRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan signals: %w", err)
	}
	return signals, nil
}

// ListByAddress returns one address's signals, newest first.
func (s *SignalStore) ListByAddress(ctx context.Context, address string) ([]domain.Signal, error) {
	query := `SELECT ` + signalSelectCols + ` FROM signals
		WHERE address = $1 ORDER BY block_number DESC`
	rows, err := s.pool.Query(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("postgres: list signals by address: %w", err)
	}
	defer rows.Close()

	signals, err := scanSignalRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan signals by address: %w", err)
	}
	return signals, nil
}
