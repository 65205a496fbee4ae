package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polytrack/polytrack/internal/domain"
)

// TraderStatsStore implements domain.TraderStatsStore using PostgreSQL.
type TraderStatsStore struct {
	pool *pgxpool.Pool
}

var _ domain.TraderStatsStore = (*TraderStatsStore)(nil)

// NewTraderStatsStore creates a new TraderStatsStore backed by the given pool.
func NewTraderStatsStore(pool *pgxpool.Pool) *TraderStatsStore {
	return &TraderStatsStore{pool: pool}
}

// sortColumns whitelists the ListTop sort fields. User input never reaches
// the ORDER BY clause directly.
var sortColumns = map[string]string{
	"score":        "score",
	"realized_pnl": "realized_pnl",
	"roi":          "roi",
	"volume":       "volume_usdc",
	"win_rate":     "win_rate",
	"trades":       "trades_count",
}

const traderSelectCols = `address, trades_count, markets_count, volume_usdc,
	realized_pnl, total_buy_cost, roi, closed_markets_count, win_markets_count,
	win_rate, score, tags, origin_type, is_relayer, has_deposit,
	net_deposit_usdc, updated_at`

func scanTraderRows(rows pgx.Rows) ([]domain.ScoredTrader, error) {
	var traders []domain.ScoredTrader
	for rows.Next() {
		var t domain.ScoredTrader
		if err := rows.Scan(
			&t.Address, &t.TradesCount, &t.MarketsCount, &t.VolumeUSDC,
			&t.RealizedPnL, &t.TotalBuyCost, &t.ROI, &t.ClosedMarketsCount,
			&t.WinMarketsCount, &t.WinRate, &t.Score, &t.Tags, &t.OriginType,
			&t.IsRelayer, &t.HasDeposit, &t.NetDepositUSDC, &t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		traders = append(traders, t)
	}
	return traders, rows.Err()
}

// UpsertBatch replaces trader aggregates wholesale. Aggregates are a pure
// function of the fill history, so every column is overwritten on conflict.
func (s *TraderStatsStore) UpsertBatch(ctx context.Context, traders []domain.ScoredTrader) (int64, error) {
	if len(traders) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO trader_stats (
			address, trades_count, markets_count, volume_usdc,
			realized_pnl, total_buy_cost, roi, closed_markets_count,
			win_markets_count, win_rate, score, tags, origin_type,
			is_relayer, has_deposit, net_deposit_usdc, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		) ON CONFLICT (address) DO UPDATE SET
			trades_count = EXCLUDED.trades_count,
			markets_count = EXCLUDED.markets_count,
			volume_usdc = EXCLUDED.volume_usdc,
			realized_pnl = EXCLUDED.realized_pnl,
			total_buy_cost = EXCLUDED.total_buy_cost,
			roi = EXCLUDED.roi,
			closed_markets_count = EXCLUDED.closed_markets_count,
			win_markets_count = EXCLUDED.win_markets_count,
			win_rate = EXCLUDED.win_rate,
			score = EXCLUDED.score,
			tags = EXCLUDED.tags,
			origin_type = EXCLUDED.origin_type,
			is_relayer = EXCLUDED.is_relayer,
			has_deposit = EXCLUDED.has_deposit,
			net_deposit_usdc = EXCLUDED.net_deposit_usdc,
			updated_at = EXCLUDED.updated_at`

	for _, t := range traders {
		tags := t.Tags
		if tags == nil {
			tags = []string{}
		}
		batch.Queue(query,
			t.Address, t.TradesCount, t.MarketsCount, t.VolumeUSDC,
			t.RealizedPnL, t.TotalBuyCost, t.ROI, t.ClosedMarketsCount,
			t.WinMarketsCount, t.WinRate, t.Score, tags, string(t.OriginType),
			t.IsRelayer, t.HasDeposit, t.NetDepositUSDC, t.UpdatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	var written int64
	for i := range traders {
		tag, err := br.Exec()
		if err != nil {
			return written, fmt.Errorf("postgres: upsert trader batch item %d: %w", i, err)
		}
		written += tag.RowsAffected()
	}
	return written, nil
}

// GetByAddress returns one trader's aggregate.
func (s *TraderStatsStore) GetByAddress(ctx context.Context, address string) (domain.ScoredTrader, error) {
	query := `SELECT ` + traderSelectCols + ` FROM trader_stats WHERE address = $1`
	rows, err := s.pool.Query(ctx, query, address)
	if err != nil {
		return domain.ScoredTrader{}, fmt.Errorf("postgres: get trader: %w", err)
	}
	defer rows.Close()

	traders, err := scanTraderRows(rows)
	if err != nil {
		return domain.ScoredTrader{}, fmt.Errorf("postgres: scan trader: %w", err)
	}
	if len(traders) == 0 {
		return domain.ScoredTrader{}, domain.ErrNotFound
	}
	return traders[0], nil
}

// ListTop returns the leaderboard sorted by the whitelisted field. An
// unknown sort field is an error rather than a silent default.
func (s *TraderStatsStore) ListTop(ctx context.Context, limit int, sortField string, view domain.ViewFilter) ([]domain.ScoredTrader, error) {
	col, ok := sortColumns[sortField]
	if !ok {
		return nil, fmt.Errorf("postgres: unknown sort field %q", sortField)
	}

	query := `SELECT ` + traderSelectCols + ` FROM trader_stats`
	if view == domain.ViewRetail {
		query += ` WHERE origin_type = 'EOA' AND is_relayer = FALSE AND has_deposit = TRUE`
	}
	query += fmt.Sprintf(" ORDER BY %s DESC LIMIT $1", col)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list top traders: %w", err)
	}
	defer rows.Close()

	traders, err := scanTraderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan top traders: %w", err)
	}
	return traders, nil
}

// SmartAddresses returns the set of addresses with a positive score. Signal
// generation only listens to addresses the scorer endorses.
func (s *TraderStatsStore) SmartAddresses(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT address FROM trader_stats WHERE score > 0`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list smart addresses: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("postgres: scan smart address: %w", err)
		}
		out[addr] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate smart addresses: %w", err)
	}
	return out, nil
}
