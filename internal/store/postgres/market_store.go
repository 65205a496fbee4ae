package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polytrack/polytrack/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

var _ domain.MarketStore = (*MarketStore)(nil)

// NewMarketStore creates a new MarketStore backed by the given pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketSelectCols = `id, question, slug, condition_id, token_yes,
	token_no, price_yes, price_no, volume, liquidity, end_date, active,
	updated_at`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	err := row.Scan(
		&m.ID, &m.Question, &m.Slug, &m.ConditionID, &m.TokenYes,
		&m.TokenNo, &m.PriceYes, &m.PriceNo, &m.Volume, &m.Liquidity,
		&m.EndDate, &m.Active, &m.UpdatedAt,
	)
	return m, err
}

// UpsertBatch refreshes the market catalogue. Every catalogue field is a
// snapshot of the upstream API, so conflicts overwrite wholesale.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) (int64, error) {
	if len(markets) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO markets (
			id, question, slug, condition_id, token_yes, token_no,
			price_yes, price_no, volume, liquidity, end_date, active, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		) ON CONFLICT (id) DO UPDATE SET
			question = EXCLUDED.question,
			slug = EXCLUDED.slug,
			condition_id = EXCLUDED.condition_id,
			token_yes = EXCLUDED.token_yes,
			token_no = EXCLUDED.token_no,
			price_yes = EXCLUDED.price_yes,
			price_no = EXCLUDED.price_no,
			volume = EXCLUDED.volume,
			liquidity = EXCLUDED.liquidity,
			end_date = EXCLUDED.end_date,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	for _, m := range markets {
		updatedAt := m.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = now
		}
		batch.Queue(query,
			m.ID, m.Question, m.Slug, m.ConditionID, m.TokenYes, m.TokenNo,
			m.PriceYes, m.PriceNo, m.Volume, m.Liquidity, m.EndDate,
			m.Active, updatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	var written int64
	for i := range markets {
		tag, err := br.Exec()
		if err != nil {
			return written, fmt.Errorf("postgres: upsert market batch item %d: %w", i, err)
		}
		written += tag.RowsAffected()
	}
	return written, nil
}

// GetByID returns one market from the catalogue.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	query := `SELECT ` + marketSelectCols + ` FROM markets WHERE id = $1`
	m, err := scanMarket(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market: %w", err)
	}
	return m, nil
}

// TokenMap rebuilds the token lookup table from the persisted catalogue.
// Used by serve-only processes when the cache is cold.
func (s *MarketStore) TokenMap(ctx context.Context) (domain.TokenMap, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, token_yes, token_no FROM markets`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load token map: %w", err)
	}
	defer rows.Close()

	out := make(domain.TokenMap)
	for rows.Next() {
		var id, yes, no string
		if err := rows.Scan(&id, &yes, &no); err != nil {
			return nil, fmt.Errorf("postgres: scan token map row: %w", err)
		}
		if yes != "" {
			out[yes] = domain.TokenInfo{MarketID: id, Outcome: domain.OutcomeYes}
		}
		if no != "" {
			out[no] = domain.TokenInfo{MarketID: id, Outcome: domain.OutcomeNo}
		}
	}
	return out, rows.Err()
}

// Count returns the catalogue size.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return n, nil
}
