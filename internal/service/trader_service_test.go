package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytrack/polytrack/internal/domain"
)

type memMarketStore struct {
	domain.MarketStore
	markets map[string]domain.Market
}

func (m *memMarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	mk, ok := m.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return mk, nil
}

func TestGetSmartTradersClampsLimit(t *testing.T) {
	traders := &memTraderStore{}
	for i := 0; i < 3; i++ {
		_, err := traders.UpsertBatch(context.Background(), []domain.ScoredTrader{{
			TraderStats: domain.TraderStats{Address: string(rune('a' + i))},
		}})
		require.NoError(t, err)
	}
	svc := NewTraderService(traders, &memFillStore{}, &memSignalStore{}, nil, testLogger())

	out, err := svc.GetSmartTraders(context.Background(), 0, "", "")
	require.NoError(t, err)
	assert.Len(t, out, 3, "zero limit falls back to the default")

	out, err = svc.GetSmartTraders(context.Background(), 2, "score", domain.ViewAll)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestGetTraderDetailReplaysPositions(t *testing.T) {
	traders := &memTraderStore{}
	_, err := traders.UpsertBatch(context.Background(), []domain.ScoredTrader{{
		TraderStats: domain.TraderStats{Address: testAddr},
		Score:       0.5,
	}})
	require.NoError(t, err)

	fills := &memFillStore{fills: []domain.Fill{
		{
			Address:       testAddr,
			MarketID:      "mkt-open",
			OutcomeSide:   domain.OutcomeYes,
			SharesDelta:   100,
			CashDeltaUSDC: -40,
			Price:         0.40,
			Timestamp:     1,
		},
		{
			Address:       testAddr,
			MarketID:      "mkt-closed",
			OutcomeSide:   domain.OutcomeYes,
			SharesDelta:   50,
			CashDeltaUSDC: -25,
			Price:         0.50,
			Timestamp:     2,
		},
		{
			Address:       testAddr,
			MarketID:      "mkt-closed",
			OutcomeSide:   domain.OutcomeYes,
			SharesDelta:   -50,
			CashDeltaUSDC: 30,
			Price:         0.60,
			Timestamp:     3,
		},
	}}

	markets := &memMarketStore{markets: map[string]domain.Market{
		"mkt-open": {ID: "mkt-open", Question: "Will it settle?"},
	}}
	svc := NewTraderService(traders, fills, &memSignalStore{}, markets, testLogger())

	// Mixed-case input resolves to the canonical lower-cased address.
	detail, err := svc.GetTraderDetail(context.Background(), "0xAA00000000000000000000000000000000000001")
	require.NoError(t, err)

	assert.Equal(t, testAddr, detail.Trader.Address)
	require.Len(t, detail.Positions, 2)
	assert.Equal(t, "mkt-open", detail.Positions[0].MarketID, "open positions sort first")
	assert.Equal(t, "Will it settle?", detail.Positions[0].Question)
	assert.True(t, detail.Positions[1].Closed())
	assert.Empty(t, detail.Positions[1].Question, "markets missing from the catalogue render without one")
}

func TestGetTraderDetailUnknownAddress(t *testing.T) {
	svc := NewTraderService(&memTraderStore{}, &memFillStore{}, &memSignalStore{}, nil, testLogger())
	_, err := svc.GetTraderDetail(context.Background(), "0xdead")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetRecentSignalsWindow(t *testing.T) {
	signals := &memSignalStore{}
	_, err := signals.UpsertBatch(context.Background(), []domain.Signal{
		{ID: "old", Timestamp: 100},
		{ID: "new", Timestamp: 9_500},
	})
	require.NoError(t, err)

	fills := &memFillStore{fills: []domain.Fill{{Timestamp: 10_000}}}
	svc := NewSignalService(signals, fills, 1000, testLogger())

	// 5 hours at 1000 blocks/hour reaches back to block 5000.
	out, err := svc.GetRecentSignals(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "new", out[0].ID)
}
