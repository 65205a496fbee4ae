package pipeline

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytrack/polytrack/internal/domain"
)

func TestNormalizeBuy(t *testing.T) {
	trades := []domain.ResolvedTrade{{
		DecodedTrade: domain.DecodedTrade{
			Maker:       "0xAA00000000000000000000000000000000000001",
			MakerAmount: big.NewInt(100_000000),
			TakerAmount: big.NewInt(40_000000),
			BlockNumber: 123,
			TxHash:      "0xdead",
			LogIndex:    7,
		},
		MarketID:  "mkt-1",
		Outcome:   domain.OutcomeYes,
		Direction: domain.DirectionBuy,
		Price:     0.40,
	}}

	fills := Normalize(trades)
	require.Len(t, fills, 1)

	f := fills[0]
	assert.InDelta(t, 100.0, f.SharesDelta, 1e-9)
	assert.InDelta(t, -40.0, f.CashDeltaUSDC, 1e-9)
	assert.InDelta(t, 0.40, f.Price, 1e-9)
	assert.Equal(t, "0xaa00000000000000000000000000000000000001", f.Address)
	assert.Equal(t, uint64(123), f.Timestamp)
	assert.Equal(t, uint(7), f.LogIndex)
}

func TestNormalizeSell(t *testing.T) {
	trades := []domain.ResolvedTrade{{
		DecodedTrade: domain.DecodedTrade{
			OriginFrom:  "0xbb00000000000000000000000000000000000002",
			MakerAmount: big.NewInt(35_000000),
			TakerAmount: big.NewInt(50_000000),
		},
		Direction: domain.DirectionSell,
		Price:     0.70,
	}}

	fills := Normalize(trades)
	require.Len(t, fills, 1)

	f := fills[0]
	assert.InDelta(t, -50.0, f.SharesDelta, 1e-9)
	assert.InDelta(t, 35.0, f.CashDeltaUSDC, 1e-9)
	assert.Equal(t, "0xbb00000000000000000000000000000000000002", f.Address)
}

func TestNormalizeSignInvariant(t *testing.T) {
	trades := []domain.ResolvedTrade{
		{
			DecodedTrade: domain.DecodedTrade{MakerAmount: big.NewInt(1_000000), TakerAmount: big.NewInt(500000)},
			Direction:    domain.DirectionBuy,
		},
		{
			DecodedTrade: domain.DecodedTrade{MakerAmount: big.NewInt(500000), TakerAmount: big.NewInt(1_000000)},
			Direction:    domain.DirectionSell,
		},
	}

	for _, f := range Normalize(trades) {
		assert.True(t, f.SharesDelta*f.CashDeltaUSDC < 0,
			"shares and cash deltas must carry opposite signs")
	}
}

func TestNormalizePriceFallback(t *testing.T) {
	trades := []domain.ResolvedTrade{{
		DecodedTrade: domain.DecodedTrade{
			MakerAmount: big.NewInt(200_000000),
			TakerAmount: big.NewInt(90_000000),
		},
		Direction: domain.DirectionBuy,
		Price:     0,
	}}

	fills := Normalize(trades)
	require.Len(t, fills, 1)
	assert.InDelta(t, 0.45, fills[0].Price, 1e-9)
}
