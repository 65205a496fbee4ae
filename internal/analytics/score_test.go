package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytrack/polytrack/internal/domain"
)

func scoreCfg() ScoreConfig {
	return ScoreConfig{
		WeightROI:         0.35,
		WeightWinRate:     0.30,
		WeightVolume:      0.20,
		WeightConsistency: 0.15,
		MinTrades:         5,
		NormVolumeUSDC:    100_000,
		NormROI:           2.0,
		WhaleVolumeUSDC:   10_000,
		HighROIThreshold:  0.5,
		ConsistentWinRate: 0.6,
	}
}

func TestAggregateComputesPerTraderStats(t *testing.T) {
	fills := []domain.Fill{
		buy(100, 0.40, 1, 0),
		sell(100, 0.55, 2, 0),
	}
	positions := Replay(fills, testLogger())

	stats := Aggregate(fills, positions)
	require.Len(t, stats, 1)

	s := stats[0]
	assert.Equal(t, addr, s.Address)
	assert.Equal(t, 2, s.TradesCount)
	assert.Equal(t, 1, s.MarketsCount)
	assert.InDelta(t, 95.0, s.VolumeUSDC, 1e-9)
	assert.InDelta(t, 15.0, s.RealizedPnL, 1e-9)
	assert.InDelta(t, 15.0/40.0, s.ROI, 1e-9)
	assert.Equal(t, 1, s.ClosedMarketsCount)
	assert.Equal(t, 1, s.WinMarketsCount)
	assert.InDelta(t, 1.0, s.WinRate, 1e-9)
}

func TestAggregateOpenMarketNotClosed(t *testing.T) {
	fills := []domain.Fill{buy(100, 0.40, 1, 0)}
	positions := Replay(fills, testLogger())

	stats := Aggregate(fills, positions)
	require.Len(t, stats, 1)
	assert.Zero(t, stats[0].ClosedMarketsCount)
	assert.Zero(t, stats[0].WinRate)
}

func TestAggregateSortedByAddress(t *testing.T) {
	a := buy(10, 0.50, 1, 0)
	b := buy(10, 0.50, 1, 1)
	b.Address = "0x0100000000000000000000000000000000000000"
	fills := []domain.Fill{a, b}

	stats := Aggregate(fills, Replay(fills, testLogger()))
	require.Len(t, stats, 2)
	assert.Equal(t, b.Address, stats[0].Address)
	assert.Equal(t, a.Address, stats[1].Address)
}

func TestScoreBelowMinTradesIsZero(t *testing.T) {
	stats := domain.TraderStats{Address: addr, TradesCount: 2, ROI: 5, WinRate: 1}
	scored := Score(stats, AddressProfile{}, scoreCfg(), time.Now())
	assert.Zero(t, scored.Score)
}

func TestScoreCompositeBounded(t *testing.T) {
	stats := domain.TraderStats{
		Address:     addr,
		TradesCount: 500,
		VolumeUSDC:  10_000_000,
		ROI:         40,
		WinRate:     1,
	}
	scored := Score(stats, AddressProfile{}, scoreCfg(), time.Now())
	assert.InDelta(t, 1.0, scored.Score, 1e-9, "every component saturates at 1")
}

func TestScoreTags(t *testing.T) {
	stats := domain.TraderStats{
		Address:     addr,
		TradesCount: 10,
		VolumeUSDC:  50_000,
		ROI:         0.8,
		WinRate:     0.7,
	}
	scored := Score(stats, AddressProfile{HasDeposit: true}, scoreCfg(), time.Now())
	assert.ElementsMatch(t, []string{"whale", "high-roi", "consistent", "depositor"}, scored.Tags)
}

func TestScoreNoTagsBelowThresholds(t *testing.T) {
	stats := domain.TraderStats{Address: addr, TradesCount: 10, VolumeUSDC: 100, ROI: 0.01, WinRate: 0.1}
	scored := Score(stats, AddressProfile{}, scoreCfg(), time.Now())
	assert.Empty(t, scored.Tags)
}

func TestClassifyDeposits(t *testing.T) {
	// Buys 40, buys another 60, sells back 30: peak outflow is 100.
	fills := []domain.Fill{
		buy(100, 0.40, 1, 0),
		buy(100, 0.60, 2, 0),
		sell(50, 0.60, 3, 0),
	}

	hasDeposit, net := ClassifyDeposits(fills)
	assert.True(t, hasDeposit)
	assert.InDelta(t, 100.0, net, 1e-9)
}

func TestClassifyDepositsNetReceiver(t *testing.T) {
	// Only inflows: nothing had to be deposited first.
	hasDeposit, net := ClassifyDeposits([]domain.Fill{sell(50, 0.60, 1, 0)})
	assert.False(t, hasDeposit)
	assert.Zero(t, net)
}

func TestIsRelayerAddress(t *testing.T) {
	relayers := map[string]struct{}{"0xrelayer": {}}
	assert.True(t, IsRelayerAddress("0xRELAYER", relayers))
	assert.False(t, IsRelayerAddress(addr, relayers))
}
