package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

// ScoreConfig mirrors config.ScoringConfig in plain values so the package
// has no config dependency.
type ScoreConfig struct {
	WeightROI         float64
	WeightWinRate     float64
	WeightVolume      float64
	WeightConsistency float64

	MinTrades      int
	NormVolumeUSDC float64
	NormROI        float64

	WhaleVolumeUSDC   float64
	HighROIThreshold  float64
	ConsistentWinRate float64
}

// consistencySaturationTrades is the trade count at which the consistency
// component saturates.
const consistencySaturationTrades = 50

// AddressProfile carries the origin classification attached to a scored
// address. The zero value is an unclassified address.
type AddressProfile struct {
	OriginType     domain.OriginType
	IsRelayer      bool
	HasDeposit     bool
	NetDepositUSDC float64
}

// Aggregate recomputes trader aggregates wholesale from the full fill
// history and the replayed position states. Output is sorted by address so
// repeated runs over the same history are byte-stable.
func Aggregate(fills []domain.Fill, positions map[PositionKey]*domain.PositionState) []domain.TraderStats {
	type marketAgg struct {
		pnl       float64
		allClosed bool
		hasBuys   bool
	}
	type traderAgg struct {
		stats   domain.TraderStats
		markets map[string]*marketAgg
	}

	byAddr := make(map[string]*traderAgg)
	agg := func(addr string) *traderAgg {
		t, ok := byAddr[addr]
		if !ok {
			t = &traderAgg{
				stats:   domain.TraderStats{Address: addr},
				markets: make(map[string]*marketAgg),
			}
			byAddr[addr] = t
		}
		return t
	}

	for _, f := range fills {
		t := agg(f.Address)
		t.stats.TradesCount++
		t.stats.VolumeUSDC += abs(f.CashDeltaUSDC)
		if _, ok := t.markets[f.MarketID]; !ok {
			t.markets[f.MarketID] = &marketAgg{allClosed: true}
		}
	}

	for key, st := range positions {
		t := agg(key.Address)
		t.stats.RealizedPnL += st.RealizedPnL
		t.stats.TotalBuyCost += st.TotalBuyCost

		m, ok := t.markets[key.MarketID]
		if !ok {
			m = &marketAgg{allClosed: true}
			t.markets[key.MarketID] = m
		}
		m.pnl += st.RealizedPnL
		if st.TotalBuyShares > 0 {
			m.hasBuys = true
			if !st.Closed() {
				m.allClosed = false
			}
		}
	}

	out := make([]domain.TraderStats, 0, len(byAddr))
	for _, t := range byAddr {
		t.stats.MarketsCount = len(t.markets)
		for _, m := range t.markets {
			if !m.hasBuys || !m.allClosed {
				continue
			}
			t.stats.ClosedMarketsCount++
			if m.pnl > 0 {
				t.stats.WinMarketsCount++
			}
		}
		if t.stats.TotalBuyCost > 0 {
			t.stats.ROI = t.stats.RealizedPnL / t.stats.TotalBuyCost
		}
		if t.stats.ClosedMarketsCount > 0 {
			t.stats.WinRate = float64(t.stats.WinMarketsCount) / float64(t.stats.ClosedMarketsCount)
		}
		out = append(out, t.stats)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Score computes the composite score and tag set for one trader. Addresses
// below the minimum trade count score zero: there is not enough history to
// distinguish skill from noise.
func Score(stats domain.TraderStats, profile AddressProfile, cfg ScoreConfig, now time.Time) domain.ScoredTrader {
	scored := domain.ScoredTrader{
		TraderStats:    stats,
		OriginType:     profile.OriginType,
		IsRelayer:      profile.IsRelayer,
		HasDeposit:     profile.HasDeposit,
		NetDepositUSDC: profile.NetDepositUSDC,
		UpdatedAt:      now,
	}

	if stats.TradesCount >= cfg.MinTrades {
		roi := clamp01(stats.ROI / nonZero(cfg.NormROI, 1))
		volume := clamp01(stats.VolumeUSDC / nonZero(cfg.NormVolumeUSDC, 1))
		consistency := clamp01(float64(stats.TradesCount) / consistencySaturationTrades)

		scored.Score = cfg.WeightROI*roi +
			cfg.WeightWinRate*stats.WinRate +
			cfg.WeightVolume*volume +
			cfg.WeightConsistency*consistency
	}

	scored.Tags = tags(scored, cfg)
	return scored
}

func tags(t domain.ScoredTrader, cfg ScoreConfig) []string {
	var out []string
	if t.VolumeUSDC >= cfg.WhaleVolumeUSDC {
		out = append(out, "whale")
	}
	if t.ROI >= cfg.HighROIThreshold && t.TradesCount >= cfg.MinTrades {
		out = append(out, "high-roi")
	}
	if t.WinRate >= cfg.ConsistentWinRate && t.TradesCount >= cfg.MinTrades {
		out = append(out, "consistent")
	}
	if t.HasDeposit {
		out = append(out, "depositor")
	}
	return out
}

// ClassifyDeposits derives an implied funding profile from one address's
// fills, which must already be in canonical order: the peak cumulative net
// cash outflow is the minimum USDC the address must have deposited to trade
// the way it did.
func ClassifyDeposits(fills []domain.Fill) (hasDeposit bool, netDepositUSDC float64) {
	var cum, peak float64
	for _, f := range fills {
		cum -= f.CashDeltaUSDC
		if cum > peak {
			peak = cum
		}
	}
	return peak > 0, peak
}

// IsRelayerAddress reports whether addr is in the configured relayer set.
func IsRelayerAddress(addr string, relayers map[string]struct{}) bool {
	_, ok := relayers[strings.ToLower(addr)]
	return ok
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func nonZero(v, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	return v
}
