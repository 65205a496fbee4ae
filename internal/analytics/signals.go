package analytics

import (
	"sort"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

// SignalConfig shapes buy-signal generation.
type SignalConfig struct {
	// WindowBlocks is the trailing window, measured back from the latest
	// fill block.
	WindowBlocks uint64
	// MinNetUSDC is the minimum net buying pressure to emit a signal.
	MinNetUSDC float64
}

// GenerateSignals finds (address, market, outcome) keys where a smart
// address put net new money into an outcome within the trailing window.
// Net buy pressure is the negated cash sum: spending cash is buying.
//
// Signal IDs are deterministic, so regenerating over the same fills yields
// the same signals and emission can be an upsert.
func GenerateSignals(fills []domain.Fill, smart map[string]struct{}, cfg SignalConfig, now time.Time) []domain.Signal {
	if len(fills) == 0 || len(smart) == 0 {
		return nil
	}

	var latest uint64
	for _, f := range fills {
		if f.Timestamp > latest {
			latest = f.Timestamp
		}
	}
	var minBlock uint64
	if latest > cfg.WindowBlocks {
		minBlock = latest - cfg.WindowBlocks
	}

	type key struct {
		address  string
		marketID string
		side     domain.Outcome
	}
	type agg struct {
		netCash   float64
		lastBlock uint64
	}

	sums := make(map[key]*agg)
	for _, f := range fills {
		if f.Timestamp < minBlock {
			continue
		}
		if _, ok := smart[f.Address]; !ok {
			continue
		}
		k := key{address: f.Address, marketID: f.MarketID, side: f.OutcomeSide}
		a, ok := sums[k]
		if !ok {
			a = &agg{}
			sums[k] = a
		}
		a.netCash += f.CashDeltaUSDC
		if f.Timestamp > a.lastBlock {
			a.lastBlock = f.Timestamp
		}
	}

	var out []domain.Signal
	for k, a := range sums {
		netBuy := -a.netCash
		if netBuy <= cfg.MinNetUSDC {
			continue
		}
		out = append(out, domain.Signal{
			ID:          domain.SignalID(k.address, k.marketID, k.side, a.lastBlock),
			Address:     k.address,
			MarketID:    k.marketID,
			OutcomeSide: k.side,
			NetUSDC:     netBuy,
			Timestamp:   a.lastBlock,
			CreatedAt:   now,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].NetUSDC != out[j].NetUSDC {
			return out[i].NetUSDC > out[j].NetUSDC
		}
		return out[i].ID < out[j].ID
	})
	return out
}
