package analytics

import (
	"log/slog"
	"sort"

	"github.com/polytrack/polytrack/internal/domain"
)

// PositionKey identifies one average-cost position.
type PositionKey struct {
	Address     string
	MarketID    string
	OutcomeSide domain.Outcome
}

// Replay folds a fill history into per-key position states using
// average-cost accounting. Fills are first sorted into canonical
// (block, log index) order; replaying the same history always yields the
// same states.
//
// A sell larger than the held position is clamped to zero shares and the
// excess recorded on the state. Oversells are real in the data: the
// catalogue misses fills from before the scan horizon.
func Replay(fills []domain.Fill, logger *slog.Logger) map[PositionKey]*domain.PositionState {
	ordered := make([]domain.Fill, len(fills))
	copy(ordered, fills)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Timestamp != ordered[j].Timestamp {
			return ordered[i].Timestamp < ordered[j].Timestamp
		}
		return ordered[i].LogIndex < ordered[j].LogIndex
	})

	states := make(map[PositionKey]*domain.PositionState)
	for _, f := range ordered {
		key := PositionKey{Address: f.Address, MarketID: f.MarketID, OutcomeSide: f.OutcomeSide}
		st, ok := states[key]
		if !ok {
			st = &domain.PositionState{
				Address:     f.Address,
				MarketID:    f.MarketID,
				OutcomeSide: f.OutcomeSide,
			}
			states[key] = st
		}
		applyFill(st, f, logger)
	}
	return states
}

func applyFill(st *domain.PositionState, f domain.Fill, logger *slog.Logger) {
	if f.SharesDelta > 0 {
		cost := -f.CashDeltaUSDC
		newShares := st.PositionShares + f.SharesDelta
		if newShares > 0 {
			st.AvgCost = (st.AvgCost*st.PositionShares + cost) / newShares
		}
		st.PositionShares = newShares
		st.TotalBuyCost += cost
		st.TotalBuyShares += f.SharesDelta
		return
	}

	sellShares := -f.SharesDelta
	sold := sellShares
	if sold > st.PositionShares {
		excess := sold - st.PositionShares
		st.OversoldShares += excess
		if logger != nil {
			logger.Warn("sell exceeds held position",
				slog.String("address", f.Address),
				slog.String("market_id", f.MarketID),
				slog.String("outcome", string(f.OutcomeSide)),
				slog.Float64("excess_shares", excess))
		}
		sold = st.PositionShares
	}

	st.RealizedPnL += sold * (f.Price - st.AvgCost)
	st.PositionShares -= sold
	st.TotalSellProceeds += f.CashDeltaUSDC
	st.TotalSellShares += sold
}
