package pipeline

import (
	"math/big"

	"github.com/polytrack/polytrack/internal/domain"
)

// Outcome tokens and USDC both use 6 decimal places on Polygon.
const (
	sharesScale = 1e6
	usdcScale   = 1e6
)

// Normalize converts resolved trades into signed ledger fills attributed to
// the trade origin. A BUY adds shares and removes cash; a SELL removes
// shares and adds cash. Amounts are scaled from base units to whole shares
// and whole USDC.
func Normalize(trades []domain.ResolvedTrade) []domain.Fill {
	fills := make([]domain.Fill, 0, len(trades))
	for _, t := range trades {
		fills = append(fills, normalizeTrade(t))
	}
	return fills
}

func normalizeTrade(t domain.ResolvedTrade) domain.Fill {
	var shares, cash float64
	if t.Direction == domain.DirectionBuy {
		shares = scale(t.MakerAmount, sharesScale)
		cash = -scale(t.TakerAmount, usdcScale)
	} else {
		shares = -scale(t.TakerAmount, sharesScale)
		cash = scale(t.MakerAmount, usdcScale)
	}

	price := t.Price
	if price == 0 && shares != 0 {
		price = abs(cash) / abs(shares)
	}

	return domain.Fill{
		Address:       t.Origin(),
		MarketID:      t.MarketID,
		OutcomeSide:   t.Outcome,
		SharesDelta:   shares,
		CashDeltaUSDC: cash,
		Price:         price,
		Timestamp:     t.BlockNumber,
		TxHash:        t.TxHash,
		LogIndex:      t.LogIndex,
		Role:          domain.RoleTaker,
	}
}

func scale(v *big.Int, denom float64) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f / denom
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
