package pipeline

import (
	"log/slog"
	"math/big"

	"github.com/polytrack/polytrack/internal/domain"
)

// USDCAssetID is the collateral asset id on the CTF exchange. Every fill
// pairs one outcome token against this sentinel.
const USDCAssetID = "0"

// Resolver attributes decoded trades to market outcomes via the token
// catalogue and derives taker-perspective direction and per-share price.
type Resolver struct {
	logger *slog.Logger
}

func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{logger: logger.With(slog.String("component", "resolver"))}
}

// Resolve splits trades into resolved and unresolved. A trade resolves when
// exactly one side is the USDC sentinel and the other side's token id is in
// the catalogue. Unresolved trades are kept for retry once the catalogue
// catches up.
func (r *Resolver) Resolve(trades []domain.DecodedTrade, tokens domain.TokenMap) domain.ResolveResult {
	res := domain.ResolveResult{
		Resolved: make([]domain.ResolvedTrade, 0, len(trades)),
	}

	for _, t := range trades {
		resolved, ok := resolveTrade(t, tokens)
		if !ok {
			res.Unresolved = append(res.Unresolved, t)
			continue
		}
		res.Resolved = append(res.Resolved, resolved)
	}

	if len(res.Unresolved) > 0 {
		r.logger.Info("trades without catalogue entry",
			slog.Int("resolved", len(res.Resolved)),
			slog.Int("unresolved", len(res.Unresolved)))
	}
	return res
}

func resolveTrade(t domain.DecodedTrade, tokens domain.TokenMap) (domain.ResolvedTrade, bool) {
	var (
		tokenID     string
		direction   domain.Direction
		tokenAmount *big.Int
		usdcAmount  *big.Int
	)

	switch {
	case t.TakerAssetID == USDCAssetID && t.MakerAssetID != USDCAssetID:
		// Maker supplied the outcome token, taker paid USDC: the taker bought.
		tokenID = t.MakerAssetID
		direction = domain.DirectionBuy
		tokenAmount = t.MakerAmount
		usdcAmount = t.TakerAmount
	case t.MakerAssetID == USDCAssetID && t.TakerAssetID != USDCAssetID:
		tokenID = t.TakerAssetID
		direction = domain.DirectionSell
		tokenAmount = t.TakerAmount
		usdcAmount = t.MakerAmount
	default:
		return domain.ResolvedTrade{}, false
	}

	info, ok := tokens.Lookup(tokenID)
	if !ok {
		return domain.ResolvedTrade{}, false
	}

	return domain.ResolvedTrade{
		DecodedTrade: t,
		TokenID:      tokenID,
		MarketID:     info.MarketID,
		Outcome:      info.Outcome,
		Direction:    direction,
		Price:        unitPrice(usdcAmount, tokenAmount),
	}, true
}

// unitPrice is USDC paid per outcome share. Both sides use 6-decimal base
// units, so the raw ratio is already the per-share price.
func unitPrice(usdc, token *big.Int) float64 {
	if token == nil || token.Sign() == 0 {
		return 0
	}
	u, _ := new(big.Float).SetInt(usdc).Float64()
	s, _ := new(big.Float).SetInt(token).Float64()
	return u / s
}
