package domain

import "time"

// Market is a binary prediction market from the Gamma catalogue.
type Market struct {
	ID          string
	Question    string
	Slug        string
	ConditionID string
	TokenYes    string // ERC-1155 token ID for the YES outcome
	TokenNo     string // ERC-1155 token ID for the NO outcome
	PriceYes    float64
	PriceNo     float64
	Volume      float64
	Liquidity   float64
	EndDate     *time.Time
	Active      bool
	UpdatedAt   time.Time
}

// TokenInfo is the catalogue entry for one outcome token.
type TokenInfo struct {
	MarketID string
	Outcome  Outcome
}

// TokenMap maps an outcome-token asset ID to its market and side. It is
// built by the market sync phase and passed into the resolver by reference.
type TokenMap map[string]TokenInfo

// Lookup returns the catalogue entry for an asset ID, if present.
func (m TokenMap) Lookup(assetID string) (TokenInfo, bool) {
	info, ok := m[assetID]
	return info, ok
}
