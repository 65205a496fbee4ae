package domain

import "time"

// OriginType classifies how an address interacts with the chain.
type OriginType string

const (
	OriginEOA      OriginType = "EOA"
	OriginContract OriginType = "CONTRACT"
	OriginProxy    OriginType = "PROXY"
)

// TraderStats is the per-address aggregate over all of an address's
// positions and fills. It is recomputed wholesale on every aggregation
// pass, never patched incrementally, so it is always a pure function of
// the fill history.
type TraderStats struct {
	Address           string
	TradesCount       int
	MarketsCount      int
	VolumeUSDC        float64
	RealizedPnL       float64
	TotalBuyCost      float64
	ROI               float64
	ClosedMarketsCount int
	WinMarketsCount   int
	WinRate           float64
}

// ScoredTrader extends TraderStats with the composite score and
// threshold-derived tags, plus the origin-classification fields consumed by
// the retail view filter.
type ScoredTrader struct {
	TraderStats

	Score float64
	Tags  []string

	OriginType     OriginType
	IsRelayer      bool
	HasDeposit     bool
	NetDepositUSDC float64

	UpdatedAt time.Time
}

// ViewFilter selects which population a leaderboard query covers.
type ViewFilter string

const (
	// ViewAll includes every scored address.
	ViewAll ViewFilter = "all"
	// ViewRetail restricts to externally-owned accounts that are not
	// relayers and have an on-chain deposit history.
	ViewRetail ViewFilter = "retail"
)
