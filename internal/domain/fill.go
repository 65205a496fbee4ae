package domain

// Role records which side of the order book the accounting address sat on.
type Role string

const (
	RoleMaker Role = "maker"
	RoleTaker Role = "taker"
)

// Fill is one attributed buy/sell event in share/cash terms, from the
// perspective of the true origin address. SharesDelta and CashDeltaUSDC
// always carry opposite signs: buying shares spends cash, selling shares
// receives it.
//
// Timestamp is the originating block number. It is used only for ordering,
// never as wall-clock time.
type Fill struct {
	Address       string
	MarketID      string
	OutcomeSide   Outcome
	SharesDelta   float64
	CashDeltaUSDC float64
	Price         float64
	Timestamp     uint64
	TxHash        string
	LogIndex      uint
	Role          Role
}

// PositionState is the accumulated average-cost position for one
// (address, market, outcome) key. It is derived state: it can always be
// rebuilt by replaying the full fill history in canonical order, and it is
// only ever mutated by that sequential fold.
//
// PositionShares never goes negative; shorts are not modeled. A sell
// exceeding the held position is clamped and the excess recorded in
// OversoldShares as a data-integrity marker.
type PositionState struct {
	Address           string
	MarketID          string
	OutcomeSide       Outcome
	PositionShares    float64
	AvgCost           float64
	RealizedPnL       float64
	TotalBuyCost      float64
	TotalBuyShares    float64
	TotalSellProceeds float64
	TotalSellShares   float64
	OversoldShares    float64
}

// Closed reports whether the position has been fully exited.
func (p *PositionState) Closed() bool {
	return p.TotalBuyShares > 0 && p.PositionShares <= 0
}
