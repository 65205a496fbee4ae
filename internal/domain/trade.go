package domain

import (
	"math/big"
	"strings"
)

// Outcome is the side of a binary market a token represents.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// Direction is the taker-perspective side of a fill: BUY means the taker
// received outcome tokens, SELL means the taker supplied them.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// RawLog is an undecoded event log as returned by eth_getLogs. It is
// immutable once produced by the scanner.
type RawLog struct {
	BlockNumber uint64
	TxHash      string
	LogIndex    uint
	Topics      []string
	Data        string
}

// DecodedTrade is a single OrderFilled event decoded from a RawLog. Amounts
// are raw base units as unsigned big integers; token IDs on the CTF exchange
// run up to 78 decimal digits, so they are kept as decimal strings.
//
// OriginFrom is empty until the enricher resolves the transaction sender.
type DecodedTrade struct {
	TxHash       string
	LogIndex     uint
	BlockNumber  uint64
	Maker        string
	Taker        string
	MakerAssetID string
	TakerAssetID string
	MakerAmount  *big.Int
	TakerAmount  *big.Int
	Fee          *big.Int
	OriginFrom   string
}

// Origin returns the accounting address for the trade: the enriched
// transaction sender when known, otherwise the lower-cased maker. Maker and
// taker can be relayer or proxy contracts; the origin is the economic actor.
func (t *DecodedTrade) Origin() string {
	if t.OriginFrom != "" {
		return t.OriginFrom
	}
	return strings.ToLower(t.Maker)
}

// ResolvedTrade is a DecodedTrade attributed to a market outcome via the
// token catalogue. Price is per-share in USDC and lies in [0,1] for a
// binary market.
type ResolvedTrade struct {
	DecodedTrade

	TokenID   string
	MarketID  string
	Outcome   Outcome
	Direction Direction
	Price     float64
}

// DecodeError records a single log that failed to decode, keyed by its
// position in the input batch.
type DecodeError struct {
	Index int
	Err   error
}

// DecodeResult carries the per-batch outcome of decoding: successfully
// decoded trades plus the collected per-log failures. A malformed log never
// aborts the batch.
type DecodeResult struct {
	Trades []DecodedTrade
	Errors []DecodeError
}

// ResolveResult splits a trade batch into trades attributed to a known
// market outcome and trades whose token IDs are absent from the catalogue.
// Unresolved trades are retryable once the catalogue catches up.
type ResolveResult struct {
	Resolved   []ResolvedTrade
	Unresolved []DecodedTrade
}
