package domain

import (
	"fmt"
	"strings"
	"time"
)

// Signal is a smart-money buy-pressure signal: scored addresses accumulated
// more than the configured net USDC into one market outcome within the
// trailing window.
//
// The ID is a deterministic function of the aggregation key, so re-running
// generation over the same fill window reproduces the same IDs and emission
// can be an upsert rather than an append.
type Signal struct {
	ID          string
	Address     string
	MarketID    string
	OutcomeSide Outcome
	NetUSDC     float64
	Timestamp   uint64
	CreatedAt   time.Time
}

// SignalID builds the deterministic signal identifier for an aggregation key.
func SignalID(address, marketID string, side Outcome, timestamp uint64) string {
	return fmt.Sprintf("%s:%s:%s:%d", strings.ToLower(address), marketID, side, timestamp)
}
