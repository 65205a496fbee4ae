package domain

import "context"

// FillStore persists normalized fills. Fills are unique on
// (tx_hash, log_index, role); re-inserting an existing fill is a no-op, so
// the sync pipeline is safe to replay a window.
type FillStore interface {
	UpsertBatch(ctx context.Context, fills []Fill) (int64, error)
	ListAll(ctx context.Context) ([]Fill, error)
	ListByAddress(ctx context.Context, address string) ([]Fill, error)
	LatestBlock(ctx context.Context) (uint64, error)
}

// TraderStatsStore persists scored trader aggregates, unique on address.
type TraderStatsStore interface {
	UpsertBatch(ctx context.Context, traders []ScoredTrader) (int64, error)
	GetByAddress(ctx context.Context, address string) (ScoredTrader, error)
	ListTop(ctx context.Context, limit int, sortField string, view ViewFilter) ([]ScoredTrader, error)
	SmartAddresses(ctx context.Context) (map[string]struct{}, error)
}

// SignalStore persists smart-money signals, unique on their deterministic ID.
type SignalStore interface {
	UpsertBatch(ctx context.Context, signals []Signal) (int64, error)
	ListSince(ctx context.Context, minBlock uint64) ([]Signal, error)
	ListByAddress(ctx context.Context, address string) ([]Signal, error)
}

// MarketStore persists the market catalogue.
type MarketStore interface {
	UpsertBatch(ctx context.Context, markets []Market) (int64, error)
	GetByID(ctx context.Context, id string) (Market, error)
	TokenMap(ctx context.Context) (TokenMap, error)
	Count(ctx context.Context) (int64, error)
}

// SyncStateStore is the narrow get/set interface over the persisted sync
// cursor. The cursor is read once at the start of a run and written once at
// the end; single-writer discipline is the orchestration layer's concern.
type SyncStateStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
