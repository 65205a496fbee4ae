package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytrack/polytrack/internal/analytics"
	"github.com/polytrack/polytrack/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const testAddr = "0xaa00000000000000000000000000000000000001"

type memFillStore struct {
	fills []domain.Fill
}

func (m *memFillStore) UpsertBatch(_ context.Context, fills []domain.Fill) (int64, error) {
	m.fills = append(m.fills, fills...)
	return int64(len(fills)), nil
}
func (m *memFillStore) ListAll(context.Context) ([]domain.Fill, error) { return m.fills, nil }
func (m *memFillStore) ListByAddress(_ context.Context, address string) ([]domain.Fill, error) {
	var out []domain.Fill
	for _, f := range m.fills {
		if f.Address == address {
			out = append(out, f)
		}
	}
	return out, nil
}
func (m *memFillStore) LatestBlock(context.Context) (uint64, error) {
	var latest uint64
	for _, f := range m.fills {
		if f.Timestamp > latest {
			latest = f.Timestamp
		}
	}
	return latest, nil
}

type memTraderStore struct {
	traders map[string]domain.ScoredTrader
}

func (m *memTraderStore) UpsertBatch(_ context.Context, traders []domain.ScoredTrader) (int64, error) {
	if m.traders == nil {
		m.traders = make(map[string]domain.ScoredTrader)
	}
	for _, t := range traders {
		m.traders[t.Address] = t
	}
	return int64(len(traders)), nil
}
func (m *memTraderStore) GetByAddress(_ context.Context, address string) (domain.ScoredTrader, error) {
	t, ok := m.traders[address]
	if !ok {
		return domain.ScoredTrader{}, domain.ErrNotFound
	}
	return t, nil
}
func (m *memTraderStore) ListTop(_ context.Context, limit int, _ string, _ domain.ViewFilter) ([]domain.ScoredTrader, error) {
	out := make([]domain.ScoredTrader, 0, len(m.traders))
	for _, t := range m.traders {
		out = append(out, t)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
func (m *memTraderStore) SmartAddresses(context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for addr, t := range m.traders {
		if t.Score > 0 {
			out[addr] = struct{}{}
		}
	}
	return out, nil
}

type memSignalStore struct {
	signals map[string]domain.Signal
}

func (m *memSignalStore) UpsertBatch(_ context.Context, signals []domain.Signal) (int64, error) {
	if m.signals == nil {
		m.signals = make(map[string]domain.Signal)
	}
	var created int64
	for _, s := range signals {
		if _, ok := m.signals[s.ID]; !ok {
			created++
		}
		m.signals[s.ID] = s
	}
	return created, nil
}
func (m *memSignalStore) ListSince(_ context.Context, minBlock uint64) ([]domain.Signal, error) {
	var out []domain.Signal
	for _, s := range m.signals {
		if s.Timestamp >= minBlock {
			out = append(out, s)
		}
	}
	return out, nil
}
func (m *memSignalStore) ListByAddress(_ context.Context, address string) ([]domain.Signal, error) {
	var out []domain.Signal
	for _, s := range m.signals {
		if s.Address == address {
			out = append(out, s)
		}
	}
	return out, nil
}

type recordingBus struct {
	published [][]byte
	appended  [][]byte
	fail      bool
}

func (b *recordingBus) Publish(_ context.Context, _ string, payload []byte) error {
	if b.fail {
		return errors.New("redis down")
	}
	b.published = append(b.published, payload)
	return nil
}
func (b *recordingBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}
func (b *recordingBus) StreamAppend(_ context.Context, _ string, payload []byte) error {
	if b.fail {
		return errors.New("redis down")
	}
	b.appended = append(b.appended, payload)
	return nil
}
func (b *recordingBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type recordingNotifier struct {
	signals []domain.Signal
}

func (n *recordingNotifier) NotifySignal(_ context.Context, sig domain.Signal) error {
	n.signals = append(n.signals, sig)
	return nil
}

type fakeCodeSource struct {
	codes map[string]string
}

func (f *fakeCodeSource) GetCode(_ context.Context, address string) (string, error) {
	code, ok := f.codes[address]
	if !ok {
		return "0x", nil
	}
	return code, nil
}

// tradingHistory is enough fills to clear the scoring minimum and the
// signal threshold in a recent window.
func tradingHistory() []domain.Fill {
	fill := func(shares, price float64, block uint64, idx uint) domain.Fill {
		return domain.Fill{
			Address:       testAddr,
			MarketID:      "mkt-1",
			OutcomeSide:   domain.OutcomeYes,
			SharesDelta:   shares,
			CashDeltaUSDC: -shares * price,
			Price:         price,
			Timestamp:     block,
			LogIndex:      idx,
		}
	}
	return []domain.Fill{
		fill(100, 0.40, 1000, 0),
		fill(100, 0.45, 1001, 0),
		fill(100, 0.50, 1002, 0),
		fill(100, 0.55, 1003, 0),
		fill(100, 0.60, 1004, 0),
	}
}

func analyticsFixture(fills []domain.Fill) (*AnalyticsService, *memTraderStore, *memSignalStore, *recordingBus, *recordingNotifier) {
	fillStore := &memFillStore{fills: fills}
	traders := &memTraderStore{}
	signals := &memSignalStore{}
	bus := &recordingBus{}
	notifier := &recordingNotifier{}

	svc := NewAnalyticsService(
		fillStore, traders, signals, bus, notifier, &fakeCodeSource{},
		analytics.ScoreConfig{
			WeightROI:         0.35,
			WeightWinRate:     0.30,
			WeightVolume:      0.20,
			WeightConsistency: 0.15,
			MinTrades:         5,
			NormVolumeUSDC:    1000,
			NormROI:           2,
		},
		analytics.SignalConfig{WindowBlocks: 100, MinNetUSDC: 50},
		nil,
		testLogger(),
	)
	return svc, traders, signals, bus, notifier
}

func TestRecomputeWritesScoredTraders(t *testing.T) {
	svc, traders, signals, bus, notifier := analyticsFixture(tradingHistory())

	require.NoError(t, svc.Recompute(context.Background()))

	trader, ok := traders.traders[testAddr]
	require.True(t, ok)
	assert.Equal(t, 5, trader.TradesCount)
	assert.Positive(t, trader.Score, "five trades with volume clears the gate")

	require.Len(t, signals.signals, 1, "net buying inside the window emits one signal")
	assert.Len(t, bus.published, 1)
	assert.Len(t, bus.appended, 1)
	require.Len(t, notifier.signals, 1)
	assert.InDelta(t, 250.0, notifier.signals[0].NetUSDC, 1e-9)
}

func TestRecomputeIdempotentFanOut(t *testing.T) {
	svc, _, signals, bus, notifier := analyticsFixture(tradingHistory())

	require.NoError(t, svc.Recompute(context.Background()))
	require.NoError(t, svc.Recompute(context.Background()))

	assert.Len(t, signals.signals, 1, "same history regenerates the same signal ID")
	assert.Len(t, bus.published, 1, "already-known signals are not re-announced")
	assert.Len(t, notifier.signals, 1)
}

type smartSetStore struct {
	memTraderStore
	smart map[string]struct{}
	err   error
}

func (s *smartSetStore) SmartAddresses(context.Context) (map[string]struct{}, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.smart, nil
}

func recomputeWithStore(t *testing.T, traders domain.TraderStatsStore) *memSignalStore {
	t.Helper()
	signals := &memSignalStore{}
	svc := NewAnalyticsService(
		&memFillStore{fills: tradingHistory()}, traders, signals,
		&recordingBus{}, &recordingNotifier{}, &fakeCodeSource{},
		analytics.ScoreConfig{
			WeightROI:         0.35,
			WeightWinRate:     0.30,
			WeightVolume:      0.20,
			WeightConsistency: 0.15,
			MinTrades:         5,
			NormVolumeUSDC:    1000,
			NormROI:           2,
		},
		analytics.SignalConfig{WindowBlocks: 100, MinNetUSDC: 50},
		nil,
		testLogger(),
	)
	require.NoError(t, svc.Recompute(context.Background()))
	return signals
}

func TestRecomputeFollowsPersistedSmartSet(t *testing.T) {
	// The store answers with an empty smart set, so no address qualifies
	// for signals regardless of the in-memory scores.
	signals := recomputeWithStore(t, &smartSetStore{smart: map[string]struct{}{}})
	assert.Empty(t, signals.signals)
}

func TestRecomputeSmartSetLoadFailureFallsBack(t *testing.T) {
	signals := recomputeWithStore(t, &smartSetStore{err: errors.New("db down")})
	assert.Len(t, signals.signals, 1, "in-memory set covers a store that cannot answer")
}

func TestRecomputeEmptyLedgerIsNoop(t *testing.T) {
	svc, traders, signals, _, _ := analyticsFixture(nil)
	require.NoError(t, svc.Recompute(context.Background()))
	assert.Empty(t, traders.traders)
	assert.Empty(t, signals.signals)
}

func TestRecomputeSurvivesBusFailure(t *testing.T) {
	svc, _, signals, bus, notifier := analyticsFixture(tradingHistory())
	bus.fail = true

	require.NoError(t, svc.Recompute(context.Background()))
	assert.Len(t, signals.signals, 1, "database write still lands")
	assert.Len(t, notifier.signals, 1, "notifier still runs after bus failure")
}

func TestRecomputeClassifiesContracts(t *testing.T) {
	fillStore := &memFillStore{fills: tradingHistory()}
	traders := &memTraderStore{}
	svc := NewAnalyticsService(
		fillStore, traders, &memSignalStore{}, nil, nil,
		&fakeCodeSource{codes: map[string]string{testAddr: "0x6080604052"}},
		analytics.ScoreConfig{MinTrades: 5},
		analytics.SignalConfig{WindowBlocks: 100, MinNetUSDC: 50},
		[]string{testAddr},
		testLogger(),
	)

	require.NoError(t, svc.Recompute(context.Background()))

	trader := traders.traders[testAddr]
	assert.Equal(t, domain.OriginContract, trader.OriginType)
	assert.True(t, trader.IsRelayer)
	assert.True(t, trader.HasDeposit)
	assert.InDelta(t, 250.0, trader.NetDepositUSDC, 1e-9)
}
