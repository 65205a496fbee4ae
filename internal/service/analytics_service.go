package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/polytrack/polytrack/internal/analytics"
	"github.com/polytrack/polytrack/internal/domain"
)

// CodeSource reports deployed bytecode for origin classification.
type CodeSource interface {
	GetCode(ctx context.Context, address string) (string, error)
}

// SignalNotifier pushes newly created signals to external channels.
type SignalNotifier interface {
	NotifySignal(ctx context.Context, sig domain.Signal) error
}

// SignalChannel is the pub/sub channel and stream name for signal fan-out.
const SignalChannel = "signals"

// AnalyticsService rebuilds all derived trader state from the fill ledger:
// position replay, aggregation, scoring, and signal generation. Everything
// it writes is recomputed wholesale, so repeated runs converge on the same
// rows.
type AnalyticsService struct {
	fills    domain.FillStore
	traders  domain.TraderStatsStore
	signals  domain.SignalStore
	bus      domain.SignalBus
	notifier SignalNotifier
	code     CodeSource

	scoreCfg  analytics.ScoreConfig
	signalCfg analytics.SignalConfig
	relayers  map[string]struct{}

	logger *slog.Logger
}

func NewAnalyticsService(
	fills domain.FillStore,
	traders domain.TraderStatsStore,
	signals domain.SignalStore,
	bus domain.SignalBus,
	notifier SignalNotifier,
	code CodeSource,
	scoreCfg analytics.ScoreConfig,
	signalCfg analytics.SignalConfig,
	relayerAddresses []string,
	logger *slog.Logger,
) *AnalyticsService {
	relayers := make(map[string]struct{}, len(relayerAddresses))
	for _, addr := range relayerAddresses {
		relayers[strings.ToLower(addr)] = struct{}{}
	}
	return &AnalyticsService{
		fills:     fills,
		traders:   traders,
		signals:   signals,
		bus:       bus,
		notifier:  notifier,
		code:      code,
		scoreCfg:  scoreCfg,
		signalCfg: signalCfg,
		relayers:  relayers,
		logger:    logger.With(slog.String("component", "analytics_service")),
	}
}

// Recompute replays the full fill history and rewrites trader aggregates
// and signals. New signals are fanned out to the bus and notifier; fan-out
// failures are logged but never fail the recompute, the database is the
// source of truth.
func (s *AnalyticsService) Recompute(ctx context.Context) error {
	started := time.Now()

	fills, err := s.fills.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("analytics_service: load fills: %w", err)
	}
	if len(fills) == 0 {
		s.logger.Info("no fills, nothing to recompute")
		return nil
	}

	positions := analytics.Replay(fills, s.logger)
	stats := analytics.Aggregate(fills, positions)

	byAddress := make(map[string][]domain.Fill)
	for _, f := range fills {
		byAddress[f.Address] = append(byAddress[f.Address], f)
	}

	now := time.Now().UTC()
	scored := make([]domain.ScoredTrader, 0, len(stats))
	smart := make(map[string]struct{})
	for _, st := range stats {
		profile := s.classify(ctx, st.Address, byAddress[st.Address])
		t := analytics.Score(st, profile, s.scoreCfg, now)
		scored = append(scored, t)
		if t.Score > 0 {
			smart[t.Address] = struct{}{}
		}
	}

	if _, err := s.traders.UpsertBatch(ctx, scored); err != nil {
		return fmt.Errorf("analytics_service: upsert traders: %w", err)
	}

	// Signals follow the persisted smart set so they stay consistent with
	// the leaderboard the API serves. The in-memory set covers a store that
	// cannot answer.
	if persisted, err := s.traders.SmartAddresses(ctx); err != nil {
		s.logger.Warn("load smart set", slog.String("error", err.Error()))
	} else {
		smart = persisted
	}

	created, err := s.emitSignals(ctx, fills, smart, now)
	if err != nil {
		return err
	}

	s.logger.Info("derived state recomputed",
		slog.Int("fills", len(fills)),
		slog.Int("positions", len(positions)),
		slog.Int("traders", len(scored)),
		slog.Int("smart", len(smart)),
		slog.Int("new_signals", created),
		slog.Int64("duration_ms", time.Since(started).Milliseconds()))
	return nil
}

func (s *AnalyticsService) emitSignals(ctx context.Context, fills []domain.Fill, smart map[string]struct{}, now time.Time) (int, error) {
	generated := analytics.GenerateSignals(fills, smart, s.signalCfg, now)
	if len(generated) == 0 {
		return 0, nil
	}

	minBlock := generated[0].Timestamp
	for _, sig := range generated {
		if sig.Timestamp < minBlock {
			minBlock = sig.Timestamp
		}
	}
	existing, err := s.signals.ListSince(ctx, minBlock)
	if err != nil {
		return 0, fmt.Errorf("analytics_service: list existing signals: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, sig := range existing {
		known[sig.ID] = struct{}{}
	}

	if _, err := s.signals.UpsertBatch(ctx, generated); err != nil {
		return 0, fmt.Errorf("analytics_service: upsert signals: %w", err)
	}

	var created int
	for _, sig := range generated {
		if _, ok := known[sig.ID]; ok {
			continue
		}
		created++
		s.fanOut(ctx, sig)
	}
	return created, nil
}

func (s *AnalyticsService) fanOut(ctx context.Context, sig domain.Signal) {
	payload, err := json.Marshal(sig)
	if err != nil {
		s.logger.Warn("marshal signal", slog.String("error", err.Error()))
		return
	}
	if s.bus != nil {
		if err := s.bus.Publish(ctx, SignalChannel, payload); err != nil {
			s.logger.Warn("publish signal", slog.String("error", err.Error()))
		}
		if err := s.bus.StreamAppend(ctx, SignalChannel, payload); err != nil {
			s.logger.Warn("append signal to stream", slog.String("error", err.Error()))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifySignal(ctx, sig); err != nil {
			s.logger.Warn("notify signal",
				slog.String("signal_id", sig.ID),
				slog.String("error", err.Error()))
		}
	}
}

// classify derives the origin profile for one address. Bytecode lookups are
// best-effort; on failure the address keeps the EOA default rather than
// dropping out of the leaderboard entirely.
func (s *AnalyticsService) classify(ctx context.Context, address string, fills []domain.Fill) analytics.AddressProfile {
	profile := analytics.AddressProfile{OriginType: domain.OriginEOA}
	profile.IsRelayer = analytics.IsRelayerAddress(address, s.relayers)
	profile.HasDeposit, profile.NetDepositUSDC = analytics.ClassifyDeposits(fills)

	if s.code != nil {
		code, err := s.code.GetCode(ctx, address)
		if err != nil {
			s.logger.Warn("bytecode lookup failed",
				slog.String("address", address),
				slog.String("error", err.Error()))
		} else if code != "" && code != "0x" {
			profile.OriginType = domain.OriginContract
		}
	}
	return profile
}
