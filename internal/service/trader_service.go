package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/polytrack/polytrack/internal/analytics"
	"github.com/polytrack/polytrack/internal/domain"
)

// MaxLeaderboardLimit caps leaderboard page size.
const MaxLeaderboardLimit = 200

// DefaultLeaderboardLimit applies when the caller does not ask for a size.
const DefaultLeaderboardLimit = 50

// PositionView is a replayed position joined with its market's question.
type PositionView struct {
	domain.PositionState
	Question string `json:"question,omitempty"`
}

// TraderDetail is the full read model for one address: the scored
// aggregate, the replayed per-market positions, and the signals the address
// produced.
type TraderDetail struct {
	Trader    domain.ScoredTrader `json:"trader"`
	Positions []PositionView      `json:"positions"`
	Signals   []domain.Signal     `json:"signals"`
}

// TraderService serves leaderboard and per-address read paths.
type TraderService struct {
	traders domain.TraderStatsStore
	fills   domain.FillStore
	signals domain.SignalStore
	markets domain.MarketStore
	logger  *slog.Logger
}

func NewTraderService(
	traders domain.TraderStatsStore,
	fills domain.FillStore,
	signals domain.SignalStore,
	markets domain.MarketStore,
	logger *slog.Logger,
) *TraderService {
	return &TraderService{
		traders: traders,
		fills:   fills,
		signals: signals,
		markets: markets,
		logger:  logger.With(slog.String("component", "trader_service")),
	}
}

// GetSmartTraders returns the leaderboard. Limit is clamped to
// [1, MaxLeaderboardLimit]; an empty sort field means score.
func (s *TraderService) GetSmartTraders(ctx context.Context, limit int, sortField string, view domain.ViewFilter) ([]domain.ScoredTrader, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}
	if sortField == "" {
		sortField = "score"
	}
	if view == "" {
		view = domain.ViewAll
	}

	traders, err := s.traders.ListTop(ctx, limit, sortField, view)
	if err != nil {
		return nil, fmt.Errorf("trader_service: list top: %w", err)
	}
	return traders, nil
}

// GetTraderDetail returns one address's aggregate plus its replayed
// positions and emitted signals. Positions are rebuilt on demand from that
// address's fills; open positions come first, larger ones before smaller.
func (s *TraderService) GetTraderDetail(ctx context.Context, address string) (TraderDetail, error) {
	address = strings.ToLower(address)

	trader, err := s.traders.GetByAddress(ctx, address)
	if err != nil {
		return TraderDetail{}, fmt.Errorf("trader_service: get trader %s: %w", address, err)
	}

	fills, err := s.fills.ListByAddress(ctx, address)
	if err != nil {
		return TraderDetail{}, fmt.Errorf("trader_service: list fills %s: %w", address, err)
	}
	states := analytics.Replay(fills, s.logger)
	positions := make([]PositionView, 0, len(states))
	questions := make(map[string]string)
	for _, st := range states {
		positions = append(positions, PositionView{
			PositionState: *st,
			Question:      s.marketQuestion(ctx, st.MarketID, questions),
		})
	}
	sort.Slice(positions, func(i, j int) bool {
		ci, cj := positions[i].Closed(), positions[j].Closed()
		if ci != cj {
			return !ci
		}
		return positions[i].PositionShares > positions[j].PositionShares
	})

	signals, err := s.signals.ListByAddress(ctx, address)
	if err != nil {
		return TraderDetail{}, fmt.Errorf("trader_service: list signals %s: %w", address, err)
	}

	return TraderDetail{Trader: trader, Positions: positions, Signals: signals}, nil
}

// marketQuestion resolves a market's question text, memoized per call. The
// lookup is best-effort; markets missing from the catalogue render without
// a question.
func (s *TraderService) marketQuestion(ctx context.Context, marketID string, memo map[string]string) string {
	if s.markets == nil {
		return ""
	}
	if q, ok := memo[marketID]; ok {
		return q
	}
	var q string
	if m, err := s.markets.GetByID(ctx, marketID); err == nil {
		q = m.Question
	}
	memo[marketID] = q
	return q
}
