package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/polytrack/polytrack/internal/domain"
)

// SignalService serves signal read paths. Time windows arrive in hours and
// are converted to block windows; block numbers are the only clock the
// ledger has.
type SignalService struct {
	signals       domain.SignalStore
	fills         domain.FillStore
	blocksPerHour uint64
	logger        *slog.Logger
}

func NewSignalService(signals domain.SignalStore, fills domain.FillStore, blocksPerHour uint64, logger *slog.Logger) *SignalService {
	if blocksPerHour == 0 {
		blocksPerHour = 1800
	}
	return &SignalService{
		signals:       signals,
		fills:         fills,
		blocksPerHour: blocksPerHour,
		logger:        logger.With(slog.String("component", "signal_service")),
	}
}

// GetRecentSignals returns signals from the trailing windowHours, measured
// back from the latest stored fill block, strongest first.
func (s *SignalService) GetRecentSignals(ctx context.Context, windowHours int) ([]domain.Signal, error) {
	if windowHours <= 0 {
		windowHours = 24
	}

	latest, err := s.fills.LatestBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("signal_service: latest fill block: %w", err)
	}

	window := uint64(windowHours) * s.blocksPerHour
	var minBlock uint64
	if latest > window {
		minBlock = latest - window
	}

	signals, err := s.signals.ListSince(ctx, minBlock)
	if err != nil {
		return nil, fmt.Errorf("signal_service: list since block %d: %w", minBlock, err)
	}
	return signals, nil
}
