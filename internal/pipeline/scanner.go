package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/platform/chain"
)

// LogSource is the chain surface the scanner needs.
type LogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	GetLogs(ctx context.Context, filter chain.LogFilter) ([]domain.RawLog, error)
}

// Scanner pulls OrderFilled logs from the exchange contracts in bounded
// block windows so a single eth_getLogs call never exceeds the provider's
// range limits.
type Scanner struct {
	source    LogSource
	addresses []string
	topics    []string
	window    uint64
	logger    *slog.Logger
}

func NewScanner(source LogSource, addresses []string, topics []string, windowBlocks uint64, logger *slog.Logger) *Scanner {
	if windowBlocks == 0 {
		windowBlocks = 1000
	}
	return &Scanner{
		source:    source,
		addresses: addresses,
		topics:    topics,
		window:    windowBlocks,
		logger:    logger.With(slog.String("component", "scanner")),
	}
}

// ScanRange fetches logs for [from, to] inclusive, walking forward one
// window at a time. Logs come back ordered by (block, logIndex).
func (s *Scanner) ScanRange(ctx context.Context, from, to uint64) ([]domain.RawLog, error) {
	if from > to {
		return nil, nil
	}

	var out []domain.RawLog
	for start := from; start <= to; {
		end := start + s.window - 1
		if end > to {
			end = to
		}

		logs, err := s.source.GetLogs(ctx, chain.LogFilter{
			FromBlock: start,
			ToBlock:   end,
			Addresses: s.addresses,
			Topics:    s.topics,
		})
		if err != nil {
			return nil, fmt.Errorf("pipeline: scan window %d-%d: %w", start, end, err)
		}

		s.logger.Debug("window scanned",
			slog.Uint64("from", start),
			slog.Uint64("to", end),
			slog.Int("logs", len(logs)))

		out = append(out, logs...)

		if end == to {
			break
		}
		start = end + 1
	}

	sortLogs(out)
	return out, nil
}

// ScanBackward walks windows from head toward genesis until it has
// collected at least targetCount logs or has covered maxBlocks. Used by
// backfill runs that want "the most recent N fills" without a cursor.
func (s *Scanner) ScanBackward(ctx context.Context, head uint64, targetCount int, maxBlocks uint64) ([]domain.RawLog, error) {
	var (
		out     []domain.RawLog
		scanned uint64
		end     = head
	)

	for scanned < maxBlocks && end > 0 {
		start := uint64(1)
		if end > s.window {
			start = end - s.window + 1
		}

		logs, err := s.source.GetLogs(ctx, chain.LogFilter{
			FromBlock: start,
			ToBlock:   end,
			Addresses: s.addresses,
			Topics:    s.topics,
		})
		if err != nil {
			return nil, fmt.Errorf("pipeline: backfill window %d-%d: %w", start, end, err)
		}

		out = append(out, logs...)
		scanned += end - start + 1

		s.logger.Debug("backfill window scanned",
			slog.Uint64("from", start),
			slog.Uint64("to", end),
			slog.Int("total_logs", len(out)))

		if targetCount > 0 && len(out) >= targetCount {
			break
		}
		if start == 1 {
			break
		}
		end = start - 1
	}

	sortLogs(out)
	return out, nil
}

func sortLogs(logs []domain.RawLog) {
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].LogIndex < logs[j].LogIndex
	})
}
