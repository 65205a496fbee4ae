package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/polytrack/polytrack/internal/domain"
)

// TxSource resolves the external sender of a transaction.
type TxSource interface {
	TransactionSender(ctx context.Context, txHash string) (string, error)
}

// Enricher fills in the transaction origin for decoded trades. Lookups are
// deduplicated per transaction hash and fanned out with a bounded degree of
// parallelism; each worker writes only its own result slot.
//
// A failed lookup degrades to an empty origin, which makes DecodedTrade fall
// back to the maker address. Enrichment never fails a batch.
type Enricher struct {
	source   TxSource
	parallel int
	logger   *slog.Logger
}

func NewEnricher(source TxSource, parallel int, logger *slog.Logger) *Enricher {
	if parallel <= 0 {
		parallel = 8
	}
	return &Enricher{
		source:   source,
		parallel: parallel,
		logger:   logger.With(slog.String("component", "enricher")),
	}
}

func (e *Enricher) Enrich(ctx context.Context, trades []domain.DecodedTrade) []domain.DecodedTrade {
	if len(trades) == 0 {
		return trades
	}

	hashes := uniqueTxHashes(trades)
	senders := make([]string, len(hashes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallel)
	for i, hash := range hashes {
		g.Go(func() error {
			sender, err := e.source.TransactionSender(gctx, hash)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				e.logger.Warn("tx sender lookup failed",
					slog.String("tx_hash", hash),
					slog.String("error", err.Error()))
				return nil
			}
			senders[i] = strings.ToLower(sender)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Warn("enrichment interrupted", slog.String("error", err.Error()))
	}

	byHash := make(map[string]string, len(hashes))
	for i, hash := range hashes {
		if senders[i] != "" {
			byHash[hash] = senders[i]
		}
	}

	out := make([]domain.DecodedTrade, len(trades))
	for i, t := range trades {
		t.OriginFrom = byHash[strings.ToLower(t.TxHash)]
		out[i] = t
	}

	e.logger.Debug("batch enriched",
		slog.Int("trades", len(trades)),
		slog.Int("unique_txs", len(hashes)),
		slog.Int("resolved", len(byHash)))
	return out
}

func uniqueTxHashes(trades []domain.DecodedTrade) []string {
	seen := make(map[string]struct{}, len(trades))
	hashes := make([]string, 0, len(trades))
	for _, t := range trades {
		h := strings.ToLower(t.TxHash)
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		hashes = append(hashes, h)
	}
	return hashes
}
