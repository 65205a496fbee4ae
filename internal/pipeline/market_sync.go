package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/platform/gamma"
)

// MarketFetcher is the catalogue surface the syncer needs.
type MarketFetcher interface {
	GetMarkets(ctx context.Context, limit, offset int) ([]gamma.APIMarket, error)
}

// MarketSyncer refreshes the market catalogue: it pages the most active
// markets out of the Gamma API, upserts them, and rebuilds the token lookup
// table used by the resolver. The rebuilt table is also pushed to the cache
// so serve-only processes see the same catalogue.
type MarketSyncer struct {
	fetcher  MarketFetcher
	store    domain.MarketStore
	cache    domain.TokenMapCache
	pageSize int
	maxPages int
	logger   *slog.Logger
}

func NewMarketSyncer(fetcher MarketFetcher, store domain.MarketStore, cache domain.TokenMapCache, pageSize, maxPages int, logger *slog.Logger) *MarketSyncer {
	if pageSize <= 0 {
		pageSize = 500
	}
	if maxPages <= 0 {
		maxPages = 10
	}
	return &MarketSyncer{
		fetcher:  fetcher,
		store:    store,
		cache:    cache,
		pageSize: pageSize,
		maxPages: maxPages,
		logger:   logger.With(slog.String("component", "market_sync")),
	}
}

// Run fetches the catalogue and returns the fresh token map. The catalogue
// is a hard dependency of fill resolution, so when the Gamma fetch fails
// the syncer falls back to the last known snapshot, cache first, then the
// persisted catalogue, rather than stalling the whole run.
func (s *MarketSyncer) Run(ctx context.Context) (int64, domain.TokenMap, error) {
	all, err := s.fetchAll(ctx)
	if err != nil {
		s.logger.Warn("market fetch failed, falling back to last known catalogue",
			slog.String("error", err.Error()))
		tokens, fbErr := s.fallbackTokens(ctx)
		if fbErr != nil {
			return 0, nil, err
		}
		return 0, tokens, nil
	}

	markets, tokens := gamma.BuildTokenMap(all)
	if len(tokens) == 0 {
		return 0, nil, fmt.Errorf("pipeline: empty market catalogue: %w", domain.ErrMissingCatalogue)
	}

	upserted, err := s.store.UpsertBatch(ctx, markets)
	if err != nil {
		return 0, nil, fmt.Errorf("pipeline: upsert markets: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, tokens); err != nil {
			s.logger.Warn("token map cache write failed", slog.String("error", err.Error()))
		}
	}

	s.logger.Info("market catalogue refreshed",
		slog.Int("markets", len(markets)),
		slog.Int("tokens", len(tokens)))
	return upserted, tokens, nil
}

func (s *MarketSyncer) fetchAll(ctx context.Context) ([]gamma.APIMarket, error) {
	var all []gamma.APIMarket
	for page := 0; page < s.maxPages; page++ {
		batch, err := s.fetcher.GetMarkets(ctx, s.pageSize, page*s.pageSize)
		if err != nil {
			return nil, fmt.Errorf("pipeline: fetch markets page %d: %w", page, err)
		}
		all = append(all, batch...)
		if len(batch) < s.pageSize {
			break
		}
	}
	return all, nil
}

// fallbackTokens loads the last known token map. The cached snapshot is
// preferred; a cold cache falls through to rebuilding from the persisted
// catalogue.
func (s *MarketSyncer) fallbackTokens(ctx context.Context) (domain.TokenMap, error) {
	if s.cache != nil {
		if tokens, err := s.cache.Get(ctx); err == nil && len(tokens) > 0 {
			s.logger.Info("using cached token map", slog.Int("tokens", len(tokens)))
			return tokens, nil
		}
	}
	tokens, err := s.store.TokenMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load stored token map: %w", err)
	}
	if len(tokens) == 0 {
		return nil, domain.ErrMissingCatalogue
	}
	s.logger.Info("using stored token map", slog.Int("tokens", len(tokens)))
	return tokens, nil
}
