package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

// State is the coordinator's phase within a single run.
type State string

const (
	StateIdle            State = "idle"
	StateScanningMarkets State = "scanning_markets"
	StateScanningFills   State = "scanning_fills"
	StateRecomputing     State = "recomputing"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

// SyncResult is the structured outcome of one coordinator run. OK is true
// only when every phase completed without a fatal error. Malformed logs are
// collected in DecodeErrors and do not fail the run; the well-formed logs in
// the same window still land and the cursor still advances.
type SyncResult struct {
	FillsInserted   int64    `json:"fills_inserted"`
	MarketsUpserted int64    `json:"markets_upserted"`
	BlocksScanned   uint64   `json:"blocks_scanned"`
	LastBlock       uint64   `json:"last_block"`
	DurationMs      int64    `json:"duration_ms"`
	OK              bool     `json:"ok"`
	Errors          []string `json:"errors,omitempty"`
	DecodeErrors    []string `json:"decode_errors,omitempty"`
}

// Recomputer rebuilds derived trader state after new fills land.
type Recomputer interface {
	Recompute(ctx context.Context) error
}

// CoordinatorConfig carries the run-shaping knobs.
type CoordinatorConfig struct {
	CursorKey       string
	BootstrapBlocks uint64
	MaxScanBlocks   uint64
	SafetyMargin    time.Duration
	LockTTL         time.Duration
	TargetLogCount  int
}

// Coordinator drives one incremental sync: refresh the market catalogue,
// scan new blocks for fills, persist them, advance the cursor, then rebuild
// derived trader state. The cursor only moves after the fills behind it are
// durably stored, so a crash between the two replays the window and the
// fill unique key absorbs the duplicates.
type Coordinator struct {
	blocks    LogSource
	scanner   *Scanner
	decoder   *Decoder
	enricher  *Enricher
	markets   *MarketSyncer
	recompute Recomputer
	resolver  *Resolver

	fills domain.FillStore
	state domain.SyncStateStore
	locks domain.LockManager

	cfg    CoordinatorConfig
	logger *slog.Logger
}

func NewCoordinator(
	blocks LogSource,
	scanner *Scanner,
	decoder *Decoder,
	enricher *Enricher,
	resolver *Resolver,
	markets *MarketSyncer,
	recompute Recomputer,
	fills domain.FillStore,
	state domain.SyncStateStore,
	locks domain.LockManager,
	cfg CoordinatorConfig,
	logger *slog.Logger,
) *Coordinator {
	if cfg.CursorKey == "" {
		cfg.CursorKey = "last_fill_block"
	}
	if cfg.LockTTL == 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &Coordinator{
		blocks:    blocks,
		scanner:   scanner,
		decoder:   decoder,
		enricher:  enricher,
		resolver:  resolver,
		markets:   markets,
		recompute: recompute,
		fills:     fills,
		state:     state,
		locks:     locks,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "coordinator")),
	}
}

// Run executes one full sync cycle. It never returns a Go error; every
// failure is folded into the SyncResult so callers always get a structured
// report.
func (c *Coordinator) Run(ctx context.Context) SyncResult {
	started := time.Now()
	var res SyncResult

	unlock, err := c.locks.Acquire(ctx, "sync:"+c.cfg.CursorKey, c.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return c.finish(res, started, fmt.Errorf("pipeline: sync already running: %w", err))
		}
		return c.finish(res, started, fmt.Errorf("pipeline: acquire sync lock: %w", err))
	}
	defer unlock()

	c.transition(StateScanningMarkets)
	marketsUpserted, tokens, err := c.markets.Run(ctx)
	if err != nil {
		return c.finish(res, started, err)
	}
	res.MarketsUpserted = marketsUpserted

	if c.cfg.SafetyMargin > 0 && time.Since(started) > c.cfg.SafetyMargin {
		c.logger.Warn("safety margin exceeded after market sync, skipping fills",
			slog.Duration("elapsed", time.Since(started)))
		return c.finish(res, started, fmt.Errorf("pipeline: safety margin exceeded, fills skipped"))
	}

	c.transition(StateScanningFills)
	if err := c.syncFills(ctx, tokens, &res); err != nil {
		return c.finish(res, started, err)
	}

	if c.recompute != nil && res.FillsInserted > 0 {
		c.transition(StateRecomputing)
		if err := c.recompute.Recompute(ctx); err != nil {
			return c.finish(res, started, fmt.Errorf("pipeline: recompute derived state: %w", err))
		}
	}

	return c.finish(res, started, nil)
}

// RunLoop runs sync cycles on a fixed interval until the context ends. An
// individual failed run is logged and does not stop the loop.
func (c *Coordinator) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res := c.Run(ctx)
		if !res.OK {
			c.logger.Error("sync run failed", slog.Any("errors", res.Errors))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Backfill seeds an empty database: it scans backward from the chain head
// until it has a target number of logs, stores the resulting fills, and
// leaves the cursor at the head so incremental runs continue forward.
func (c *Coordinator) Backfill(ctx context.Context) SyncResult {
	started := time.Now()
	var res SyncResult

	unlock, err := c.locks.Acquire(ctx, "sync:"+c.cfg.CursorKey, c.cfg.LockTTL)
	if err != nil {
		return c.finish(res, started, fmt.Errorf("pipeline: acquire sync lock: %w", err))
	}
	defer unlock()

	c.transition(StateScanningMarkets)
	marketsUpserted, tokens, err := c.markets.Run(ctx)
	if err != nil {
		return c.finish(res, started, err)
	}
	res.MarketsUpserted = marketsUpserted

	c.transition(StateScanningFills)
	head, err := c.blocks.BlockNumber(ctx)
	if err != nil {
		return c.finish(res, started, fmt.Errorf("pipeline: fetch chain head: %w", err))
	}

	maxBlocks := c.cfg.BootstrapBlocks
	if c.cfg.MaxScanBlocks > maxBlocks {
		maxBlocks = c.cfg.MaxScanBlocks
	}
	logs, err := c.scanner.ScanBackward(ctx, head, c.cfg.TargetLogCount, maxBlocks)
	if err != nil {
		return c.finish(res, started, err)
	}
	res.BlocksScanned = maxBlocks

	decoded := c.decoder.Decode(logs)
	for _, de := range decoded.Errors {
		res.DecodeErrors = append(res.DecodeErrors, fmt.Sprintf("decode log %d: %v", de.Index, de.Err))
	}
	enriched := c.enricher.Enrich(ctx, decoded.Trades)
	resolved := c.resolver.Resolve(enriched, tokens)
	fills := Normalize(resolved.Resolved)

	if len(fills) > 0 {
		inserted, err := c.fills.UpsertBatch(ctx, fills)
		if err != nil {
			return c.finish(res, started, fmt.Errorf("pipeline: store fills: %w", err))
		}
		res.FillsInserted = inserted
	}

	if err := c.state.Set(ctx, c.cfg.CursorKey, strconv.FormatUint(head, 10)); err != nil {
		return c.finish(res, started, fmt.Errorf("pipeline: advance cursor: %w", err))
	}
	res.LastBlock = head

	if c.recompute != nil && res.FillsInserted > 0 {
		c.transition(StateRecomputing)
		if err := c.recompute.Recompute(ctx); err != nil {
			return c.finish(res, started, fmt.Errorf("pipeline: recompute derived state: %w", err))
		}
	}
	return c.finish(res, started, nil)
}

func (c *Coordinator) syncFills(ctx context.Context, tokens domain.TokenMap, res *SyncResult) error {
	latest, err := c.blocks.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: fetch chain head: %w", err)
	}

	from, err := c.nextFrom(ctx, latest)
	if err != nil {
		return err
	}

	to := latest
	if c.cfg.MaxScanBlocks > 0 && to > from && to-from > c.cfg.MaxScanBlocks {
		to = from + c.cfg.MaxScanBlocks
	}
	if from > to {
		c.logger.Info("cursor at chain head, nothing to scan",
			slog.Uint64("cursor", from-1),
			slog.Uint64("head", latest))
		res.LastBlock = from - 1
		return nil
	}

	logs, err := c.scanner.ScanRange(ctx, from, to)
	if err != nil {
		return err
	}
	res.BlocksScanned = to - from + 1

	decoded := c.decoder.Decode(logs)
	for _, de := range decoded.Errors {
		res.DecodeErrors = append(res.DecodeErrors, fmt.Sprintf("decode log %d: %v", de.Index, de.Err))
	}

	enriched := c.enricher.Enrich(ctx, decoded.Trades)
	resolved := c.resolver.Resolve(enriched, tokens)
	fills := Normalize(resolved.Resolved)

	if len(fills) > 0 {
		inserted, err := c.fills.UpsertBatch(ctx, fills)
		if err != nil {
			return fmt.Errorf("pipeline: store fills: %w", err)
		}
		res.FillsInserted = inserted
	}

	// Unresolved trades stay behind the cursor on purpose: advancing past
	// them trades completeness for forward progress, matching the catalogue
	// being a rolling snapshot of active markets.
	if err := c.state.Set(ctx, c.cfg.CursorKey, strconv.FormatUint(to, 10)); err != nil {
		return fmt.Errorf("pipeline: advance cursor: %w", err)
	}
	res.LastBlock = to

	c.logger.Info("fill window synced",
		slog.Uint64("from", from),
		slog.Uint64("to", to),
		slog.Int("logs", len(logs)),
		slog.Int("fills", len(fills)),
		slog.Int("unresolved", len(resolved.Unresolved)),
		slog.Int64("inserted", res.FillsInserted))
	return nil
}

// nextFrom returns the first block to scan: cursor+1 when a cursor exists,
// otherwise a bootstrap window back from the chain head.
func (c *Coordinator) nextFrom(ctx context.Context, latest uint64) (uint64, error) {
	raw, err := c.state.Get(ctx, c.cfg.CursorKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			from := uint64(1)
			if latest > c.cfg.BootstrapBlocks {
				from = latest - c.cfg.BootstrapBlocks
			}
			c.logger.Info("no cursor, bootstrapping",
				slog.Uint64("from", from),
				slog.Uint64("head", latest))
			return from, nil
		}
		return 0, fmt.Errorf("pipeline: read cursor: %w", err)
	}

	cursor, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("pipeline: corrupt cursor %q: %w", raw, err)
	}
	return cursor + 1, nil
}

func (c *Coordinator) transition(s State) {
	c.logger.Info("state transition", slog.String("state", string(s)))
}

func (c *Coordinator) finish(res SyncResult, started time.Time, err error) SyncResult {
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
	}
	res.DurationMs = time.Since(started).Milliseconds()
	res.OK = len(res.Errors) == 0

	if len(res.DecodeErrors) > 0 {
		c.logger.Warn("malformed logs skipped",
			slog.Int("count", len(res.DecodeErrors)))
	}
	if res.OK {
		c.transition(StateDone)
	} else {
		c.transition(StateFailed)
	}
	c.logger.Info("sync run finished",
		slog.Bool("ok", res.OK),
		slog.Int64("fills_inserted", res.FillsInserted),
		slog.Uint64("last_block", res.LastBlock),
		slog.Int64("duration_ms", res.DurationMs))
	return res
}
