package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// SyncMode runs one incremental sync cycle and exits. Suited to cron-style
// scheduling where an external timer owns the cadence.
func (a *App) SyncMode(ctx context.Context, deps *Dependencies) error {
	res := deps.Sync.RunIncrementalSync(ctx)
	if !res.OK {
		return fmt.Errorf("app: sync run failed: %v", res.Errors)
	}
	a.logger.Info("sync complete",
		slog.Int64("fills_inserted", res.FillsInserted),
		slog.Uint64("last_block", res.LastBlock))
	return nil
}

// BackfillMode seeds an empty database from recent history and exits.
func (a *App) BackfillMode(ctx context.Context, deps *Dependencies) error {
	res := deps.Sync.RunBackfill(ctx)
	if !res.OK {
		return fmt.Errorf("app: backfill failed: %v", res.Errors)
	}
	a.logger.Info("backfill complete",
		slog.Int64("fills_inserted", res.FillsInserted),
		slog.Uint64("blocks_scanned", res.BlocksScanned))
	return nil
}

// RecomputeMode rebuilds all derived trader state from the stored fill
// ledger and exits. Useful after changing scoring parameters.
func (a *App) RecomputeMode(ctx context.Context, deps *Dependencies) error {
	if err := deps.Analytics.Recompute(ctx); err != nil {
		return fmt.Errorf("app: recompute: %w", err)
	}
	return nil
}

// ServeMode runs only the API server and WebSocket hub. Another process (or
// the sync mode on a schedule) is expected to keep the data fresh.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	if deps.Server == nil {
		return errors.New("app: serve mode requires server.enabled")
	}
	return a.runServer(ctx, deps, nil)
}

// FullMode runs the API server and the sync loop in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	if deps.Server == nil {
		return errors.New("app: full mode requires server.enabled")
	}

	interval := a.cfg.Sync.Interval.Duration
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return a.runServer(ctx, deps, func(gctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			res := deps.Sync.RunIncrementalSync(gctx)
			if !res.OK {
				a.logger.Error("scheduled sync failed", slog.Any("errors", res.Errors))
			}

			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
			}
		}
	})
}

// runServer starts the HTTP server, the hub, and an optional background
// loop, and blocks until the context ends or one of them fails.
func (a *App) runServer(ctx context.Context, deps *Dependencies, background func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Server.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return deps.Server.Shutdown(shutdownCtx)
	})

	if deps.Hub != nil {
		g.Go(func() error {
			err := deps.Hub.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if background != nil {
		g.Go(func() error {
			err := background(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
