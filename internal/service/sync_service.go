package service

import (
	"context"
	"log/slog"

	"github.com/polytrack/polytrack/internal/pipeline"
)

// FillArchiver snapshots the fill ledger to cold storage.
type FillArchiver interface {
	ArchiveFills(ctx context.Context) (int64, error)
}

// SyncService is the operational entry point around the pipeline
// coordinator: it runs sync cycles and optionally archives the ledger
// afterwards.
type SyncService struct {
	coordinator *pipeline.Coordinator
	archiver    FillArchiver
	logger      *slog.Logger
}

func NewSyncService(coordinator *pipeline.Coordinator, archiver FillArchiver, logger *slog.Logger) *SyncService {
	return &SyncService{
		coordinator: coordinator,
		archiver:    archiver,
		logger:      logger.With(slog.String("component", "sync_service")),
	}
}

// RunIncrementalSync runs one cursor-driven sync cycle.
func (s *SyncService) RunIncrementalSync(ctx context.Context) pipeline.SyncResult {
	res := s.coordinator.Run(ctx)
	s.maybeArchive(ctx, res)
	return res
}

// RunBackfill seeds an empty database from the most recent blocks.
func (s *SyncService) RunBackfill(ctx context.Context) pipeline.SyncResult {
	res := s.coordinator.Backfill(ctx)
	s.maybeArchive(ctx, res)
	return res
}

func (s *SyncService) maybeArchive(ctx context.Context, res pipeline.SyncResult) {
	if s.archiver == nil || res.FillsInserted == 0 {
		return
	}
	rows, err := s.archiver.ArchiveFills(ctx)
	if err != nil {
		s.logger.Warn("fill archive failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("fill ledger archived", slog.Int64("rows", rows))
}
