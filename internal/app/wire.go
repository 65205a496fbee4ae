package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/polytrack/polytrack/internal/analytics"
	s3blob "github.com/polytrack/polytrack/internal/blob/s3"
	"github.com/polytrack/polytrack/internal/cache/redis"
	"github.com/polytrack/polytrack/internal/config"
	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/notify"
	"github.com/polytrack/polytrack/internal/pipeline"
	"github.com/polytrack/polytrack/internal/platform/chain"
	"github.com/polytrack/polytrack/internal/platform/gamma"
	"github.com/polytrack/polytrack/internal/server"
	"github.com/polytrack/polytrack/internal/server/handler"
	"github.com/polytrack/polytrack/internal/server/ws"
	"github.com/polytrack/polytrack/internal/service"
	"github.com/polytrack/polytrack/internal/store/postgres"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	FillStore    domain.FillStore
	TraderStore  domain.TraderStatsStore
	SignalStore  domain.SignalStore
	MarketStore  domain.MarketStore
	SyncState    domain.SyncStateStore

	// Caches and coordination
	LockManager   domain.LockManager
	SignalBus     domain.SignalBus
	TokenMapCache domain.TokenMapCache

	// Chain access
	Chain *chain.Client

	// Services
	Sync      *service.SyncService
	Analytics *service.AnalyticsService
	Traders   *service.TraderService
	Signals   *service.SignalService

	// API
	Server *server.Server
	Hub    *ws.Hub

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.FillStore = postgres.NewFillStore(pool)
	deps.TraderStore = postgres.NewTraderStatsStore(pool)
	deps.SignalStore = postgres.NewSignalStore(pool)
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.SyncState = postgres.NewSyncStateStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient, int64(cfg.Redis.StreamMaxLen))
	deps.TokenMapCache = redis.NewTokenMapCache(redisClient, cfg.Redis.TokenMapTTL.Duration)

	// --- Object storage (optional) ---
	var archiver service.FillArchiver
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.FillStore)
	}

	// --- Chain and catalogue clients ---
	deps.Chain = chain.NewClient(chain.Config{
		RPCURL:     cfg.Chain.RPCURL,
		MaxRetries: cfg.Chain.MaxRetries,
		BaseDelay:  cfg.Chain.RetryBaseDelay.Duration,
	}, logger)
	gammaClient := gamma.NewClient(cfg.Gamma.Host)

	// --- Notifications ---
	deps.Notifier = buildNotifier(cfg, logger)
	announcer := notify.NewSignalAnnouncer(deps.Notifier)

	// --- Analytics ---
	deps.Analytics = service.NewAnalyticsService(
		deps.FillStore,
		deps.TraderStore,
		deps.SignalStore,
		deps.SignalBus,
		announcer,
		deps.Chain,
		analytics.ScoreConfig{
			WeightROI:         cfg.Scoring.WeightROI,
			WeightWinRate:     cfg.Scoring.WeightWinRate,
			WeightVolume:      cfg.Scoring.WeightVolume,
			WeightConsistency: cfg.Scoring.WeightConsistency,
			MinTrades:         cfg.Scoring.MinTrades,
			NormVolumeUSDC:    cfg.Scoring.NormVolumeUSDC,
			NormROI:           cfg.Scoring.NormROI,
			WhaleVolumeUSDC:   cfg.Scoring.WhaleVolumeUSDC,
			HighROIThreshold:  cfg.Scoring.HighROIThreshold,
			ConsistentWinRate: cfg.Scoring.ConsistentWinRate,
		},
		analytics.SignalConfig{
			WindowBlocks: cfg.Signals.WindowBlocks,
			MinNetUSDC:   cfg.Signals.MinNetUSDC,
		},
		cfg.Chain.RelayerAddresses,
		logger,
	)

	// --- Pipeline ---
	scanner := pipeline.NewScanner(
		deps.Chain,
		cfg.Chain.ExchangeAddresses,
		[]string{pipeline.OrderFilledTopic},
		cfg.Chain.WindowBlocks,
		logger,
	)
	decoder := pipeline.NewDecoder(logger)
	enricher := pipeline.NewEnricher(deps.Chain, cfg.Chain.TxLookupParallel, logger)
	resolver := pipeline.NewResolver(logger)
	marketSyncer := pipeline.NewMarketSyncer(
		gammaClient,
		deps.MarketStore,
		deps.TokenMapCache,
		cfg.Gamma.PageSize,
		cfg.Gamma.MaxPages,
		logger,
	)
	coordinator := pipeline.NewCoordinator(
		deps.Chain,
		scanner,
		decoder,
		enricher,
		resolver,
		marketSyncer,
		deps.Analytics,
		deps.FillStore,
		deps.SyncState,
		deps.LockManager,
		pipeline.CoordinatorConfig{
			CursorKey:       cfg.Sync.CursorKey,
			BootstrapBlocks: cfg.Sync.BootstrapBlocks,
			MaxScanBlocks:   cfg.Chain.MaxScanBlocks,
			SafetyMargin:    cfg.Sync.SafetyMargin.Duration,
			LockTTL:         cfg.Sync.LockTTL.Duration,
			TargetLogCount:  cfg.Chain.TargetLogCount,
		},
		logger,
	)

	deps.Sync = service.NewSyncService(coordinator, archiver, logger)
	deps.Traders = service.NewTraderService(deps.TraderStore, deps.FillStore, deps.SignalStore, deps.MarketStore, logger)
	deps.Signals = service.NewSignalService(deps.SignalStore, deps.FillStore, cfg.Signals.BlocksPerHour, logger)

	// --- API server ---
	if cfg.Server.Enabled {
		deps.Hub = ws.NewHub(deps.SignalBus, cfg.Mode, logger)
		deps.Server = server.NewServer(
			server.Config{
				Port:        cfg.Server.Port,
				CORSOrigins: cfg.Server.CORSOrigins,
				APIKey:      cfg.Server.APIKey,
			},
			server.Handlers{
				Health:  handler.NewHealthHandler(deps.MarketStore, logger),
				Traders: handler.NewTraderHandler(deps.Traders, logger),
				Signals: handler.NewSignalHandler(deps.Signals, logger),
				Sync:    handler.NewSyncHandler(deps.Sync, logger),
			},
			deps.Hub,
			logger,
		)
	}

	return deps, cleanup, nil
}

func buildNotifier(cfg *config.Config, logger *slog.Logger) *notify.Notifier {
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	return notify.NewNotifier(senders, cfg.Notify.Events, logger)
}
