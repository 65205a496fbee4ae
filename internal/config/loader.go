package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYTRACK_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYTRACK_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "POLYTRACK_CHAIN_RPC_URL")
	setStr(&cfg.Chain.RPCURL, "RPC_URL") // compatibility alias
	setStringSlice(&cfg.Chain.ExchangeAddresses, "POLYTRACK_CHAIN_EXCHANGE_ADDRESSES")
	setInt(&cfg.Chain.MaxRetries, "POLYTRACK_CHAIN_MAX_RETRIES")
	setDuration(&cfg.Chain.RetryBaseDelay, "POLYTRACK_CHAIN_RETRY_BASE_DELAY")
	setUint64(&cfg.Chain.WindowBlocks, "POLYTRACK_CHAIN_WINDOW_BLOCKS")
	setUint64(&cfg.Chain.MaxScanBlocks, "POLYTRACK_CHAIN_MAX_SCAN_BLOCKS")
	setInt(&cfg.Chain.TargetLogCount, "POLYTRACK_CHAIN_TARGET_LOG_COUNT")
	setInt(&cfg.Chain.TxLookupParallel, "POLYTRACK_CHAIN_TX_LOOKUP_PARALLEL")
	setStringSlice(&cfg.Chain.RelayerAddresses, "POLYTRACK_CHAIN_RELAYER_ADDRESSES")

	// ── Gamma ──
	setStr(&cfg.Gamma.Host, "POLYTRACK_GAMMA_HOST")
	setInt(&cfg.Gamma.PageSize, "POLYTRACK_GAMMA_PAGE_SIZE")
	setInt(&cfg.Gamma.MaxPages, "POLYTRACK_GAMMA_MAX_PAGES")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POLYTRACK_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "POLYTRACK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYTRACK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYTRACK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYTRACK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYTRACK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYTRACK_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POLYTRACK_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POLYTRACK_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POLYTRACK_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYTRACK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYTRACK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYTRACK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYTRACK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYTRACK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYTRACK_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.TokenMapTTL, "POLYTRACK_REDIS_TOKEN_MAP_TTL")
	setInt(&cfg.Redis.StreamMaxLen, "POLYTRACK_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POLYTRACK_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POLYTRACK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYTRACK_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYTRACK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYTRACK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYTRACK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYTRACK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYTRACK_S3_FORCE_PATH_STYLE")

	// ── Sync ──
	setStr(&cfg.Sync.CursorKey, "POLYTRACK_SYNC_CURSOR_KEY")
	setDuration(&cfg.Sync.SafetyMargin, "POLYTRACK_SYNC_SAFETY_MARGIN")
	setUint64(&cfg.Sync.BootstrapBlocks, "POLYTRACK_SYNC_BOOTSTRAP_BLOCKS")
	setDuration(&cfg.Sync.LockTTL, "POLYTRACK_SYNC_LOCK_TTL")
	setDuration(&cfg.Sync.Interval, "POLYTRACK_SYNC_INTERVAL")

	// ── Scoring ──
	setFloat64(&cfg.Scoring.WeightROI, "POLYTRACK_SCORING_WEIGHT_ROI")
	setFloat64(&cfg.Scoring.WeightWinRate, "POLYTRACK_SCORING_WEIGHT_WIN_RATE")
	setFloat64(&cfg.Scoring.WeightVolume, "POLYTRACK_SCORING_WEIGHT_VOLUME")
	setFloat64(&cfg.Scoring.WeightConsistency, "POLYTRACK_SCORING_WEIGHT_CONSISTENCY")
	setInt(&cfg.Scoring.MinTrades, "POLYTRACK_SCORING_MIN_TRADES")
	setFloat64(&cfg.Scoring.NormVolumeUSDC, "POLYTRACK_SCORING_NORM_VOLUME_USDC")
	setFloat64(&cfg.Scoring.NormROI, "POLYTRACK_SCORING_NORM_ROI")
	setFloat64(&cfg.Scoring.WhaleVolumeUSDC, "POLYTRACK_SCORING_WHALE_VOLUME_USDC")
	setFloat64(&cfg.Scoring.HighROIThreshold, "POLYTRACK_SCORING_HIGH_ROI_THRESHOLD")
	setFloat64(&cfg.Scoring.ConsistentWinRate, "POLYTRACK_SCORING_CONSISTENT_WIN_RATE")

	// ── Signals ──
	setUint64(&cfg.Signals.WindowBlocks, "POLYTRACK_SIGNALS_WINDOW_BLOCKS")
	setFloat64(&cfg.Signals.MinNetUSDC, "POLYTRACK_SIGNALS_MIN_NET_USDC")
	setUint64(&cfg.Signals.BlocksPerHour, "POLYTRACK_SIGNALS_BLOCKS_PER_HOUR")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "POLYTRACK_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "POLYTRACK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYTRACK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "POLYTRACK_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYTRACK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYTRACK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYTRACK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYTRACK_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYTRACK_MODE")
	setStr(&cfg.LogLevel, "POLYTRACK_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				cleaned = append(cleaned, s)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
