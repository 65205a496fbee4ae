// Package config defines the top-level configuration for the polytrack
// indexer and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by POLYTRACK_* environment
// variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Gamma    GammaConfig    `toml:"gamma"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Sync     SyncConfig     `toml:"sync"`
	Scoring  ScoringConfig  `toml:"scoring"`
	Signals  SignalsConfig  `toml:"signals"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig holds the Polygon RPC endpoint and scan parameters.
type ChainConfig struct {
	RPCURL string `toml:"rpc_url"`
	// ExchangeAddresses are the CTF exchange contracts whose OrderFilled
	// logs are scanned.
	ExchangeAddresses []string `toml:"exchange_addresses"`
	// MaxRetries bounds each JSON-RPC call; backoff is exponential from
	// RetryBaseDelay, doubling per attempt.
	MaxRetries     int      `toml:"max_retries"`
	RetryBaseDelay duration `toml:"retry_base_delay"`
	// WindowBlocks is the block span of a single eth_getLogs query.
	WindowBlocks uint64 `toml:"window_blocks"`
	// MaxScanBlocks is the total block budget of one scan invocation.
	MaxScanBlocks uint64 `toml:"max_scan_blocks"`
	// TargetLogCount stops a backfill scan early once enough logs are
	// accumulated.
	TargetLogCount int `toml:"target_log_count"`
	// TxLookupParallel is the number of in-flight eth_getTransactionByHash
	// calls during origin enrichment.
	TxLookupParallel int `toml:"tx_lookup_parallel"`
	// RelayerAddresses are known relay contracts; fills originating from
	// them are excluded from the retail leaderboard view.
	RelayerAddresses []string `toml:"relayer_addresses"`
}

// GammaConfig holds the Polymarket Gamma API parameters.
type GammaConfig struct {
	Host     string `toml:"host"`
	PageSize int    `toml:"page_size"`
	MaxPages int    `toml:"max_pages"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	// TokenMapTTL bounds how long a cached catalogue snapshot is served.
	TokenMapTTL duration `toml:"token_map_ttl"`
	StreamMaxLen int     `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters for raw-fill
// cold archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// SyncConfig holds incremental-sync coordination parameters.
type SyncConfig struct {
	// CursorKey names the sync_state row carrying the fill high-water mark.
	CursorKey string `toml:"cursor_key"`
	// SafetyMargin skips the fill phase when a run has already consumed
	// this much time (serverless execution ceilings).
	SafetyMargin duration `toml:"safety_margin"`
	// BootstrapBlocks is how far behind head a first run starts when no
	// cursor exists yet.
	BootstrapBlocks uint64 `toml:"bootstrap_blocks"`
	// LockTTL bounds the distributed single-writer lock held per run.
	LockTTL duration `toml:"lock_ttl"`
	// Interval drives the run loop in long-lived modes.
	Interval duration `toml:"interval"`
}

// ScoringConfig holds the composite-score weights and tag thresholds.
// Weights should sum to 1; they are tunable parameters, not a frozen
// contract.
type ScoringConfig struct {
	WeightROI         float64 `toml:"weight_roi"`
	WeightWinRate     float64 `toml:"weight_win_rate"`
	WeightVolume      float64 `toml:"weight_volume"`
	WeightConsistency float64 `toml:"weight_consistency"`

	// MinTrades excludes addresses with too little history to score.
	MinTrades int `toml:"min_trades"`
	// NormVolumeUSDC is the volume at which the volume component saturates.
	NormVolumeUSDC float64 `toml:"norm_volume_usdc"`
	// NormROI is the ROI at which the ROI component saturates.
	NormROI float64 `toml:"norm_roi"`

	// Tag thresholds.
	WhaleVolumeUSDC   float64 `toml:"whale_volume_usdc"`
	HighROIThreshold  float64 `toml:"high_roi_threshold"`
	ConsistentWinRate float64 `toml:"consistent_win_rate"`
}

// SignalsConfig holds smart-money signal generation parameters.
type SignalsConfig struct {
	// WindowBlocks is the trailing window measured in blocks.
	WindowBlocks uint64 `toml:"window_blocks"`
	// MinNetUSDC is the minimum net buying pressure to emit a signal.
	MinNetUSDC float64 `toml:"min_net_usdc"`
	// BlocksPerHour converts read-path hour windows to block windows.
	BlocksPerHour uint64 `toml:"blocks_per_hour"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey protects mutating endpoints when set; empty disables auth.
	APIKey string `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "45s", "5m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Polymarket CTF exchange contracts on Polygon.
const (
	CTFExchangeAddress     = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	NegRiskExchangeAddress = "0xC5d563A36AE78145C45a50134d48A1215220f80a"
)

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:            "",
			ExchangeAddresses: []string{CTFExchangeAddress, NegRiskExchangeAddress},
			MaxRetries:        3,
			RetryBaseDelay:    duration{time.Second},
			WindowBlocks:      2000,
			MaxScanBlocks:     5000,
			TargetLogCount:    1000,
			TxLookupParallel:  5,
		},
		Gamma: GammaConfig{
			Host:     "https://gamma-api.polymarket.com",
			PageSize: 100,
			MaxPages: 50,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "polytrack",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			TokenMapTTL:  duration{10 * time.Minute},
			StreamMaxLen: 10000,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polytrack-data",
			ForcePathStyle: true,
		},
		Sync: SyncConfig{
			CursorKey:       "last_fill_block",
			SafetyMargin:    duration{45 * time.Second},
			BootstrapBlocks: 1000,
			LockTTL:         duration{2 * time.Minute},
			Interval:        duration{time.Minute},
		},
		Scoring: ScoringConfig{
			WeightROI:         0.35,
			WeightWinRate:     0.30,
			WeightVolume:      0.20,
			WeightConsistency: 0.15,
			MinTrades:         5,
			NormVolumeUSDC:    100_000,
			NormROI:           2.0,
			WhaleVolumeUSDC:   10_000,
			HighROIThreshold:  0.5,
			ConsistentWinRate: 0.6,
		},
		Signals: SignalsConfig{
			// Polygon produces ~1800 blocks per hour; 24h trailing window.
			WindowBlocks:  43_200,
			MinNetUSDC:    200,
			BlocksPerHour: 1800,
		},
		Server: ServerConfig{
			Enabled: false,
			Port:    8080,
		},
		Mode:     "sync",
		LogLevel: "info",
	}
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Chain.RPCURL) == "" {
		problems = append(problems, "chain.rpc_url is required")
	}
	if len(c.Chain.ExchangeAddresses) == 0 {
		problems = append(problems, "chain.exchange_addresses must not be empty")
	}
	if c.Chain.MaxRetries < 1 {
		problems = append(problems, "chain.max_retries must be at least 1")
	}
	if c.Chain.WindowBlocks == 0 {
		problems = append(problems, "chain.window_blocks must be positive")
	}
	if c.Chain.WindowBlocks > c.Chain.MaxScanBlocks {
		problems = append(problems, "chain.window_blocks must not exceed chain.max_scan_blocks")
	}
	if c.Chain.TxLookupParallel < 1 {
		problems = append(problems, "chain.tx_lookup_parallel must be at least 1")
	}

	if strings.TrimSpace(c.Gamma.Host) == "" {
		problems = append(problems, "gamma.host is required")
	}

	if c.Postgres.DSN == "" && c.Postgres.Host == "" {
		problems = append(problems, "postgres.dsn or postgres.host is required")
	}

	if sum := c.Scoring.WeightROI + c.Scoring.WeightWinRate + c.Scoring.WeightVolume + c.Scoring.WeightConsistency; sum < 0.99 || sum > 1.01 {
		problems = append(problems, fmt.Sprintf("scoring weights must sum to 1, got %.3f", sum))
	}

	if c.Signals.WindowBlocks == 0 {
		problems = append(problems, "signals.window_blocks must be positive")
	}
	if c.Signals.BlocksPerHour == 0 {
		problems = append(problems, "signals.blocks_per_hour must be positive")
	}

	switch c.Mode {
	case "sync", "serve", "full", "backfill", "recompute":
	default:
		problems = append(problems, fmt.Sprintf("unknown mode %q", c.Mode))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
