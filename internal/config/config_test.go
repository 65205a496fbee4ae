package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Chain.RPCURL = "https://polygon-rpc.example"
	return cfg
}

func TestDefaultsValidateRequiresRPCURL(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain.rpc_url")
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadWeights(t *testing.T) {
	cfg := validConfig()
	cfg.Scoring.WeightROI = 0.9
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scoring weights")
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "yolo"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateRejectsOversizedWindow(t *testing.T) {
	cfg := validConfig()
	cfg.Chain.WindowBlocks = 10_000
	cfg.Chain.MaxScanBlocks = 5_000
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window_blocks")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "serve"

[chain]
rpc_url = "https://polygon-rpc.example"
window_blocks = 500
retry_base_delay = "250ms"

[server]
enabled = true
port = 9090
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "serve", cfg.Mode)
	assert.Equal(t, uint64(500), cfg.Chain.WindowBlocks)
	assert.Equal(t, 250*time.Millisecond, cfg.Chain.RetryBaseDelay.Duration)
	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, 9090, cfg.Server.Port)

	// Untouched sections keep their defaults.
	assert.Equal(t, "last_fill_block", cfg.Sync.CursorKey)
	assert.Equal(t, 5, cfg.Scoring.MinTrades)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("POLYTRACK_CHAIN_RPC_URL", "https://override.example")
	t.Setenv("POLYTRACK_SYNC_BOOTSTRAP_BLOCKS", "777")
	t.Setenv("POLYTRACK_SERVER_API_KEY", "secret")
	t.Setenv("POLYTRACK_CHAIN_RELAYER_ADDRESSES", "0xaaa, 0xbbb")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://override.example", cfg.Chain.RPCURL)
	assert.Equal(t, uint64(777), cfg.Sync.BootstrapBlocks)
	assert.Equal(t, "secret", cfg.Server.APIKey)
	assert.Equal(t, []string{"0xaaa", "0xbbb"}, cfg.Chain.RelayerAddresses)
}

func TestLoadMissingFileIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
