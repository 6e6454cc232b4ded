package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
		require.NoError(t, err)
		assert.Equal(t, "monitor", cfg.Mode)
		assert.Equal(t, 100.0, cfg.Trading.TradeAmountUSDT)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte(`
mode = "scan"
log_level = "debug"

[trading]
trade_amount_usdt = 250.0
monitoring_interval_seconds = 30

[risk_limits]
min_profit_usd = 12.5

[[pairs]]
pair = "BTC/USDT"
enabled = true
venues = ["binance", "kraken"]
`), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "scan", cfg.Mode)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 250.0, cfg.Trading.TradeAmountUSDT)
		assert.Equal(t, 30, cfg.Trading.MonitoringIntervalSecs)
		assert.Equal(t, 12.5, cfg.Risk.MinProfitUSD)
		require.Len(t, cfg.Pairs, 1)
		assert.Equal(t, []string{"binance", "kraken"}, cfg.Pairs[0].Venues)

		// Untouched sections keep their defaults.
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	})

	t.Run("environment overrides file and defaults", func(t *testing.T) {
		t.Setenv("ARBOT_MODE", "watch")
		t.Setenv("ARBOT_TRADING_TRADE_AMOUNT_USDT", "75.5")
		t.Setenv("ARBOT_TRADING_ENABLED", "true")
		t.Setenv("ARBOT_RISK_MAX_CONCURRENT_TRADES", "7")
		t.Setenv("ARBOT_VENUE_BINANCE_API_KEY", "env-key")
		t.Setenv("ARBOT_VENUE_BINANCE_API_SECRET", "env-secret")
		t.Setenv("ARBOT_NOTIFY_EVENTS", "execution, failure")

		cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
		require.NoError(t, err)

		assert.Equal(t, "watch", cfg.Mode)
		assert.Equal(t, 75.5, cfg.Trading.TradeAmountUSDT)
		assert.True(t, cfg.Trading.Enabled)
		assert.Equal(t, 7, cfg.Risk.MaxConcurrentTrades)
		assert.Equal(t, "env-key", cfg.Venues["binance"].APIKey)
		assert.Equal(t, "env-secret", cfg.Venues["binance"].APISecret)
		assert.Equal(t, []string{"execution", "failure"}, cfg.Notify.Events)
	})

	t.Run("malformed toml fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte("mode = [broken"), 0o600))
		_, err := Load(path)
		require.Error(t, err)
	})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	cfg := Defaults()
	cfg.Mode = "positions"
	cfg.Trading.TradeAmountUSDT = 321.5
	cfg.Pairs = []PairConfig{{Pair: "ETH/USDT", Enabled: true, Venues: []string{"binance", "kraken"}}}
	cfg.Venues = map[string]VenueConfig{"binance": {APIKey: "k", APISecret: "s"}}

	require.NoError(t, Save(&cfg, path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "positions", got.Mode)
	assert.Equal(t, 321.5, got.Trading.TradeAmountUSDT)
	require.Len(t, got.Pairs, 1)
	assert.Equal(t, "ETH/USDT", got.Pairs[0].Pair)
	assert.Equal(t, "k", got.Venues["binance"].APIKey)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "config.toml", entries[0].Name())
}
