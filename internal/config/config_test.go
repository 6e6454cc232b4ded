package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns Defaults plus the minimum trading setup that passes
// validation.
func validConfig() Config {
	cfg := Defaults()
	cfg.Venues = map[string]VenueConfig{
		"binance": {APIKey: "k", APISecret: "s"},
		"kraken":  {APIKey: "k", APISecret: "s"},
	}
	cfg.Pairs = []PairConfig{
		{Pair: "BTC/USDT", Enabled: true, Venues: []string{"binance", "kraken"}},
	}
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	// Trading ships disabled and manual approval on.
	assert.False(t, cfg.Trading.Enabled)
	assert.False(t, cfg.Trading.AutoExecute)
	assert.True(t, cfg.Trading.RequireManualApproval)
	assert.Equal(t, 100.0, cfg.Trading.TradeAmountUSDT)
	assert.Equal(t, 5, cfg.Trading.MonitoringIntervalSecs)
	assert.Equal(t, "USDT", cfg.Trading.SettlementCurrency)

	assert.Equal(t, 0.5, cfg.Risk.MinSpreadPercentGross)
	assert.Equal(t, 0.3, cfg.Risk.MinSpreadPercentNet)
	assert.Equal(t, 5.0, cfg.Risk.MinProfitUSD)
	assert.Equal(t, 500.0, cfg.Risk.MaxPositionSizeUSD)
	assert.Equal(t, 3, cfg.Risk.MaxConcurrentTrades)
	assert.Equal(t, 10, cfg.Risk.MaxOpportunityAgeSecs)

	assert.Equal(t, "monitor", cfg.Mode)
}

func TestValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := validConfig()
		require.NoError(t, cfg.Validate())
	})

	t.Run("defaults without venues still validate", func(t *testing.T) {
		cfg := Defaults()
		require.NoError(t, cfg.Validate())
	})

	t.Run("collects every failure", func(t *testing.T) {
		cfg := validConfig()
		cfg.Mode = "turbo"
		cfg.Trading.TradeAmountUSDT = 0
		cfg.Risk.MaxConcurrentTrades = 0
		cfg.Redis.Addr = ""

		err := cfg.Validate()
		require.Error(t, err)
		msg := err.Error()
		assert.Contains(t, msg, "unknown mode")
		assert.Contains(t, msg, "trade_amount_usdt")
		assert.Contains(t, msg, "max_concurrent_trades")
		assert.Contains(t, msg, "redis: addr")
		assert.GreaterOrEqual(t, strings.Count(msg, "\n"), 3)
	})

	t.Run("pair quote must match settlement currency", func(t *testing.T) {
		cfg := validConfig()
		cfg.Pairs = append(cfg.Pairs, PairConfig{
			Pair: "BTC/EUR", Enabled: true, Venues: []string{"binance", "kraken"},
		})
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "settlement currency")
	})

	t.Run("enabled pair needs two venues", func(t *testing.T) {
		cfg := validConfig()
		cfg.Pairs[0].Venues = []string{"binance"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 2 venues")
	})

	t.Run("pair referencing unconfigured venue", func(t *testing.T) {
		cfg := validConfig()
		delete(cfg.Venues, "kraken")
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no credentials section")
	})

	t.Run("unsupported venue", func(t *testing.T) {
		cfg := validConfig()
		cfg.Venues["mtgox"] = VenueConfig{APIKey: "k", APISecret: "s"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unsupported venue "mtgox"`)
	})

	t.Run("venue without any credential source", func(t *testing.T) {
		cfg := validConfig()
		cfg.Venues["binance"] = VenueConfig{}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api_key/api_secret or encrypted_creds_path")
	})

	t.Run("encrypted creds need a password", func(t *testing.T) {
		cfg := validConfig()
		cfg.Venues["binance"] = VenueConfig{EncryptedCredsPath: "/etc/arbot/binance.json"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "creds_password")
	})

	t.Run("trade amount above position size", func(t *testing.T) {
		cfg := validConfig()
		cfg.Trading.TradeAmountUSDT = 1000
		cfg.Risk.MaxPositionSizeUSD = 500
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds risk_limits.max_position_size_usd")
	})

	t.Run("dsn bypasses host checks", func(t *testing.T) {
		cfg := validConfig()
		cfg.Postgres.Host = ""
		cfg.Postgres.Port = 0
		cfg.Postgres.Database = ""
		cfg.Postgres.DSN = "postgres://arbot:pw@db:5432/arbot"
		require.NoError(t, cfg.Validate())
	})

	t.Run("archive checked only when enabled", func(t *testing.T) {
		cfg := validConfig()
		cfg.Archive.Enabled = true
		cfg.Archive.Bucket = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "archive: bucket")

		cfg.Archive.Enabled = false
		require.NoError(t, cfg.Validate())
	})
}
