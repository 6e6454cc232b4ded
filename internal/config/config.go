// Package config defines the top-level configuration for the arbitrage bot
// and provides load/save and validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ARBOT_* environment variables.
type Config struct {
	Trading  TradingConfig          `toml:"trading"`
	Pairs    []PairConfig           `toml:"pairs"`
	Risk     RiskLimits             `toml:"risk_limits"`
	Venues   map[string]VenueConfig `toml:"venues"`
	Postgres PostgresConfig         `toml:"postgres"`
	Redis    RedisConfig            `toml:"redis"`
	Archive  ArchiveConfig          `toml:"archive"`
	Notify   NotifyConfig           `toml:"notify"`
	DataDir  string                 `toml:"data_dir"`
	Mode     string                 `toml:"mode"`
	LogLevel string                 `toml:"log_level"`
}

// TradingConfig holds global trading behaviour switches.
type TradingConfig struct {
	TradeAmountUSDT         float64 `toml:"trade_amount_usdt"`
	Enabled                 bool    `toml:"enabled"`
	AutoExecute             bool    `toml:"auto_execute"`
	RequireManualApproval   bool    `toml:"require_manual_approval"`
	MonitoringIntervalSecs  int     `toml:"monitoring_interval_seconds"`
	SettlementCurrency      string  `toml:"settlement_currency"`
	FillPollIntervalMillis  int     `toml:"fill_poll_interval_ms"`
	FillConfirmMaxAttempts  int     `toml:"fill_confirm_max_attempts"`
}

// PairConfig is one monitored trading pair and the venues it is scanned on.
type PairConfig struct {
	Pair    string   `toml:"pair"`
	Enabled bool     `toml:"enabled"`
	Venues  []string `toml:"venues"`
}

// RiskLimits is the named threshold set evaluated by the risk validator.
// It is loaded once per scan cycle and treated as read-only input.
type RiskLimits struct {
	MinSpreadPercentGross    float64 `toml:"min_spread_percent_gross"`
	MinSpreadPercentNet      float64 `toml:"min_spread_percent_net"`
	MinProfitUSD             float64 `toml:"min_profit_usd"`
	MaxPositionSizeUSD       float64 `toml:"max_position_size_usd"`
	MaxInventoryDriftPercent float64 `toml:"max_inventory_drift_percent"`
	MaxPerVenueDriftPercent  float64 `toml:"max_per_exchange_drift_percent"`
	SlippageBufferPercent    float64 `toml:"slippage_buffer_percent"`
	MaxFeeImpactPercent      float64 `toml:"max_fee_impact_percent"`
	MaxConcurrentTrades      int     `toml:"max_concurrent_trades"`
	MaxOpportunityAgeSecs    int     `toml:"max_opportunity_age_seconds"`
}

// VenueConfig holds per-venue API credentials. Either the raw key/secret
// pair or an encrypted credentials file (plus password) must be provided.
type VenueConfig struct {
	APIKey             string `toml:"api_key"`
	APISecret          string `toml:"api_secret"`
	EncryptedCredsPath string `toml:"encrypted_creds_path"`
	CredsPassword      string `toml:"creds_password"`
	Testnet            bool   `toml:"testnet"`
}

// PostgresConfig holds PostgreSQL connection parameters for trade history.
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

// RedisConfig holds Redis connection parameters for the fee and price caches.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ArchiveConfig holds trade-record archival parameters. When enabled, records
// older than RetentionDays are exported to object storage and pruned.
type ArchiveConfig struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"`
	IntervalHours  int    `toml:"interval_hours"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with the same defaults the bot ships
// with in config.example.toml. Trading starts disabled and manual-approval.
func Defaults() Config {
	return Config{
		Trading: TradingConfig{
			TradeAmountUSDT:        100.0,
			Enabled:                false,
			AutoExecute:            false,
			RequireManualApproval:  true,
			MonitoringIntervalSecs: 5,
			SettlementCurrency:     "USDT",
			FillPollIntervalMillis: 1000,
			FillConfirmMaxAttempts: 10,
		},
		Pairs: []PairConfig{},
		Risk: RiskLimits{
			MinSpreadPercentGross:    0.5,
			MinSpreadPercentNet:      0.3,
			MinProfitUSD:             5.0,
			MaxPositionSizeUSD:       500.0,
			MaxInventoryDriftPercent: 15.0,
			MaxPerVenueDriftPercent:  20.0,
			SlippageBufferPercent:    0.2,
			MaxFeeImpactPercent:      50.0,
			MaxConcurrentTrades:      3,
			MaxOpportunityAgeSecs:    10,
		},
		Venues: map[string]VenueConfig{},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbot",
			User:          "arbot",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		Archive: ArchiveConfig{
			Enabled:        false,
			Region:         "us-east-1",
			Bucket:         "arbot-data",
			ForcePathStyle: true,
			RetentionDays:  90,
			IntervalHours:  24,
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity", "execution", "failure", "rebalance"},
		},
		DataDir:  "data",
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// SupportedVenues enumerates the venue names a config may reference.
var SupportedVenues = map[string]bool{
	"binance": true,
	"kraken":  true,
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"monitor":   true,
	"scan":      true,
	"watch":     true,
	"positions": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for invalid or missing values and returns a combined
// error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, scan, watch, positions)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Trading
	if c.Trading.TradeAmountUSDT <= 0 {
		errs = append(errs, "trading: trade_amount_usdt must be > 0")
	}
	if c.Trading.MonitoringIntervalSecs < 1 {
		errs = append(errs, "trading: monitoring_interval_seconds must be >= 1")
	}
	if c.Trading.SettlementCurrency == "" {
		errs = append(errs, "trading: settlement_currency must not be empty")
	}

	// Every pair must parse, quote in the settlement currency, and
	// reference only configured, supported venues.
	settle := strings.ToUpper(c.Trading.SettlementCurrency)
	for i, pc := range c.Pairs {
		parts := strings.Split(pc.Pair, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			errs = append(errs, fmt.Sprintf("pairs[%d]: malformed pair %q", i, pc.Pair))
			continue
		}
		if strings.ToUpper(parts[1]) != settle {
			errs = append(errs, fmt.Sprintf("pairs[%d]: quote %q is not the settlement currency %s", i, parts[1], settle))
		}
		if len(pc.Venues) < 2 && pc.Enabled {
			errs = append(errs, fmt.Sprintf("pairs[%d]: enabled pair %s needs at least 2 venues", i, pc.Pair))
		}
		for _, v := range pc.Venues {
			if !SupportedVenues[strings.ToLower(v)] {
				errs = append(errs, fmt.Sprintf("pairs[%d]: unsupported venue %q", i, v))
			}
			if _, ok := c.Venues[strings.ToLower(v)]; !ok {
				errs = append(errs, fmt.Sprintf("pairs[%d]: venue %q has no credentials section", i, v))
			}
		}
	}

	// Venue credentials must come from exactly one source.
	for name, vc := range c.Venues {
		if !SupportedVenues[strings.ToLower(name)] {
			errs = append(errs, fmt.Sprintf("venues: unsupported venue %q", name))
		}
		raw := vc.APIKey != "" || vc.APISecret != ""
		enc := vc.EncryptedCredsPath != ""
		if !raw && !enc {
			errs = append(errs, fmt.Sprintf("venues.%s: either api_key/api_secret or encrypted_creds_path must be set", name))
		}
		if raw && (vc.APIKey == "" || vc.APISecret == "") {
			errs = append(errs, fmt.Sprintf("venues.%s: api_key and api_secret must be set together", name))
		}
		if enc && vc.CredsPassword == "" {
			errs = append(errs, fmt.Sprintf("venues.%s: creds_password is required when encrypted_creds_path is set", name))
		}
	}

	// Risk limits
	if c.Risk.MinSpreadPercentGross < 0 {
		errs = append(errs, "risk_limits: min_spread_percent_gross must be >= 0")
	}
	if c.Risk.MinSpreadPercentNet < 0 {
		errs = append(errs, "risk_limits: min_spread_percent_net must be >= 0")
	}
	if c.Risk.MaxPositionSizeUSD <= 0 {
		errs = append(errs, "risk_limits: max_position_size_usd must be > 0")
	}
	if c.Risk.MaxConcurrentTrades < 1 {
		errs = append(errs, "risk_limits: max_concurrent_trades must be >= 1")
	}
	if c.Risk.MaxOpportunityAgeSecs < 1 {
		errs = append(errs, "risk_limits: max_opportunity_age_seconds must be >= 1")
	}
	if c.Trading.TradeAmountUSDT > c.Risk.MaxPositionSizeUSD {
		errs = append(errs, fmt.Sprintf("trading: trade_amount_usdt %.2f exceeds risk_limits.max_position_size_usd %.2f",
			c.Trading.TradeAmountUSDT, c.Risk.MaxPositionSizeUSD))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Archive
	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			errs = append(errs, "archive: bucket must not be empty when enabled")
		}
		if c.Archive.Region == "" {
			errs = append(errs, "archive: region must not be empty when enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// DataDir
	if c.DataDir == "" {
		errs = append(errs, "data_dir must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
