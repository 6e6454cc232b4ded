package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
//
// A missing file is not an error: the defaults are returned so a fresh
// install can start and write its own config with Save.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}

	// Load .env if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// Save writes the config back to path as TOML, creating parent directories
// as needed. The write goes through a temp file and rename so a crash cannot
// leave a truncated config behind.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.toml")
	if err != nil {
		return fmt.Errorf("config: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := toml.NewEncoder(tmp)
	enc.Indent = ""
	if err := enc.Encode(cfg); err != nil {
		tmp.Close()
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: close temp: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("config: rename into place: %w", err)
	}
	return nil
}

// applyEnvOverrides reads well-known ARBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML.
func applyEnvOverrides(cfg *Config) {
	// ── Trading ──
	setFloat64(&cfg.Trading.TradeAmountUSDT, "ARBOT_TRADING_TRADE_AMOUNT_USDT")
	setBool(&cfg.Trading.Enabled, "ARBOT_TRADING_ENABLED")
	setBool(&cfg.Trading.AutoExecute, "ARBOT_TRADING_AUTO_EXECUTE")
	setBool(&cfg.Trading.RequireManualApproval, "ARBOT_TRADING_REQUIRE_MANUAL_APPROVAL")
	setInt(&cfg.Trading.MonitoringIntervalSecs, "ARBOT_TRADING_MONITORING_INTERVAL_SECONDS")
	setStr(&cfg.Trading.SettlementCurrency, "ARBOT_TRADING_SETTLEMENT_CURRENCY")

	// ── Risk limits ──
	setFloat64(&cfg.Risk.MinSpreadPercentGross, "ARBOT_RISK_MIN_SPREAD_PERCENT_GROSS")
	setFloat64(&cfg.Risk.MinSpreadPercentNet, "ARBOT_RISK_MIN_SPREAD_PERCENT_NET")
	setFloat64(&cfg.Risk.MinProfitUSD, "ARBOT_RISK_MIN_PROFIT_USD")
	setFloat64(&cfg.Risk.MaxPositionSizeUSD, "ARBOT_RISK_MAX_POSITION_SIZE_USD")
	setFloat64(&cfg.Risk.MaxInventoryDriftPercent, "ARBOT_RISK_MAX_INVENTORY_DRIFT_PERCENT")
	setFloat64(&cfg.Risk.MaxPerVenueDriftPercent, "ARBOT_RISK_MAX_PER_EXCHANGE_DRIFT_PERCENT")
	setFloat64(&cfg.Risk.MaxFeeImpactPercent, "ARBOT_RISK_MAX_FEE_IMPACT_PERCENT")
	setInt(&cfg.Risk.MaxConcurrentTrades, "ARBOT_RISK_MAX_CONCURRENT_TRADES")
	setInt(&cfg.Risk.MaxOpportunityAgeSecs, "ARBOT_RISK_MAX_OPPORTUNITY_AGE_SECONDS")

	// ── Venue credentials ──
	for _, name := range []string{"binance", "kraken"} {
		vc, ok := cfg.Venues[name]
		if !ok {
			vc = VenueConfig{}
		}
		before := vc
		prefix := "ARBOT_VENUE_" + strings.ToUpper(name) + "_"
		setStr(&vc.APIKey, prefix+"API_KEY")
		setStr(&vc.APISecret, prefix+"API_SECRET")
		setStr(&vc.EncryptedCredsPath, prefix+"ENCRYPTED_CREDS_PATH")
		setStr(&vc.CredsPassword, prefix+"CREDS_PASSWORD")
		setBool(&vc.Testnet, prefix+"TESTNET")
		if ok || vc != before {
			if cfg.Venues == nil {
				cfg.Venues = map[string]VenueConfig{}
			}
			cfg.Venues[name] = vc
		}
	}

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ARBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBOT_REDIS_TLS_ENABLED")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "ARBOT_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Endpoint, "ARBOT_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "ARBOT_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "ARBOT_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "ARBOT_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "ARBOT_ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.UseSSL, "ARBOT_ARCHIVE_USE_SSL")
	setBool(&cfg.Archive.ForcePathStyle, "ARBOT_ARCHIVE_FORCE_PATH_STYLE")
	setInt(&cfg.Archive.RetentionDays, "ARBOT_ARCHIVE_RETENTION_DAYS")
	setInt(&cfg.Archive.IntervalHours, "ARBOT_ARCHIVE_INTERVAL_HOURS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.DataDir, "ARBOT_DATA_DIR")
	setStr(&cfg.Mode, "ARBOT_MODE")
	setStr(&cfg.LogLevel, "ARBOT_LOG_LEVEL")
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

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
