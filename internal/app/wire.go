package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	s3blob "github.com/cexarb/arbot/internal/blob/s3"
	"github.com/cexarb/arbot/internal/cache/redis"
	"github.com/cexarb/arbot/internal/config"
	"github.com/cexarb/arbot/internal/crypto"
	"github.com/cexarb/arbot/internal/domain"
	"github.com/cexarb/arbot/internal/notify"
	"github.com/cexarb/arbot/internal/pipeline"
	"github.com/cexarb/arbot/internal/store/file"
	"github.com/cexarb/arbot/internal/store/postgres"
	"github.com/cexarb/arbot/internal/venue"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Venues *venue.Registry

	// Stores
	TradeStore    domain.TradeStore
	PositionStore domain.PositionStore

	// Caches
	FeeCache   domain.FeeCache
	PriceCache domain.PriceCache
	Locks      *redis.LockManager

	// Maintenance
	Archiver *pipeline.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// needsPostgres reports whether the mode persists trade history.
func needsPostgres(mode string) bool {
	return mode == "monitor"
}

// needsRedis reports whether the mode uses the fee or price caches.
func needsRedis(mode string) bool {
	switch mode {
	case "monitor", "scan", "watch":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependencies from the configuration and
// returns them with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	mode := strings.ToLower(cfg.Mode)
	deps := &Dependencies{}

	// --- Venue clients ---
	deps.Venues = venue.NewRegistry()
	for name, vc := range cfg.Venues {
		name = strings.ToLower(name)
		creds, err := crypto.LoadCredentials(crypto.CredentialSource{
			APIKey:        vc.APIKey,
			APISecret:     vc.APISecret,
			EncryptedPath: vc.EncryptedCredsPath,
			Password:      vc.CredsPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: venue %s credentials: %w", name, err)
		}
		client, err := venue.New(name, creds, vc.Testnet, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: venue %s: %w", name, err)
		}
		deps.Venues.Add(client)
	}
	if deps.Venues.Len() == 0 {
		cleanup()
		return nil, nil, fmt.Errorf("wire: no venues configured")
	}

	// --- PostgreSQL trade history ---
	if needsPostgres(mode) {
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
		deps.TradeStore = postgres.NewTradeStore(pgClient.Pool())
	}

	// --- Redis caches ---
	if needsRedis(mode) {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			// The engine degrades to in-memory fee handling without
			// Redis, but a configured-and-unreachable cache is a
			// deployment problem worth failing on.
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.FeeCache = redis.NewFeeCache(redisClient)
		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.Locks = redis.NewLockManager(redisClient)
	}

	// --- Position snapshots ---
	deps.PositionStore = file.NewPositionStore(filepath.Join(cfg.DataDir, "positions.json"))

	// --- Trade record archival ---
	if cfg.Archive.Enabled && deps.TradeStore != nil {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		archiver := s3blob.NewTradeArchiver(s3blob.NewWriter(s3Client), deps.TradeStore)
		deps.Archiver = pipeline.NewArchiver(
			archiver,
			cfg.Archive.RetentionDays,
			time.Duration(cfg.Archive.IntervalHours)*time.Hour,
			logger,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
