// Package pipeline contains the long-running maintenance jobs that run
// alongside the trading loop.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// TradeArchiver exports aged trade records to cold storage and prunes them.
type TradeArchiver interface {
	ArchiveTrades(ctx context.Context, cutoff time.Time) (int64, error)
}

// Archiver periodically moves trade records older than the retention window
// from PostgreSQL to object storage.
type Archiver struct {
	archiver      TradeArchiver
	retentionDays int
	interval      time.Duration
	logger        *slog.Logger
}

// NewArchiver creates an Archiver that runs every interval and archives
// records older than retentionDays.
func NewArchiver(archiver TradeArchiver, retentionDays int, interval time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		archiver:      archiver,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// Run executes a single archive run.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays))

	count, err := a.archiver.ArchiveTrades(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving trades before %v: %w", cutoff, err)
	}

	a.logger.Info("archive run complete", slog.Int64("trades_archived", count))
	return nil
}

// RunPeriodic runs archive passes on the configured interval until ctx is
// cancelled. A failed run is logged and retried on the next interval.
func (a *Archiver) RunPeriodic(ctx context.Context) error {
	a.logger.Info("archiver started", slog.Duration("interval", a.interval))
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return nil
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
