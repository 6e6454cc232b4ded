package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cexarb/arbot/internal/config"
	"github.com/cexarb/arbot/internal/domain"
	"github.com/cexarb/arbot/internal/engine"
	"github.com/cexarb/arbot/internal/venue"
)

// engineDeps bundles the constructed engine components.
type engineDeps struct {
	fees      *engine.FeeService
	validator *engine.Validator
	calc      *engine.Calculator
	tracker   *engine.Tracker
	scanner   *engine.Scanner
	executor  *engine.Executor
}

// buildEngine constructs the engine components on top of the wired
// dependencies.
func (a *App) buildEngine(deps *Dependencies) *engineDeps {
	fees := engine.NewFeeService(deps.Venues, deps.FeeCache, a.logger)
	validator := engine.NewValidator(a.logger)
	calc := engine.NewCalculator(deps.Venues, fees, a.logger)
	tracker := engine.NewTracker(deps.Venues, deps.PositionStore, a.cfg.Trading.SettlementCurrency, a.logger)

	executor := engine.NewExecutor(deps.Venues, calc, validator, tracker, deps.TradeStore, deps.Notifier, a.logger)
	executor.SetFillPolling(
		time.Duration(a.cfg.Trading.FillPollIntervalMillis)*time.Millisecond,
		a.cfg.Trading.FillConfirmMaxAttempts,
	)

	return &engineDeps{
		fees:      fees,
		validator: validator,
		calc:      calc,
		tracker:   tracker,
		scanner:   engine.NewScanner(deps.Venues, fees, validator, a.logger),
		executor:  executor,
	}
}

// settings snapshots the per-cycle configuration view for the monitor.
func (a *App) settings() engine.Settings {
	return engine.Settings{
		Pairs:          a.cfg.Pairs,
		TradeAmount:    a.cfg.Trading.TradeAmountUSDT,
		Limits:         a.cfg.Risk,
		Interval:       time.Duration(a.cfg.Trading.MonitoringIntervalSecs) * time.Second,
		TradingEnabled: a.cfg.Trading.Enabled,
		AutoExecute:    a.cfg.Trading.AutoExecute && !a.cfg.Trading.RequireManualApproval,
	}
}

// loadTracker restores or takes the baseline position snapshot. A tracker
// that cannot come up is reported but does not block trading; the drift
// check is simply skipped until it recovers.
func (a *App) loadTracker(ctx context.Context, eng *engineDeps) engine.DriftSource {
	if err := eng.tracker.Load(ctx); err != nil {
		a.logger.Warn("position load failed, drift checks disabled",
			slog.String("error", err.Error()))
		return nil
	}
	if !eng.tracker.Initialized() {
		if err := eng.tracker.Initialize(ctx); err != nil {
			a.logger.Warn("position baseline unavailable, drift checks disabled",
				slog.String("error", err.Error()))
			return nil
		}
	}
	return eng.tracker
}

// MonitorMode runs the continuous scan/validate/execute loop, plus the trade
// archiver when configured.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode",
		slog.Bool("trading_enabled", a.cfg.Trading.Enabled),
		slog.Bool("auto_execute", a.cfg.Trading.AutoExecute))

	// Two processes trading the same accounts would double exposure, so
	// monitor mode is exclusive per deployment.
	if deps.Locks != nil {
		unlock, err := deps.Locks.Acquire(ctx, "monitor", 30*time.Second)
		if err != nil {
			return fmt.Errorf("app: monitor lock: %w", err)
		}
		defer unlock()
	}

	eng := a.buildEngine(deps)
	drift := a.loadTracker(ctx, eng)

	monitor := engine.NewMonitor(a.settings, eng.scanner, eng.executor, drift, deps.Notifier, a.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return monitor.Start(ctx) })
	if deps.Archiver != nil {
		g.Go(func() error { return deps.Archiver.RunPeriodic(ctx) })
	}
	return g.Wait()
}

// ScanMode runs a single scan cycle and reports what it found.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	eng := a.buildEngine(deps)
	drift := a.loadTracker(ctx, eng)

	s := a.settings()
	opps := eng.scanner.Scan(ctx, s.Pairs, s.TradeAmount, s.Limits, drift)
	if len(opps) == 0 {
		a.logger.Info("no opportunities found")
		return nil
	}

	for _, opp := range opps {
		a.logger.Info("opportunity",
			slog.String("pair", opp.Pair.String()),
			slog.String("buy_venue", opp.BuyVenue),
			slog.String("sell_venue", opp.SellVenue),
			slog.Float64("buy_price", opp.BuyPrice),
			slog.Float64("sell_price", opp.SellPrice),
			slog.Float64("spread_pct", opp.GrossSpreadPct),
			slog.Float64("net_profit", opp.NetProfit),
			slog.Float64("roi_pct", opp.ROIPct))
		if err := deps.Notifier.OpportunityFound(ctx, opp); err != nil {
			a.logger.Warn("opportunity notification failed",
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// WatchMode streams live trade prices into the price cache and reports the
// latest observations on the monitoring interval.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode")

	if deps.PriceCache == nil {
		return fmt.Errorf("app: watch mode requires the price cache")
	}

	pairs := enabledPairs(a.cfg.Pairs)
	if len(pairs) == 0 {
		return fmt.Errorf("app: watch mode requires at least one enabled pair")
	}

	stream := venue.NewTickerStream(pairs, deps.PriceCache, a.logger)
	interval := time.Duration(a.cfg.Trading.MonitoringIntervalSecs) * time.Second

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return stream.Run(ctx) })
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				a.reportPrices(ctx, deps, pairs)
			}
		}
	})
	return g.Wait()
}

// reportPrices logs the latest streamed price per pair.
func (a *App) reportPrices(ctx context.Context, deps *Dependencies, pairs []domain.TradingPair) {
	for _, pair := range pairs {
		price, ts, err := deps.PriceCache.GetPrice(ctx, "binance", pair)
		if err != nil {
			continue
		}
		a.logger.Info("price",
			slog.String("venue", "binance"),
			slog.String("pair", pair.String()),
			slog.Float64("price", price),
			slog.Duration("age", time.Since(ts).Round(time.Millisecond)))
	}
}

// PositionsMode snapshots positions, reports drift against the baseline, and
// raises a rebalance notification when thresholds are exceeded.
func (a *App) PositionsMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting positions mode")

	eng := a.buildEngine(deps)
	if drift := a.loadTracker(ctx, eng); drift == nil {
		return fmt.Errorf("app: positions mode requires venue balances")
	}

	report, err := eng.tracker.CalculateDrift(ctx)
	if err != nil {
		return fmt.Errorf("app: drift calculation: %w", err)
	}

	a.logger.Info("drift report",
		slog.Float64("overall_pct", report.OverallDriftPct),
		slog.Float64("total_value_initial", report.TotalValueInitial),
		slog.Float64("total_value_current", report.TotalValueCurrent),
		slog.Bool("needs_rebalancing", report.NeedsRebalancing))
	for venueName, pct := range report.ByVenue {
		a.logger.Info("venue drift", slog.String("venue", venueName), slog.Float64("drift_pct", pct))
	}
	for asset, pct := range report.ByAsset {
		a.logger.Info("asset drift", slog.String("asset", asset), slog.Float64("drift_pct", pct))
	}
	for _, s := range report.Suggestions {
		a.logger.Info("rebalance suggestion", slog.String("action", s.Text))
	}

	if report.NeedsRebalancing {
		if err := deps.Notifier.RebalanceNeeded(ctx, report); err != nil {
			a.logger.Warn("rebalance notification failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// enabledPairs parses the enabled configured pairs, dropping malformed ones.
func enabledPairs(pairs []config.PairConfig) []domain.TradingPair {
	var out []domain.TradingPair
	for _, pc := range pairs {
		if !pc.Enabled {
			continue
		}
		pair, err := domain.ParsePair(pc.Pair)
		if err != nil {
			continue
		}
		out = append(out, pair)
	}
	return out
}
