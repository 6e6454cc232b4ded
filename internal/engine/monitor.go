package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cexarb/arbot/internal/config"
	"github.com/cexarb/arbot/internal/domain"
)

// OpportunityNotifier surfaces accepted opportunities that are not
// auto-executed, so an operator can act on them manually.
type OpportunityNotifier interface {
	OpportunityFound(ctx context.Context, opp domain.Opportunity) error
}

// Settings is the per-cycle view of the configuration the monitor needs.
// The source is consulted once per tick, so config changes take effect on
// the next cycle without restarting the loop.
type Settings struct {
	Pairs          []config.PairConfig
	TradeAmount    float64
	Limits         config.RiskLimits
	Interval       time.Duration
	TradingEnabled bool
	AutoExecute    bool
}

// Monitor drives the scan/validate/execute cycle on a fixed interval. It is
// the single driver of scans and executions: Start refuses to run twice,
// and a tick never overlaps an in-flight execution. Cancellation is honored
// only at the sleep boundary; an execution already under way runs to a
// terminal state even while the loop is shutting down.
type Monitor struct {
	source   func() Settings
	scanner  *Scanner
	executor *Executor
	drift    DriftSource
	notifier OpportunityNotifier
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// NewMonitor creates a Monitor. drift and notifier may be nil.
func NewMonitor(source func() Settings, scanner *Scanner, executor *Executor, drift DriftSource, notifier OpportunityNotifier, logger *slog.Logger) *Monitor {
	return &Monitor{
		source:   source,
		scanner:  scanner,
		executor: executor,
		drift:    drift,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "monitor")),
	}
}

// Running reports whether the loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Start runs the monitoring loop until ctx is cancelled or Stop is called.
// It returns domain.ErrMonitorRunning if the loop is already active.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return domain.ErrMonitorRunning
	}
	m.running = true
	m.stop = make(chan struct{})
	stop := m.stop
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	m.logger.Info("monitoring started")
	for {
		m.tick(ctx)

		interval := m.source().Interval
		if interval <= 0 {
			interval = 5 * time.Second
		}
		select {
		case <-ctx.Done():
			m.logger.Info("monitoring stopped", slog.String("reason", "context cancelled"))
			return nil
		case <-stop:
			m.logger.Info("monitoring stopped", slog.String("reason", "stop requested"))
			return nil
		case <-time.After(interval):
		}
	}
}

// Stop requests a graceful stop. It returns domain.ErrMonitorStopped when
// the loop is not running.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return domain.ErrMonitorStopped
	}
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
	return nil
}

// tick runs one scan cycle. Every failure inside a tick is logged and the
// loop continues on the next interval; only cancellation or an explicit
// stop ends the loop.
func (m *Monitor) tick(ctx context.Context) {
	settings := m.source()

	opps := m.scanner.Scan(ctx, settings.Pairs, settings.TradeAmount, settings.Limits, m.drift)
	if len(opps) == 0 {
		return
	}

	for _, opp := range opps {
		if settings.TradingEnabled && settings.AutoExecute {
			// The execution must reach a terminal state even if the
			// loop is cancelled mid-flight, so it runs detached from
			// the loop's cancellation.
			if _, err := m.executor.Execute(context.WithoutCancel(ctx), opp); err != nil {
				m.logger.Error("execution failed",
					slog.String("pair", opp.Pair.String()),
					slog.String("error", err.Error()))
			}
			continue
		}

		if m.notifier != nil {
			if err := m.notifier.OpportunityFound(ctx, opp); err != nil {
				m.logger.Warn("opportunity notification failed",
					slog.String("error", err.Error()))
			}
		} else {
			m.logger.Info("opportunity (manual approval required)",
				slog.String("pair", opp.Pair.String()),
				slog.String("buy_venue", opp.BuyVenue),
				slog.String("sell_venue", opp.SellVenue),
				slog.Float64("net_profit", opp.NetProfit))
		}
	}
}
