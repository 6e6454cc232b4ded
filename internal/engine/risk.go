package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cexarb/arbot/internal/config"
	"github.com/cexarb/arbot/internal/domain"
)

// DriftSource supplies the current inventory drift report. The position
// tracker implements it; tests substitute fakes.
type DriftSource interface {
	CalculateDrift(ctx context.Context) (domain.DriftReport, error)
}

// Validator gates candidate opportunities behind the configured risk limits
// and owns the active-trade registry bounding concurrent executions.
type Validator struct {
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	active map[string]domain.ActiveTrade
}

// NewValidator creates a Validator with an empty active-trade registry.
func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{
		logger: logger.With(slog.String("component", "risk")),
		now:    time.Now,
		active: make(map[string]domain.ActiveTrade),
	}
}

// Validate runs five independent checks against the opportunity and returns
// whether it is accepted along with every failure reason found. The checks
// never short-circuit, so a rejection always carries the complete
// diagnostic.
//
// drift may be nil; the inventory-drift check is then skipped entirely. A
// drift source error is logged and swallowed so that drift infrastructure
// problems never block an otherwise-valid trade.
func (v *Validator) Validate(ctx context.Context, opp domain.Opportunity, limits config.RiskLimits, drift DriftSource) (bool, []string) {
	var reasons []string

	// 1. Spread, gross and net.
	grossSpread := GrossSpreadPct(opp.BuyPrice, opp.SellPrice)
	if grossSpread < limits.MinSpreadPercentGross {
		reasons = append(reasons, fmt.Sprintf(
			"gross spread %.4f%% below minimum %.4f%%", grossSpread, limits.MinSpreadPercentGross))
	}
	if opp.TradeAmount > 0 {
		netSpread := grossSpread - opp.TotalFees()/opp.TradeAmount*100
		if netSpread < limits.MinSpreadPercentNet {
			reasons = append(reasons, fmt.Sprintf(
				"net spread %.4f%% below minimum %.4f%%", netSpread, limits.MinSpreadPercentNet))
		}
	}

	// 2. Profit and fee impact. The fee-impact ratio is undefined when
	// gross profit is non-positive, so that part is skipped, not failed.
	if opp.NetProfit < limits.MinProfitUSD {
		reasons = append(reasons, fmt.Sprintf(
			"net profit %.2f below minimum %.2f", opp.NetProfit, limits.MinProfitUSD))
	}
	if opp.GrossProfit > 0 {
		feeImpact := opp.TotalFees() / opp.GrossProfit * 100
		if feeImpact > limits.MaxFeeImpactPercent {
			reasons = append(reasons, fmt.Sprintf(
				"fee impact %.2f%% above maximum %.2f%%", feeImpact, limits.MaxFeeImpactPercent))
		}
	}

	// 3. Position limits.
	if opp.TradeAmount > limits.MaxPositionSizeUSD {
		reasons = append(reasons, fmt.Sprintf(
			"trade amount %.2f above maximum position size %.2f", opp.TradeAmount, limits.MaxPositionSizeUSD))
	}
	if count := v.ActiveTradeCount(); count >= limits.MaxConcurrentTrades {
		reasons = append(reasons, fmt.Sprintf(
			"%d active trades at maximum %d", count, limits.MaxConcurrentTrades))
	}

	// 4. Inventory drift.
	if drift != nil {
		report, err := drift.CalculateDrift(ctx)
		if err != nil {
			v.logger.Warn("drift check skipped",
				slog.String("error", err.Error()))
		} else {
			if report.OverallDriftPct > limits.MaxInventoryDriftPercent {
				reasons = append(reasons, fmt.Sprintf(
					"overall drift %.2f%% above maximum %.2f%%",
					report.OverallDriftPct, limits.MaxInventoryDriftPercent))
			}
			for venue, pct := range report.ByVenue {
				if pct > limits.MaxPerVenueDriftPercent {
					reasons = append(reasons, fmt.Sprintf(
						"venue %s drift %.2f%% above maximum %.2f%%",
						venue, pct, limits.MaxPerVenueDriftPercent))
				}
			}
		}
	}

	// 5. Staleness.
	age := v.now().Sub(opp.DetectedAt)
	maxAge := time.Duration(limits.MaxOpportunityAgeSecs) * time.Second
	if age > maxAge {
		reasons = append(reasons, fmt.Sprintf(
			"opportunity age %.1fs above maximum %ds", age.Seconds(), limits.MaxOpportunityAgeSecs))
	}

	return len(reasons) == 0, reasons
}

// RegisterTrade adds a trade to the active registry. It fails when the ID is
// already registered.
func (v *Validator) RegisterTrade(tradeID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.active[tradeID]; ok {
		return fmt.Errorf("engine: trade %s already registered", tradeID)
	}
	v.active[tradeID] = domain.ActiveTrade{TradeID: tradeID, RegisteredAt: v.now()}
	return nil
}

// CompleteTrade removes a trade from the active registry. Removing an
// unknown ID is a no-op.
func (v *Validator) CompleteTrade(tradeID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.active, tradeID)
}

// ActiveTradeCount returns the number of registered in-flight trades.
func (v *Validator) ActiveTradeCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.active)
}
