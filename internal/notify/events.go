package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/cexarb/arbot/internal/domain"
)

// Event types understood by the notifier filter. They mirror the values
// accepted in the notify.events config list.
const (
	EventOpportunity = "opportunity"
	EventExecution   = "execution"
	EventFailure     = "failure"
	EventRebalance   = "rebalance"
)

// OpportunityFound reports a profitable opportunity that passed risk checks.
func (n *Notifier) OpportunityFound(ctx context.Context, opp domain.Opportunity) error {
	title := fmt.Sprintf("Arbitrage opportunity: %s", opp.Pair)
	msg := fmt.Sprintf(
		"Buy %s @ %.8g, sell %s @ %.8g\nSpread: %.4f%%\nNet profit: %.2f %s (ROI %.4f%%)",
		opp.BuyVenue, opp.BuyPrice, opp.SellVenue, opp.SellPrice,
		opp.GrossSpreadPct, opp.NetProfit, opp.Pair.Quote, opp.ROIPct,
	)
	return n.Notify(ctx, EventOpportunity, title, msg)
}

// TradeExecuted reports a fully hedged completed trade.
func (n *Notifier) TradeExecuted(ctx context.Context, rec domain.TradeRecord) error {
	title := fmt.Sprintf("Trade executed: %s", rec.Symbol)
	msg := fmt.Sprintf(
		"Trade %s\nBought %.8g on %s @ %.8g (fee %.4f)\nSold %.8g on %s @ %.8g (fee %.4f)\nNet profit: %.2f (ROI %.4f%%)",
		rec.TradeID,
		rec.Quantity, rec.Buy.Venue, rec.Buy.Price, rec.Buy.Fee,
		rec.Quantity, rec.Sell.Venue, rec.Sell.Price, rec.Sell.Fee,
		rec.Profit.Net, rec.Profit.ROIPct,
	)
	return n.Notify(ctx, EventExecution, title, msg)
}

// TradeFailed reports a failed execution. When the buy leg filled but the
// sell leg did not, both legs are included so the operator can unwind the
// resulting one-sided position by hand.
func (n *Notifier) TradeFailed(ctx context.Context, tradeID string, opp domain.Opportunity, state domain.ExecState, cause error, buyOrder *domain.Order) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Trade %s failed at state %s\n", tradeID, state)
	fmt.Fprintf(&b, "Pair: %s, buy %s, sell %s\n", opp.Pair, opp.BuyVenue, opp.SellVenue)
	if cause != nil {
		fmt.Fprintf(&b, "Cause: %v\n", cause)
	}
	if buyOrder != nil && buyOrder.Filled > 0 {
		fmt.Fprintf(&b, "UNHEDGED POSITION: bought %.8g %s on %s @ %.8g (order %s); manual sell required",
			buyOrder.Filled, opp.Pair.Base, opp.BuyVenue, buyOrder.AveragePrice, buyOrder.ID)
	}
	return n.Notify(ctx, EventFailure, fmt.Sprintf("Trade failed: %s", opp.Pair), b.String())
}

// RebalanceNeeded reports inventory drift beyond the configured thresholds.
func (n *Notifier) RebalanceNeeded(ctx context.Context, report domain.DriftReport) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Overall drift: %.2f%%\n", report.OverallDriftPct)
	for venue, drift := range report.ByVenue {
		fmt.Fprintf(&b, "%s: %.2f%%\n", venue, drift)
	}
	for _, s := range report.Suggestions {
		fmt.Fprintf(&b, "- %s\n", s.Text)
	}
	return n.Notify(ctx, EventRebalance, "Rebalance needed", b.String())
}
