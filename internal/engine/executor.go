package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cexarb/arbot/internal/domain"
)

const (
	defaultFillPollInterval = time.Second
	defaultFillPollAttempts = 10
)

// ExecutionNotifier receives execution outcomes. Notification calls are
// synchronous: the pipeline does not advance until each call returns, which
// keeps the audit trail ordered.
type ExecutionNotifier interface {
	TradeExecuted(ctx context.Context, rec domain.TradeRecord) error
	TradeFailed(ctx context.Context, tradeID string, opp domain.Opportunity, state domain.ExecState, cause error, buyOrder *domain.Order) error
}

// Executor runs the trade execution pipeline: a strictly sequential state
// machine that re-validates against live data, places the paired orders,
// confirms fills, and records the completed trade.
//
// A failure before any order is placed is a clean reject. A buy-leg failure
// leaves zero open legs. A sell-leg failure after the buy has filled leaves
// an un-hedged position; the pipeline never auto-reverses the buy, it
// surfaces the failure and relies on the position tracker's next refresh to
// reveal the inventory skew.
type Executor struct {
	venues   VenueSource
	calc     *Calculator
	validator *Validator
	tracker  *Tracker
	trades   domain.TradeStore
	notifier ExecutionNotifier
	logger   *slog.Logger
	now      func() time.Time

	pollInterval time.Duration
	pollAttempts int
}

// NewExecutor creates an Executor. tracker, trades, and notifier may be nil;
// the corresponding post-trade steps are then skipped.
func NewExecutor(venues VenueSource, calc *Calculator, validator *Validator, tracker *Tracker, trades domain.TradeStore, notifier ExecutionNotifier, logger *slog.Logger) *Executor {
	return &Executor{
		venues:       venues,
		calc:         calc,
		validator:    validator,
		tracker:      tracker,
		trades:       trades,
		notifier:     notifier,
		logger:       logger.With(slog.String("component", "executor")),
		now:          time.Now,
		pollInterval: defaultFillPollInterval,
		pollAttempts: defaultFillPollAttempts,
	}
}

// SetFillPolling overrides the fill confirmation poll interval and attempt
// count. Non-positive values keep the defaults.
func (e *Executor) SetFillPolling(interval time.Duration, attempts int) {
	if interval > 0 {
		e.pollInterval = interval
	}
	if attempts > 0 {
		e.pollAttempts = attempts
	}
}

// Execute runs one execution attempt for the opportunity. Every gate is
// evaluated against live data immediately before the next step. The attempt
// is registered with the risk validator for its whole duration so the
// concurrent-trade limit counts it.
func (e *Executor) Execute(ctx context.Context, opp domain.Opportunity) (domain.TradeRecord, error) {
	tradeID := uuid.NewString()
	if err := e.validator.RegisterTrade(tradeID); err != nil {
		return domain.TradeRecord{}, err
	}
	defer e.validator.CompleteTrade(tradeID)

	logger := e.logger.With(
		slog.String("trade_id", tradeID),
		slog.String("pair", opp.Pair.String()),
		slog.String("buy_venue", opp.BuyVenue),
		slog.String("sell_venue", opp.SellVenue))
	logger.Info("execution started")

	state := domain.ExecPending

	// Gate 1: the candidate must still look profitable on its own numbers.
	if opp.NetProfit <= 0 {
		return e.fail(ctx, logger, tradeID, opp, state,
			fmt.Errorf("net profit %.4f is not positive: %w", opp.NetProfit, domain.ErrNotProfitable), nil)
	}
	state = domain.ExecProfitChecked

	buyClient, err := e.venues.Get(opp.BuyVenue)
	if err != nil {
		return e.fail(ctx, logger, tradeID, opp, state, err, nil)
	}
	sellClient, err := e.venues.Get(opp.SellVenue)
	if err != nil {
		return e.fail(ctx, logger, tradeID, opp, state, err, nil)
	}

	// Gate 2: quote-currency balance on the buy venue.
	buyBalances, err := buyClient.Balances(ctx)
	if err != nil {
		return e.fail(ctx, logger, tradeID, opp, state,
			fmt.Errorf("buy venue balance fetch: %w", err), nil)
	}
	if free := buyBalances[opp.Pair.Quote].Free; free < opp.TradeAmount {
		return e.fail(ctx, logger, tradeID, opp, state,
			fmt.Errorf("buy venue %s has %.4f %s, need %.4f: %w",
				opp.BuyVenue, free, opp.Pair.Quote, opp.TradeAmount, domain.ErrInsufficient), nil)
	}
	state = domain.ExecBuyBalanceOK

	// Gate 3: base-currency balance on the sell venue.
	sellBalances, err := sellClient.Balances(ctx)
	if err != nil {
		return e.fail(ctx, logger, tradeID, opp, state,
			fmt.Errorf("sell venue balance fetch: %w", err), nil)
	}
	if free := sellBalances[opp.Pair.Base].Free; free < opp.Quantity {
		return e.fail(ctx, logger, tradeID, opp, state,
			fmt.Errorf("sell venue %s has %.8f %s, need %.8f: %w",
				opp.SellVenue, free, opp.Pair.Base, opp.Quantity, domain.ErrInsufficient), nil)
	}
	state = domain.ExecSellBalanceOK

	// Gate 4: recompute profit from current prices. This is the defense
	// against price movement between detection and execution.
	fresh, err := e.calc.Live(ctx, opp.Pair, opp.BuyVenue, opp.SellVenue, opp.TradeAmount)
	if err != nil {
		return e.fail(ctx, logger, tradeID, opp, state,
			fmt.Errorf("price revalidation: %w", err), nil)
	}
	if fresh.NetProfit <= 0 {
		return e.fail(ctx, logger, tradeID, opp, state,
			fmt.Errorf("revalidated net profit %.4f (was %.4f): %w",
				fresh.NetProfit, opp.NetProfit, domain.ErrNotProfitable), nil)
	}
	state = domain.ExecPriceRevalidated

	// Gate 5: buy leg.
	buyOrder, err := buyClient.PlaceMarketOrder(ctx, domain.OrderSideBuy, opp.Pair, opp.Quantity)
	if err != nil {
		return e.fail(ctx, logger, tradeID, opp, state,
			fmt.Errorf("buy placement: %w", err), nil)
	}
	state = domain.ExecBuyPlaced

	buyOrder, err = e.confirmFill(ctx, buyClient, buyOrder)
	if err != nil {
		return e.fail(ctx, logger, tradeID, opp, state,
			fmt.Errorf("buy confirmation: %w", err), nil)
	}
	state = domain.ExecBuyConfirmed
	logger.Info("buy leg filled",
		slog.Float64("filled", buyOrder.Filled),
		slog.Float64("avg_price", buyOrder.AveragePrice))

	// Gate 6: sell leg. From here on a failure leaves the filled buy as an
	// un-hedged position.
	sellOrder, err := sellClient.PlaceMarketOrder(ctx, domain.OrderSideSell, opp.Pair, opp.Quantity)
	if err != nil {
		return e.fail(ctx, logger, tradeID, opp, state,
			fmt.Errorf("sell placement: %w", err), &buyOrder)
	}
	state = domain.ExecSellPlaced

	sellOrder, err = e.confirmFill(ctx, sellClient, sellOrder)
	if err != nil {
		return e.fail(ctx, logger, tradeID, opp, state,
			fmt.Errorf("sell confirmation: %w", err), &buyOrder)
	}
	state = domain.ExecSellConfirmed
	logger.Info("sell leg filled",
		slog.Float64("filled", sellOrder.Filled),
		slog.Float64("avg_price", sellOrder.AveragePrice))

	// Realized profit comes from actual fills, not the estimates.
	rec := e.buildRecord(tradeID, opp, buyOrder, sellOrder)
	if e.trades != nil {
		if err := e.trades.Insert(ctx, rec); err != nil {
			logger.Warn("trade record persist failed",
				slog.String("error", err.Error()))
		}
	}
	state = domain.ExecRecorded

	if e.tracker != nil {
		if err := e.tracker.UpdateAfterTrade(ctx, rec); err != nil {
			logger.Warn("position update failed",
				slog.String("error", err.Error()))
		}
	}
	if e.notifier != nil {
		if err := e.notifier.TradeExecuted(ctx, rec); err != nil {
			logger.Warn("execution notification failed",
				slog.String("error", err.Error()))
		}
	}

	logger.Info("execution completed",
		slog.String("state", string(state)),
		slog.Float64("net_profit", rec.Profit.Net),
		slog.Float64("roi_pct", rec.Profit.ROIPct))
	return rec, nil
}

// confirmFill polls an order until it fills. Any non-filled terminal state,
// and exhausting the poll budget, is a hard failure; the pipeline never
// retries a leg.
func (e *Executor) confirmFill(ctx context.Context, client domain.VenueClient, order domain.Order) (domain.Order, error) {
	if order.Status == domain.OrderStatusFilled {
		return order, nil
	}
	for attempt := 0; attempt < e.pollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return order, ctx.Err()
		case <-time.After(e.pollInterval):
		}

		current, err := client.Order(ctx, order.ID, order.Pair)
		if err != nil {
			return order, fmt.Errorf("poll order %s: %w", order.ID, err)
		}
		order = current

		if order.Status == domain.OrderStatusFilled {
			return order, nil
		}
		if order.Status.Terminal() {
			return order, fmt.Errorf("order %s ended %s: %w", order.ID, order.Status, domain.ErrOrderNotFilled)
		}
	}
	return order, fmt.Errorf("order %s still %s after %d polls: %w",
		order.ID, order.Status, e.pollAttempts, domain.ErrOrderNotFilled)
}

// buildRecord assembles the immutable trade record from both confirmed legs.
func (e *Executor) buildRecord(tradeID string, opp domain.Opportunity, buy, sell domain.Order) domain.TradeRecord {
	quantity := buy.Filled

	buyCost := buy.Cost + buy.Fee
	sellRevenue := sell.Cost - sell.Fee
	gross := sell.Cost - buy.Cost
	net := sellRevenue - buyCost

	var roi float64
	if buyCost > 0 {
		roi = net / buyCost * 100
	}

	return domain.TradeRecord{
		TradeID:        tradeID,
		Timestamp:      e.now(),
		Pair:           opp.Pair,
		Symbol:         opp.Pair.String(),
		Quantity:       quantity,
		TradeAmountUSD: opp.TradeAmount,
		Buy: domain.TradeLeg{
			Venue:   opp.BuyVenue,
			Price:   buy.AveragePrice,
			Fee:     buy.Fee,
			OrderID: buy.ID,
		},
		Sell: domain.TradeLeg{
			Venue:   opp.SellVenue,
			Price:   sell.AveragePrice,
			Fee:     sell.Fee,
			OrderID: sell.ID,
		},
		Profit: domain.TradeProfit{
			Gross:  gross,
			Net:    net,
			ROIPct: roi,
		},
		Status: domain.TradeStatusCompleted,
	}
}

// fail notifies and returns the terminal error for a failed attempt.
// buyOrder is non-nil only when the buy leg already filled, so the
// notification can spell out the un-hedged position.
func (e *Executor) fail(ctx context.Context, logger *slog.Logger, tradeID string, opp domain.Opportunity, state domain.ExecState, cause error, buyOrder *domain.Order) (domain.TradeRecord, error) {
	logger.Error("execution failed",
		slog.String("state", string(state)),
		slog.String("error", cause.Error()),
		slog.Bool("unhedged", buyOrder != nil && buyOrder.Filled > 0))

	if e.notifier != nil {
		if err := e.notifier.TradeFailed(ctx, tradeID, opp, state, cause, buyOrder); err != nil {
			logger.Warn("failure notification failed",
				slog.String("error", err.Error()))
		}
	}

	if errors.Is(cause, context.Canceled) {
		return domain.TradeRecord{}, cause
	}
	return domain.TradeRecord{}, fmt.Errorf("engine: execution failed at %s: %w", state, cause)
}
