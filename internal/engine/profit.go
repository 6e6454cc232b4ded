// Package engine implements the arbitrage core: the fee-aware profit model,
// the opportunity scanner, the risk validator, the position and drift
// tracker, the trade execution pipeline, and the monitoring loop that drives
// them.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cexarb/arbot/internal/domain"
)

// VenueSource provides lookup over the connected venue clients. Iteration
// via All and Names is ascending by venue name.
type VenueSource interface {
	Get(name string) (domain.VenueClient, error)
	All() []domain.VenueClient
	Names() []string
}

// ComputeProfit evaluates a candidate trade with the given prices, fee rates
// in percent, and trade amount in quote units. It is a pure function: the
// same inputs always produce the same breakdown.
//
// A non-positive buy price yields a zero-quantity breakdown, which callers
// treat as "no data" rather than an error.
func ComputeProfit(buyPrice, sellPrice, tradeAmount, takerPct, makerPct float64) domain.ProfitBreakdown {
	if buyPrice <= 0 {
		return domain.ProfitBreakdown{BuyPrice: buyPrice, SellPrice: sellPrice}
	}

	quantity := tradeAmount / buyPrice

	buyFee := tradeAmount * takerPct / 100
	buyCost := tradeAmount + buyFee

	sellGross := quantity * sellPrice
	sellFee := sellGross * makerPct / 100
	sellRevenue := sellGross - sellFee

	grossProfit := sellGross - tradeAmount
	netProfit := sellRevenue - buyCost

	var roiPct float64
	if buyCost > 0 {
		roiPct = netProfit / buyCost * 100
	}

	return domain.ProfitBreakdown{
		Quantity:    quantity,
		BuyPrice:    buyPrice,
		SellPrice:   sellPrice,
		BuyCost:     buyCost,
		SellRevenue: sellRevenue,
		BuyFee:      buyFee,
		SellFee:     sellFee,
		GrossProfit: grossProfit,
		TotalFees:   buyFee + sellFee,
		NetProfit:   netProfit,
		ROIPct:      roiPct,
	}
}

// GrossSpreadPct is the relative price difference between the sell and buy
// venues in percent. It returns 0 when buyPrice is non-positive.
func GrossSpreadPct(buyPrice, sellPrice float64) float64 {
	if buyPrice <= 0 {
		return 0
	}
	return (sellPrice - buyPrice) / buyPrice * 100
}

// Calculator computes profit breakdowns from live venue prices and cached
// fee rates. The scanner uses ComputeProfit directly with prices it already
// fetched; the Calculator exists for pre-execution re-validation, which must
// consult current prices rather than the candidate's snapshot.
type Calculator struct {
	venues VenueSource
	fees   *FeeService
	logger *slog.Logger
}

// NewCalculator creates a Calculator.
func NewCalculator(venues VenueSource, fees *FeeService, logger *slog.Logger) *Calculator {
	return &Calculator{
		venues: venues,
		fees:   fees,
		logger: logger.With(slog.String("component", "profit")),
	}
}

// Live fetches current prices on both venues and computes a fresh breakdown
// for the given trade amount.
func (c *Calculator) Live(ctx context.Context, pair domain.TradingPair, buyVenue, sellVenue string, tradeAmount float64) (domain.ProfitBreakdown, error) {
	buyClient, err := c.venues.Get(buyVenue)
	if err != nil {
		return domain.ProfitBreakdown{}, err
	}
	sellClient, err := c.venues.Get(sellVenue)
	if err != nil {
		return domain.ProfitBreakdown{}, err
	}

	buyPrice, err := buyClient.LastPrice(ctx, pair)
	if err != nil {
		return domain.ProfitBreakdown{}, fmt.Errorf("engine: price %s on %s: %w", pair, buyVenue, err)
	}
	sellPrice, err := sellClient.LastPrice(ctx, pair)
	if err != nil {
		return domain.ProfitBreakdown{}, fmt.Errorf("engine: price %s on %s: %w", pair, sellVenue, err)
	}

	buyFees := c.fees.GetFees(ctx, buyVenue, pair)
	sellFees := c.fees.GetFees(ctx, sellVenue, pair)

	return ComputeProfit(buyPrice, sellPrice, tradeAmount, buyFees.TakerPct, sellFees.MakerPct), nil
}
