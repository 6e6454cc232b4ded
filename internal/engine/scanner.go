package engine

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cexarb/arbot/internal/config"
	"github.com/cexarb/arbot/internal/domain"
)

// Scanner finds cross-venue arbitrage candidates for the configured pairs.
// Each scan fetches live prices, sizes the trade through the profit model,
// filters by minimum spread and profit, and passes survivors through the
// risk validator. Only validator-accepted opportunities are returned, in
// detection order; callers sort by profitability themselves if they care.
type Scanner struct {
	venues    VenueSource
	fees      *FeeService
	validator *Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewScanner creates a Scanner.
func NewScanner(venues VenueSource, fees *FeeService, validator *Validator, logger *slog.Logger) *Scanner {
	return &Scanner{
		venues:    venues,
		fees:      fees,
		validator: validator,
		logger:    logger.With(slog.String("component", "scanner")),
		now:       time.Now,
	}
}

// Scan evaluates every enabled pair and returns the accepted opportunities.
// Price fetch failures skip the affected venue for this tick; a pair with
// fewer than two usable prices is skipped entirely. The scan itself never
// fails.
func (s *Scanner) Scan(ctx context.Context, pairs []config.PairConfig, tradeAmount float64, limits config.RiskLimits, drift DriftSource) []domain.Opportunity {
	var out []domain.Opportunity
	for _, pc := range pairs {
		if !pc.Enabled || len(pc.Venues) < 2 {
			continue
		}
		pair, err := domain.ParsePair(pc.Pair)
		if err != nil {
			s.logger.Warn("skipping malformed pair",
				slog.String("pair", pc.Pair),
				slog.String("error", err.Error()))
			continue
		}
		if opp, ok := s.scanPair(ctx, pair, pc.Venues, tradeAmount, limits, drift); ok {
			out = append(out, opp)
		}
	}
	return out
}

// scanPair evaluates one pair across its venues.
func (s *Scanner) scanPair(ctx context.Context, pair domain.TradingPair, venueNames []string, tradeAmount float64, limits config.RiskLimits, drift DriftSource) (domain.Opportunity, bool) {
	prices := s.fetchPrices(ctx, pair, venueNames)
	if len(prices) < 2 {
		s.logger.Debug("insufficient prices",
			slog.String("pair", pair.String()),
			slog.Int("usable", len(prices)))
		return domain.Opportunity{}, false
	}

	buyVenue, sellVenue := selectVenues(prices)
	buyPrice := prices[buyVenue]
	sellPrice := prices[sellVenue]

	// Equal prices across all venues produce a zero spread; nothing to do.
	if sellPrice <= buyPrice {
		return domain.Opportunity{}, false
	}

	grossSpread := GrossSpreadPct(buyPrice, sellPrice)
	if grossSpread < limits.MinSpreadPercentGross {
		return domain.Opportunity{}, false
	}

	takerPct := s.fees.GetTakerFee(ctx, buyVenue, pair)
	makerPct := s.fees.GetMakerFee(ctx, sellVenue, pair)
	breakdown := ComputeProfit(buyPrice, sellPrice, tradeAmount, takerPct, makerPct)
	if breakdown.Quantity == 0 {
		return domain.Opportunity{}, false
	}
	if breakdown.NetProfit < limits.MinProfitUSD {
		return domain.Opportunity{}, false
	}

	opp := domain.Opportunity{
		ID:             uuid.NewString(),
		Pair:           pair,
		BuyVenue:       buyVenue,
		SellVenue:      sellVenue,
		BuyPrice:       buyPrice,
		SellPrice:      sellPrice,
		Quantity:       breakdown.Quantity,
		TradeAmount:    tradeAmount,
		GrossSpreadPct: grossSpread,
		GrossProfit:    breakdown.GrossProfit,
		BuyFee:         breakdown.BuyFee,
		SellFee:        breakdown.SellFee,
		NetProfit:      breakdown.NetProfit,
		ROIPct:         breakdown.ROIPct,
		DetectedAt:     s.now(),
	}

	accepted, reasons := s.validator.Validate(ctx, opp, limits, drift)
	if !accepted {
		s.logger.Info("opportunity rejected",
			slog.String("pair", pair.String()),
			slog.String("buy_venue", buyVenue),
			slog.String("sell_venue", sellVenue),
			slog.String("reasons", strings.Join(reasons, "; ")))
		return domain.Opportunity{}, false
	}

	s.logger.Info("opportunity accepted",
		slog.String("pair", pair.String()),
		slog.String("buy_venue", buyVenue),
		slog.String("sell_venue", sellVenue),
		slog.Float64("spread_pct", grossSpread),
		slog.Float64("net_profit", opp.NetProfit))
	return opp, true
}

// fetchPrices queries the latest trade price on every named venue. Failures
// and non-positive prices drop the venue for this tick without retrying.
func (s *Scanner) fetchPrices(ctx context.Context, pair domain.TradingPair, venueNames []string) map[string]float64 {
	prices := make(map[string]float64, len(venueNames))
	for _, name := range venueNames {
		name = strings.ToLower(name)
		client, err := s.venues.Get(name)
		if err != nil {
			s.logger.Warn("unknown venue in pair config", slog.String("venue", name))
			continue
		}
		price, err := client.LastPrice(ctx, pair)
		if err != nil {
			s.logger.Warn("price fetch failed",
				slog.String("venue", name),
				slog.String("pair", pair.String()),
				slog.String("error", err.Error()))
			continue
		}
		if price <= 0 {
			continue
		}
		prices[name] = price
	}
	return prices
}

// selectVenues picks the cheapest venue to buy on and the dearest to sell
// on. Ties are broken by lexical venue-name order: the iteration is over
// sorted names and only a strictly better price displaces the incumbent.
func selectVenues(prices map[string]float64) (buyVenue, sellVenue string) {
	names := make([]string, 0, len(prices))
	for name := range prices {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := prices[name]
		if buyVenue == "" || p < prices[buyVenue] {
			buyVenue = name
		}
		if sellVenue == "" || p > prices[sellVenue] {
			sellVenue = name
		}
	}
	return buyVenue, sellVenue
}
