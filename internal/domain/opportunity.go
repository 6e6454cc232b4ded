package domain

import "time"

// Opportunity is a candidate cross-venue arbitrage detected by the scanner.
// It is a transient value object: created fresh each scan tick, never
// persisted, and rejected by the risk validator once it exceeds the
// configured maximum age.
type Opportunity struct {
	ID             string
	Pair           TradingPair
	BuyVenue       string
	SellVenue      string
	BuyPrice       float64
	SellPrice      float64
	Quantity       float64 // base units, TradeAmount / BuyPrice
	TradeAmount    float64 // quote units committed to the buy leg
	GrossSpreadPct float64
	GrossProfit    float64
	BuyFee         float64 // quote units
	SellFee        float64 // quote units
	NetProfit      float64
	ROIPct         float64
	DetectedAt     time.Time
}

// TotalFees returns the combined fee cost of both legs in quote units.
func (o Opportunity) TotalFees() float64 {
	return o.BuyFee + o.SellFee
}

// Age returns how long ago the opportunity was detected.
func (o Opportunity) Age(now time.Time) time.Duration {
	return now.Sub(o.DetectedAt)
}

// ProfitBreakdown is the output of the profit model for one candidate trade.
// Reconstructing NetProfit from the other fields always matches exactly:
// NetProfit = SellRevenue - BuyCost.
type ProfitBreakdown struct {
	Quantity    float64
	BuyPrice    float64
	SellPrice   float64
	BuyCost     float64 // trade amount plus buy fee, quote units
	SellRevenue float64 // gross sell proceeds minus sell fee, quote units
	BuyFee      float64
	SellFee     float64
	GrossProfit float64 // Quantity*SellPrice minus trade amount, before fees
	TotalFees   float64
	NetProfit   float64
	ROIPct      float64
}
