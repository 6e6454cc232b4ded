package domain

import "time"

// Holdings maps currency -> free amount for one venue. Currencies with a
// zero or negative free balance are omitted rather than stored as zeroes.
type Holdings map[string]float64

// Clone returns a deep copy.
func (h Holdings) Clone() Holdings {
	out := make(Holdings, len(h))
	for c, v := range h {
		out[c] = v
	}
	return out
}

// PositionBook is the tracker's durable state: a baseline snapshot taken at
// initialization (or the last baseline reset) and the latest observed
// positions, both keyed by venue name.
type PositionBook struct {
	InitialBalances  map[string]Holdings `json:"initial_balances"`
	CurrentPositions map[string]Holdings `json:"current_positions"`
	LastUpdated      time.Time           `json:"last_updated"`
}

// RebalanceSuggestion is one human-readable rebalancing action for a venue
// whose drift exceeds the per-venue threshold.
type RebalanceSuggestion struct {
	Venue    string
	DriftPct float64
	// Surplus is positive when the venue holds more quote value than its
	// baseline (withdraw), negative when it holds less (deposit).
	Surplus float64
	Text    string
}

// DriftReport describes how far current positions have moved from the
// baseline. Values are quote-currency only; non-quote holdings are tracked
// per asset but intentionally excluded from the value sums.
type DriftReport struct {
	OverallDriftPct   float64
	ByVenue           map[string]float64
	ByAsset           map[string]float64
	NeedsRebalancing  bool
	Suggestions       []RebalanceSuggestion
	TotalValueCurrent float64
	TotalValueInitial float64
}
