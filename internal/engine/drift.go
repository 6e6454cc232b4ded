package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/cexarb/arbot/internal/domain"
)

// Rebalance thresholds local to the drift calculator. They are independent
// of, though normally aligned with, the risk limits the validator enforces.
const (
	rebalanceOverallPct  = 15.0
	rebalancePerVenuePct = 20.0
)

// ComputeDrift measures how far current positions have moved from the
// baseline. Venue values count only the quote currency; base-currency
// holdings are tracked per asset but intentionally excluded from the value
// sums, since valuing them would require a price conversion the tracker
// does not perform.
//
// Drift is scale-invariant: multiplying every balance by the same positive
// factor leaves all percentages unchanged.
func ComputeDrift(book domain.PositionBook, quote string) domain.DriftReport {
	report := domain.DriftReport{
		ByVenue: make(map[string]float64),
		ByAsset: make(map[string]float64),
	}

	// Per-venue quote-value drift.
	venues := make([]string, 0, len(book.InitialBalances))
	for venue := range book.InitialBalances {
		venues = append(venues, venue)
	}
	sort.Strings(venues)

	for _, venue := range venues {
		initialVal := book.InitialBalances[venue][quote]
		currentVal := book.CurrentPositions[venue][quote]

		report.TotalValueInitial += initialVal
		report.TotalValueCurrent += currentVal

		if initialVal <= 0 {
			continue
		}
		report.ByVenue[venue] = math.Abs(currentVal-initialVal) / initialVal * 100
	}

	if report.TotalValueInitial > 0 {
		report.OverallDriftPct = math.Abs(report.TotalValueCurrent-report.TotalValueInitial) /
			report.TotalValueInitial * 100
	}

	// Per-asset drift over totals summed across venues.
	initialByAsset := sumByAsset(book.InitialBalances)
	currentByAsset := sumByAsset(book.CurrentPositions)
	for asset, initialTotal := range initialByAsset {
		if initialTotal <= 0 {
			continue
		}
		report.ByAsset[asset] = math.Abs(currentByAsset[asset]-initialTotal) / initialTotal * 100
	}

	for _, pct := range report.ByVenue {
		if pct > rebalancePerVenuePct {
			report.NeedsRebalancing = true
		}
	}
	if report.OverallDriftPct > rebalanceOverallPct {
		report.NeedsRebalancing = true
	}

	if report.NeedsRebalancing {
		report.Suggestions = rebalanceSuggestions(book, report.ByVenue, quote)
	}

	return report
}

func sumByAsset(positions map[string]domain.Holdings) map[string]float64 {
	totals := make(map[string]float64)
	for _, holdings := range positions {
		for asset, amount := range holdings {
			totals[asset] += amount
		}
	}
	return totals
}

// rebalanceSuggestions produces one action per venue whose drift exceeds the
// per-venue threshold, ranked by drift magnitude descending.
func rebalanceSuggestions(book domain.PositionBook, byVenue map[string]float64, quote string) []domain.RebalanceSuggestion {
	var out []domain.RebalanceSuggestion
	for venue, pct := range byVenue {
		if pct <= rebalancePerVenuePct {
			continue
		}
		surplus := book.CurrentPositions[venue][quote] - book.InitialBalances[venue][quote]
		var text string
		if surplus >= 0 {
			text = fmt.Sprintf("withdraw %.2f %s from %s (%.2f%% over baseline)",
				surplus, quote, venue, pct)
		} else {
			text = fmt.Sprintf("deposit %.2f %s to %s (%.2f%% under baseline)",
				-surplus, quote, venue, pct)
		}
		out = append(out, domain.RebalanceSuggestion{
			Venue:    venue,
			DriftPct: pct,
			Surplus:  surplus,
			Text:     text,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DriftPct != out[j].DriftPct {
			return out[i].DriftPct > out[j].DriftPct
		}
		return out[i].Venue < out[j].Venue
	})
	return out
}
