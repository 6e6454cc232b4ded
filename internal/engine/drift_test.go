package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cexarb/arbot/internal/domain"
)

func balancedBook() domain.PositionBook {
	return domain.PositionBook{
		InitialBalances: map[string]domain.Holdings{
			"binance": {"USDT": 1000, "BTC": 0.5},
			"kraken":  {"USDT": 1000, "BTC": 0.5},
		},
		CurrentPositions: map[string]domain.Holdings{
			"binance": {"USDT": 1000, "BTC": 0.5},
			"kraken":  {"USDT": 1000, "BTC": 0.5},
		},
		LastUpdated: time.Now(),
	}
}

func TestComputeDrift(t *testing.T) {
	t.Run("no movement means no drift", func(t *testing.T) {
		report := ComputeDrift(balancedBook(), "USDT")

		assert.Zero(t, report.OverallDriftPct)
		assert.InDelta(t, 0, report.ByVenue["binance"], floatTolerance)
		assert.InDelta(t, 0, report.ByVenue["kraken"], floatTolerance)
		assert.False(t, report.NeedsRebalancing)
		assert.Empty(t, report.Suggestions)
	})

	t.Run("per venue and overall percentages", func(t *testing.T) {
		book := balancedBook()
		// 300 USDT moved from kraken to binance: 30% per venue, 0% overall.
		book.CurrentPositions["binance"]["USDT"] = 1300
		book.CurrentPositions["kraken"]["USDT"] = 700

		report := ComputeDrift(book, "USDT")

		assert.InDelta(t, 30.0, report.ByVenue["binance"], floatTolerance)
		assert.InDelta(t, 30.0, report.ByVenue["kraken"], floatTolerance)
		assert.InDelta(t, 0.0, report.OverallDriftPct, floatTolerance)
		assert.InDelta(t, 2000.0, report.TotalValueInitial, floatTolerance)
		assert.InDelta(t, 2000.0, report.TotalValueCurrent, floatTolerance)
		assert.True(t, report.NeedsRebalancing)
	})

	t.Run("overall drift from total value loss", func(t *testing.T) {
		book := balancedBook()
		book.CurrentPositions["binance"]["USDT"] = 600
		book.CurrentPositions["kraken"]["USDT"] = 1000

		report := ComputeDrift(book, "USDT")

		assert.InDelta(t, 20.0, report.OverallDriftPct, floatTolerance)
		assert.True(t, report.NeedsRebalancing)
	})

	t.Run("scale invariance", func(t *testing.T) {
		book := balancedBook()
		book.CurrentPositions["binance"]["USDT"] = 1300
		book.CurrentPositions["kraken"]["USDT"] = 700
		small := ComputeDrift(book, "USDT")

		scaled := balancedBook()
		for _, holdings := range scaled.InitialBalances {
			for asset := range holdings {
				holdings[asset] *= 1000
			}
		}
		scaled.CurrentPositions["binance"]["USDT"] = 1300 * 1000
		scaled.CurrentPositions["kraken"]["USDT"] = 700 * 1000
		scaled.CurrentPositions["binance"]["BTC"] = 0.5 * 1000
		scaled.CurrentPositions["kraken"]["BTC"] = 0.5 * 1000
		large := ComputeDrift(scaled, "USDT")

		assert.InDelta(t, small.OverallDriftPct, large.OverallDriftPct, floatTolerance)
		assert.InDelta(t, small.ByVenue["binance"], large.ByVenue["binance"], floatTolerance)
		assert.InDelta(t, small.ByVenue["kraken"], large.ByVenue["kraken"], floatTolerance)
	})

	t.Run("per asset drift sums across venues", func(t *testing.T) {
		book := balancedBook()
		// Total BTC goes from 1.0 to 0.8.
		book.CurrentPositions["binance"]["BTC"] = 0.4
		book.CurrentPositions["kraken"]["BTC"] = 0.4

		report := ComputeDrift(book, "USDT")
		assert.InDelta(t, 20.0, report.ByAsset["BTC"], floatTolerance)
		assert.InDelta(t, 0.0, report.ByAsset["USDT"], floatTolerance)
	})

	t.Run("zero baseline venue is excluded", func(t *testing.T) {
		book := balancedBook()
		book.InitialBalances["kraken"]["USDT"] = 0
		book.CurrentPositions["kraken"]["USDT"] = 500

		report := ComputeDrift(book, "USDT")
		_, ok := report.ByVenue["kraken"]
		assert.False(t, ok)
	})

	t.Run("suggestions ranked by drift descending", func(t *testing.T) {
		book := domain.PositionBook{
			InitialBalances: map[string]domain.Holdings{
				"binance": {"USDT": 1000},
				"kraken":  {"USDT": 1000},
			},
			CurrentPositions: map[string]domain.Holdings{
				"binance": {"USDT": 1700}, // 70% over
				"kraken":  {"USDT": 700},  // 30% under
			},
		}

		report := ComputeDrift(book, "USDT")
		require.Len(t, report.Suggestions, 2)

		first := report.Suggestions[0]
		assert.Equal(t, "binance", first.Venue)
		assert.InDelta(t, 70.0, first.DriftPct, floatTolerance)
		assert.Contains(t, first.Text, "withdraw 700.00 USDT from binance")

		second := report.Suggestions[1]
		assert.Equal(t, "kraken", second.Venue)
		assert.Contains(t, second.Text, "deposit 300.00 USDT to kraken")
	})

	t.Run("empty book", func(t *testing.T) {
		report := ComputeDrift(domain.PositionBook{}, "USDT")
		assert.Zero(t, report.OverallDriftPct)
		assert.False(t, report.NeedsRebalancing)
	})
}
