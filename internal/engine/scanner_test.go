package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cexarb/arbot/internal/config"
	"github.com/cexarb/arbot/internal/domain"
)

func newTestScanner(venues *fakeRegistry) *Scanner {
	fees := NewFeeService(venues, nil, testLogger())
	validator := NewValidator(testLogger())
	return NewScanner(venues, fees, validator, testLogger())
}

func btcPairConfig(venueNames ...string) []config.PairConfig {
	return []config.PairConfig{{Pair: "BTC/USDT", Enabled: true, Venues: venueNames}}
}

func TestScannerScan(t *testing.T) {
	ctx := context.Background()
	stdFees := domain.FeeRates{MakerPct: 0.1, TakerPct: 0.1}

	t.Run("buys cheapest and sells dearest", func(t *testing.T) {
		venues := newFakeRegistry(
			&fakeVenue{name: "binance", price: 40000, fees: stdFees},
			&fakeVenue{name: "kraken", price: 40500, fees: stdFees},
		)
		s := newTestScanner(venues)

		opps := s.Scan(ctx, btcPairConfig("binance", "kraken"), 1000, testLimits(), nil)
		require.Len(t, opps, 1)

		opp := opps[0]
		assert.Equal(t, "binance", opp.BuyVenue)
		assert.Equal(t, "kraken", opp.SellVenue)
		assert.InDelta(t, 40000, opp.BuyPrice, floatTolerance)
		assert.InDelta(t, 40500, opp.SellPrice, floatTolerance)
		assert.InDelta(t, 1.25, opp.GrossSpreadPct, floatTolerance)
		assert.InDelta(t, 10.4875, opp.NetProfit, floatTolerance)
		assert.NotEmpty(t, opp.ID)
		assert.WithinDuration(t, time.Now(), opp.DetectedAt, 5*time.Second)
	})

	t.Run("price ties resolve to the lexically first venue", func(t *testing.T) {
		venues := newFakeRegistry(
			&fakeVenue{name: "binance", price: 40000, fees: stdFees},
			&fakeVenue{name: "kraken", price: 40000, fees: stdFees},
		)
		s := newTestScanner(venues)

		// Both prices are equal so the scan finds nothing, but venue
		// selection must still be deterministic.
		buy, sell := selectVenues(map[string]float64{"kraken": 40000, "binance": 40000})
		assert.Equal(t, "binance", buy)
		assert.Equal(t, "binance", sell)

		opps := s.Scan(ctx, btcPairConfig("binance", "kraken"), 1000, testLimits(), nil)
		assert.Empty(t, opps)
	})

	t.Run("skips pair when fewer than two prices are usable", func(t *testing.T) {
		venues := newFakeRegistry(
			&fakeVenue{name: "binance", price: 40000, fees: stdFees},
			&fakeVenue{name: "kraken", priceErr: errors.New("timeout"), fees: stdFees},
		)
		s := newTestScanner(venues)

		opps := s.Scan(ctx, btcPairConfig("binance", "kraken"), 1000, testLimits(), nil)
		assert.Empty(t, opps)
	})

	t.Run("drops non-positive prices", func(t *testing.T) {
		venues := newFakeRegistry(
			&fakeVenue{name: "binance", price: 40000, fees: stdFees},
			&fakeVenue{name: "kraken", price: 0, fees: stdFees},
		)
		s := newTestScanner(venues)

		opps := s.Scan(ctx, btcPairConfig("binance", "kraken"), 1000, testLimits(), nil)
		assert.Empty(t, opps)
	})

	t.Run("filters spread below the gross minimum", func(t *testing.T) {
		venues := newFakeRegistry(
			&fakeVenue{name: "binance", price: 40000, fees: stdFees},
			&fakeVenue{name: "kraken", price: 40100, fees: stdFees}, // 0.25%
		)
		s := newTestScanner(venues)

		opps := s.Scan(ctx, btcPairConfig("binance", "kraken"), 1000, testLimits(), nil)
		assert.Empty(t, opps)
	})

	t.Run("filters net profit below the minimum", func(t *testing.T) {
		venues := newFakeRegistry(
			&fakeVenue{name: "binance", price: 40000, fees: stdFees},
			&fakeVenue{name: "kraken", price: 40500, fees: stdFees},
		)
		s := newTestScanner(venues)

		limits := testLimits()
		limits.MinProfitUSD = 50
		opps := s.Scan(ctx, btcPairConfig("binance", "kraken"), 1000, limits, nil)
		assert.Empty(t, opps)
	})

	t.Run("skips disabled and malformed pairs", func(t *testing.T) {
		venues := newFakeRegistry(
			&fakeVenue{name: "binance", price: 40000, fees: stdFees},
			&fakeVenue{name: "kraken", price: 40500, fees: stdFees},
		)
		s := newTestScanner(venues)

		pairs := []config.PairConfig{
			{Pair: "BTC/USDT", Enabled: false, Venues: []string{"binance", "kraken"}},
			{Pair: "BTCUSDT", Enabled: true, Venues: []string{"binance", "kraken"}},
			{Pair: "ETH/USDT", Enabled: true, Venues: []string{"binance"}},
		}
		opps := s.Scan(ctx, pairs, 1000, testLimits(), nil)
		assert.Empty(t, opps)
	})

	t.Run("validator rejection filters the candidate", func(t *testing.T) {
		venues := newFakeRegistry(
			&fakeVenue{name: "binance", price: 40000, fees: stdFees},
			&fakeVenue{name: "kraken", price: 40500, fees: stdFees},
		)
		s := newTestScanner(venues)
		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, s.validator.RegisterTrade(id))
		}

		opps := s.Scan(ctx, btcPairConfig("binance", "kraken"), 1000, testLimits(), nil)
		assert.Empty(t, opps)
	})

	t.Run("uses taker fee on the buy venue and maker on the sell venue", func(t *testing.T) {
		venues := newFakeRegistry(
			&fakeVenue{name: "binance", price: 40000, fees: domain.FeeRates{MakerPct: 0.02, TakerPct: 0.1}},
			&fakeVenue{name: "kraken", price: 40500, fees: domain.FeeRates{MakerPct: 0.16, TakerPct: 0.26}},
		)
		s := newTestScanner(venues)

		opps := s.Scan(ctx, btcPairConfig("binance", "kraken"), 1000, testLimits(), nil)
		require.Len(t, opps, 1)

		want := ComputeProfit(40000, 40500, 1000, 0.1, 0.16)
		assert.InDelta(t, want.NetProfit, opps[0].NetProfit, floatTolerance)
		assert.InDelta(t, want.BuyFee, opps[0].BuyFee, floatTolerance)
		assert.InDelta(t, want.SellFee, opps[0].SellFee, floatTolerance)
	})
}

func TestSelectVenues(t *testing.T) {
	tests := []struct {
		name     string
		prices   map[string]float64
		wantBuy  string
		wantSell string
	}{
		{
			name:     "distinct prices",
			prices:   map[string]float64{"binance": 40000, "kraken": 40500},
			wantBuy:  "binance",
			wantSell: "kraken",
		},
		{
			name:     "buy tie broken lexically",
			prices:   map[string]float64{"kraken": 100, "binance": 100, "zvenue": 105},
			wantBuy:  "binance",
			wantSell: "zvenue",
		},
		{
			name:     "sell tie broken lexically",
			prices:   map[string]float64{"avenue": 95, "kraken": 100, "binance": 100},
			wantBuy:  "avenue",
			wantSell: "binance",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buy, sell := selectVenues(tt.prices)
			assert.Equal(t, tt.wantBuy, buy)
			assert.Equal(t, tt.wantSell, sell)
		})
	}
}
