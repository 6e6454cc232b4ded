package venue

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cexarb/arbot/internal/crypto"
	"github.com/cexarb/arbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubClient is a minimal VenueClient for registry tests.
type stubClient struct {
	name string
}

func (s *stubClient) Name() string { return s.name }

func (s *stubClient) LastPrice(context.Context, domain.TradingPair) (float64, error) {
	return 0, domain.ErrNoPrice
}

func (s *stubClient) Balances(context.Context) (map[string]domain.Balance, error) {
	return nil, nil
}

func (s *stubClient) PlaceMarketOrder(context.Context, domain.OrderSide, domain.TradingPair, float64) (domain.Order, error) {
	return domain.Order{}, domain.ErrOrderNotFilled
}

func (s *stubClient) Order(context.Context, string, domain.TradingPair) (domain.Order, error) {
	return domain.Order{}, domain.ErrNotFound
}

func (s *stubClient) TradingFees(context.Context, domain.TradingPair) (domain.FeeRates, error) {
	return domain.FeeRates{}, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Zero(t, r.Len())

	r.Add(&stubClient{name: "kraken"})
	r.Add(&stubClient{name: "binance"})
	assert.Equal(t, 2, r.Len())

	t.Run("get known", func(t *testing.T) {
		c, err := r.Get("binance")
		require.NoError(t, err)
		assert.Equal(t, "binance", c.Name())
	})

	t.Run("get unknown", func(t *testing.T) {
		_, err := r.Get("okx")
		require.ErrorIs(t, err, domain.ErrVenueUnknown)
	})

	t.Run("names sorted ascending", func(t *testing.T) {
		assert.Equal(t, []string{"binance", "kraken"}, r.Names())
	})

	t.Run("all sorted ascending", func(t *testing.T) {
		all := r.All()
		require.Len(t, all, 2)
		assert.Equal(t, "binance", all[0].Name())
		assert.Equal(t, "kraken", all[1].Name())
	})

	t.Run("add replaces same name", func(t *testing.T) {
		r.Add(&stubClient{name: "binance"})
		assert.Equal(t, 2, r.Len())
	})
}

func TestNew(t *testing.T) {
	creds := crypto.Credentials{APIKey: "k", APISecret: "s"}

	c, err := New("binance", creds, false, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "binance", c.Name())

	c, err = New("kraken", creds, false, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "kraken", c.Name())

	_, err = New("mtgox", creds, false, testLogger())
	require.ErrorIs(t, err, domain.ErrVenueUnknown)
}
