package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cexarb/arbot/internal/domain"
)

type captureSender struct {
	name     string
	err      error
	titles   []string
	messages []string
}

func (s *captureSender) Send(_ context.Context, title, message string) error {
	if s.err != nil {
		return s.err
	}
	s.titles = append(s.titles, title)
	s.messages = append(s.messages, message)
	return nil
}

func (s *captureSender) Name() string { return s.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierFiltering(t *testing.T) {
	ctx := context.Background()

	t.Run("allowed event is delivered", func(t *testing.T) {
		sender := &captureSender{name: "capture"}
		n := NewNotifier([]Sender{sender}, []string{EventExecution}, discardLogger())

		require.NoError(t, n.Notify(ctx, EventExecution, "title", "msg"))
		assert.Equal(t, []string{"title"}, sender.titles)
	})

	t.Run("filtered event is dropped silently", func(t *testing.T) {
		sender := &captureSender{name: "capture"}
		n := NewNotifier([]Sender{sender}, []string{EventExecution}, discardLogger())

		require.NoError(t, n.Notify(ctx, EventOpportunity, "title", "msg"))
		assert.Empty(t, sender.titles)
	})

	t.Run("empty event list allows everything", func(t *testing.T) {
		sender := &captureSender{name: "capture"}
		n := NewNotifier([]Sender{sender}, nil, discardLogger())

		require.NoError(t, n.Notify(ctx, EventOpportunity, "a", "1"))
		require.NoError(t, n.Notify(ctx, EventFailure, "b", "2"))
		assert.Len(t, sender.titles, 2)
	})

	t.Run("NotifyAll bypasses the filter", func(t *testing.T) {
		sender := &captureSender{name: "capture"}
		n := NewNotifier([]Sender{sender}, []string{EventExecution}, discardLogger())

		require.NoError(t, n.NotifyAll(ctx, "urgent", "msg"))
		assert.Equal(t, []string{"urgent"}, sender.titles)
	})

	t.Run("one failing sender does not block the rest", func(t *testing.T) {
		bad := &captureSender{name: "bad", err: errors.New("http 500")}
		good := &captureSender{name: "good"}
		n := NewNotifier([]Sender{bad, good}, nil, discardLogger())

		err := n.Notify(ctx, EventExecution, "title", "msg")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad")
		assert.Equal(t, []string{"title"}, good.titles)
	})

	t.Run("no senders is a no-op", func(t *testing.T) {
		n := NewNotifier(nil, nil, discardLogger())
		require.NoError(t, n.Notify(ctx, EventExecution, "title", "msg"))
	})
}

func TestTradeFailedMessage(t *testing.T) {
	ctx := context.Background()
	pair := domain.TradingPair{Base: "BTC", Quote: "USDT"}
	opp := domain.Opportunity{
		Pair:      pair,
		BuyVenue:  "binance",
		SellVenue: "kraken",
	}

	t.Run("unhedged buy leg is spelled out", func(t *testing.T) {
		sender := &captureSender{name: "capture"}
		n := NewNotifier([]Sender{sender}, nil, discardLogger())

		buy := &domain.Order{
			ID:           "buy-1",
			Filled:       0.025,
			AveragePrice: 40000,
		}
		require.NoError(t, n.TradeFailed(ctx, "t-1", opp, domain.ExecBuyConfirmed, errors.New("sell rejected"), buy))

		require.Len(t, sender.messages, 1)
		msg := sender.messages[0]
		assert.Contains(t, msg, "UNHEDGED POSITION")
		assert.Contains(t, msg, "0.025 BTC on binance")
		assert.Contains(t, msg, "order buy-1")
		assert.Contains(t, msg, "manual sell required")
		assert.Contains(t, msg, "sell rejected")
	})

	t.Run("clean reject has no unhedged warning", func(t *testing.T) {
		sender := &captureSender{name: "capture"}
		n := NewNotifier([]Sender{sender}, nil, discardLogger())

		require.NoError(t, n.TradeFailed(ctx, "t-2", opp, domain.ExecPending, errors.New("not profitable"), nil))

		require.Len(t, sender.messages, 1)
		assert.NotContains(t, sender.messages[0], "UNHEDGED")
		assert.Contains(t, sender.messages[0], "PENDING")
	})
}

func TestEventMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("opportunity", func(t *testing.T) {
		sender := &captureSender{name: "capture"}
		n := NewNotifier([]Sender{sender}, nil, discardLogger())

		opp := domain.Opportunity{
			Pair:           domain.TradingPair{Base: "BTC", Quote: "USDT"},
			BuyVenue:       "binance",
			SellVenue:      "kraken",
			BuyPrice:       40000,
			SellPrice:      40500,
			GrossSpreadPct: 1.25,
			NetProfit:      10.4875,
			ROIPct:         1.0477,
			DetectedAt:     time.Now(),
		}
		require.NoError(t, n.OpportunityFound(ctx, opp))
		require.Len(t, sender.messages, 1)
		assert.Contains(t, sender.messages[0], "binance")
		assert.Contains(t, sender.messages[0], "kraken")
		assert.Contains(t, sender.titles[0], "BTC/USDT")
	})

	t.Run("execution", func(t *testing.T) {
		sender := &captureSender{name: "capture"}
		n := NewNotifier([]Sender{sender}, nil, discardLogger())

		rec := domain.TradeRecord{
			TradeID:  "t-1",
			Symbol:   "BTC/USDT",
			Quantity: 0.025,
			Buy:      domain.TradeLeg{Venue: "binance", Price: 40000, Fee: 1},
			Sell:     domain.TradeLeg{Venue: "kraken", Price: 40500, Fee: 1.0125},
			Profit:   domain.TradeProfit{Net: 10.4875, ROIPct: 1.0477},
		}
		require.NoError(t, n.TradeExecuted(ctx, rec))
		require.Len(t, sender.messages, 1)
		assert.Contains(t, sender.messages[0], "t-1")
	})

	t.Run("rebalance", func(t *testing.T) {
		sender := &captureSender{name: "capture"}
		n := NewNotifier([]Sender{sender}, nil, discardLogger())

		report := domain.DriftReport{
			OverallDriftPct: 18.5,
			ByVenue:         map[string]float64{"binance": 25.0},
			Suggestions: []domain.RebalanceSuggestion{
				{Venue: "binance", DriftPct: 25.0, Text: "withdraw 500.00 USDT from binance (25.00% over baseline)"},
			},
		}
		require.NoError(t, n.RebalanceNeeded(ctx, report))
		require.Len(t, sender.messages, 1)
		assert.Contains(t, sender.messages[0], "withdraw 500.00 USDT from binance")
	})
}
