package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cexarb/arbot/internal/domain"
)

const (
	binanceStreamURL        = "wss://stream.binance.com:9443/stream"
	streamReadWait          = 90 * time.Second
	streamReconnectDelay    = 2 * time.Second
	streamMaxReconnectDelay = 60 * time.Second
)

// TickerStream subscribes to Binance trade streams for a set of pairs and
// writes every observed trade price into the price cache. It exists for
// watch mode; the scanner never reads from it.
type TickerStream struct {
	pairs  []domain.TradingPair
	cache  domain.PriceCache
	logger *slog.Logger

	// pairBySymbol resolves the exchange symbol in each message back to
	// the configured pair.
	pairBySymbol map[string]domain.TradingPair
}

// NewTickerStream creates a stream over the given pairs.
func NewTickerStream(pairs []domain.TradingPair, cache domain.PriceCache, logger *slog.Logger) *TickerStream {
	bySymbol := make(map[string]domain.TradingPair, len(pairs))
	for _, p := range pairs {
		bySymbol[binanceSymbol(p)] = p
	}
	return &TickerStream{
		pairs:        pairs,
		cache:        cache,
		logger:       logger.With(slog.String("component", "venue.stream")),
		pairBySymbol: bySymbol,
	}
}

// Run connects and consumes the combined stream until ctx is cancelled,
// reconnecting with exponential backoff on any read or dial failure.
func (s *TickerStream) Run(ctx context.Context) error {
	if len(s.pairs) == 0 {
		return fmt.Errorf("stream: no pairs configured")
	}

	streams := make([]string, 0, len(s.pairs))
	for _, p := range s.pairs {
		streams = append(streams, strings.ToLower(binanceSymbol(p))+"@trade")
	}
	wsURL := binanceStreamURL + "?streams=" + strings.Join(streams, "/")

	backoff := streamReconnectDelay
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		s.logger.Info("connecting", slog.String("url", binanceStreamURL), slog.Int("streams", len(streams)))
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			s.logger.Error("dial failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, streamMaxReconnectDelay)
			continue
		}
		backoff = streamReconnectDelay

		s.consume(ctx, conn)
		conn.Close()
	}
}

// consume reads messages until the connection breaks or ctx is cancelled.
func (s *TickerStream) consume(ctx context.Context, conn *websocket.Conn) {
	// Close the connection when ctx is cancelled so the blocked read
	// returns promptly.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(streamReadWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(10*time.Second))
	})

	for {
		conn.SetReadDeadline(time.Now().Add(streamReadWait))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("read failed, reconnecting", slog.String("error", err.Error()))
			}
			return
		}

		var msg struct {
			Stream string `json:"stream"`
			Data   struct {
				Symbol    string `json:"s"`
				Price     string `json:"p"`
				TradeTime int64  `json:"T"`
			} `json:"data"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			s.logger.Warn("unparseable message", slog.String("error", err.Error()))
			continue
		}

		pair, ok := s.pairBySymbol[strings.ToUpper(msg.Data.Symbol)]
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(msg.Data.Price, 64)
		if err != nil || price <= 0 {
			continue
		}

		ts := time.UnixMilli(msg.Data.TradeTime)
		if err := s.cache.SetPrice(ctx, "binance", pair, price, ts); err != nil {
			s.logger.Warn("price cache write failed",
				slog.String("pair", pair.String()),
				slog.String("error", err.Error()))
		}
	}
}
