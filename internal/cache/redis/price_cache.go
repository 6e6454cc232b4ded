package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cexarb/arbot/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each venue and
// pair's latest price is a hash at key "price:{venue}:{pair}" with fields
// "price" and "ts" (Unix nanosecond timestamp).
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(venue string, pair domain.TradingPair) string {
	return "price:" + venue + ":" + pair.String()
}

// SetPrice stores the latest observed trade price for a venue and pair.
func (pc *PriceCache) SetPrice(ctx context.Context, venue string, pair domain.TradingPair, price float64, ts time.Time) error {
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, priceKey(venue, pair), fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s %s: %w", venue, pair, err)
	}
	return nil
}

// GetPrice retrieves the latest price and its observation time. It returns
// domain.ErrNotFound when no price has been stored.
func (pc *PriceCache) GetPrice(ctx context.Context, venue string, pair domain.TradingPair) (float64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(venue, pair)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s %s: %w", venue, pair, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price %s %s: %w", venue, pair, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ts %s %s: %w", venue, pair, err)
	}

	return price, time.Unix(0, tsNano), nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
