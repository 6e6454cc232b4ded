package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cexarb/arbot/internal/domain"
)

// FeeCache implements domain.FeeCache using Redis string keys with a TTL.
// Each quote is stored as JSON at "fee:{venue}:{pair}"; expiry is delegated
// to Redis so stale fee schedules fall out on their own.
type FeeCache struct {
	rdb *redis.Client
}

// NewFeeCache creates a FeeCache backed by the given Client.
func NewFeeCache(c *Client) *FeeCache {
	return &FeeCache{rdb: c.Underlying()}
}

func feeKey(venue string, pair domain.TradingPair) string {
	return "fee:" + venue + ":" + pair.String()
}

type feeQuoteJSON struct {
	MakerPct  float64   `json:"maker_pct"`
	TakerPct  float64   `json:"taker_pct"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Get returns the cached fee quote for a venue and pair. It returns
// domain.ErrNotFound on a miss or after Redis has expired the key.
func (fc *FeeCache) Get(ctx context.Context, venue string, pair domain.TradingPair) (domain.FeeQuote, error) {
	data, err := fc.rdb.Get(ctx, feeKey(venue, pair)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.FeeQuote{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.FeeQuote{}, fmt.Errorf("redis: get fee %s %s: %w", venue, pair, err)
	}

	var stored feeQuoteJSON
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.FeeQuote{}, fmt.Errorf("redis: parse fee %s %s: %w", venue, pair, err)
	}

	return domain.FeeQuote{
		Venue: venue,
		Pair:  pair,
		Rates: domain.FeeRates{
			MakerPct: stored.MakerPct,
			TakerPct: stored.TakerPct,
		},
		FetchedAt: stored.FetchedAt,
	}, nil
}

// Put stores a fee quote with the given TTL.
func (fc *FeeCache) Put(ctx context.Context, quote domain.FeeQuote, ttl time.Duration) error {
	data, err := json.Marshal(feeQuoteJSON{
		MakerPct:  quote.Rates.MakerPct,
		TakerPct:  quote.Rates.TakerPct,
		FetchedAt: quote.FetchedAt,
	})
	if err != nil {
		return fmt.Errorf("redis: marshal fee %s %s: %w", quote.Venue, quote.Pair, err)
	}
	if err := fc.rdb.Set(ctx, feeKey(quote.Venue, quote.Pair), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: put fee %s %s: %w", quote.Venue, quote.Pair, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.FeeCache = (*FeeCache)(nil)
