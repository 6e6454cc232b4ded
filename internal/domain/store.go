package domain

import (
	"context"
	"time"
)

// TradeStore persists completed trade records.
type TradeStore interface {
	Insert(ctx context.Context, rec TradeRecord) error
	GetByID(ctx context.Context, tradeID string) (TradeRecord, error)
	ListRecent(ctx context.Context, limit int) ([]TradeRecord, error)
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]TradeRecord, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	SumNetProfit(ctx context.Context, since time.Time) (float64, error)
}

// PositionStore persists the position tracker's snapshot generations.
// Load returns ErrNotFound when no snapshot has ever been saved; callers
// treat that as "uninitialized", not as a failure.
type PositionStore interface {
	Load(ctx context.Context) (PositionBook, error)
	Save(ctx context.Context, book PositionBook) error
}

// FeeCache persists fee quotes keyed by (venue, pair). Get returns
// ErrNotFound on a miss; implementations may expire entries themselves.
type FeeCache interface {
	Get(ctx context.Context, venue string, pair TradingPair) (FeeQuote, error)
	Put(ctx context.Context, quote FeeQuote, ttl time.Duration) error
}

// PriceCache stores the latest observed trade price per (venue, pair). It is
// fed by the streaming ticker feed and consulted by watch-mode reporting;
// the scanner always fetches live prices from venue clients directly.
type PriceCache interface {
	SetPrice(ctx context.Context, venue string, pair TradingPair, price float64, ts time.Time) error
	GetPrice(ctx context.Context, venue string, pair TradingPair) (float64, time.Time, error)
}
