package domain

import "time"

// FeeQuote is a cached maker/taker fee rate for one (venue, pair).
type FeeQuote struct {
	Venue     string
	Pair      TradingPair
	Rates     FeeRates
	FetchedAt time.Time
}

// Expired reports whether the quote is older than ttl at the given time.
func (q FeeQuote) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(q.FetchedAt) > ttl
}
