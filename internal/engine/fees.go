package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cexarb/arbot/internal/domain"
)

const (
	// feeTTL bounds how long a fetched fee schedule is trusted.
	feeTTL = 24 * time.Hour

	// defaultMakerPct and defaultTakerPct are the conservative fallback
	// rates used when a venue's fee schedule cannot be fetched.
	defaultMakerPct = 0.1
	defaultTakerPct = 0.1
)

// FeeService resolves maker/taker rates per (venue, pair), caching fetched
// schedules in the fee cache with a TTL and keeping an in-process copy so a
// cache outage degrades to memory-only operation. It never fails: when both
// the cache and the venue are unavailable it falls back to default rates.
type FeeService struct {
	venues VenueSource
	cache  domain.FeeCache
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	local map[string]domain.FeeQuote
}

// NewFeeService creates a FeeService. cache may be nil, in which case only
// the in-process copy is used.
func NewFeeService(venues VenueSource, cache domain.FeeCache, logger *slog.Logger) *FeeService {
	return &FeeService{
		venues: venues,
		cache:  cache,
		logger: logger.With(slog.String("component", "fees")),
		now:    time.Now,
		local:  make(map[string]domain.FeeQuote),
	}
}

func feeLocalKey(venue string, pair domain.TradingPair) string {
	return venue + ":" + pair.String()
}

// GetFees returns the maker/taker rates for a venue and pair. Lookup order:
// fee cache, in-process copy, live venue fetch, default rates. Fetched
// schedules are written back to both caches; the defaults are never cached
// so a recovered venue is retried on the next call.
func (s *FeeService) GetFees(ctx context.Context, venue string, pair domain.TradingPair) domain.FeeRates {
	now := s.now()

	if s.cache != nil {
		quote, err := s.cache.Get(ctx, venue, pair)
		switch {
		case err == nil && !quote.Expired(now, feeTTL):
			return quote.Rates
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			s.logger.Warn("fee cache read failed",
				slog.String("venue", venue),
				slog.String("pair", pair.String()),
				slog.String("error", err.Error()))
		}
	}

	s.mu.Lock()
	quote, ok := s.local[feeLocalKey(venue, pair)]
	s.mu.Unlock()
	if ok && !quote.Expired(now, feeTTL) {
		return quote.Rates
	}

	rates, err := s.fetch(ctx, venue, pair)
	if err != nil {
		s.logger.Warn("fee fetch failed, using default rates",
			slog.String("venue", venue),
			slog.String("pair", pair.String()),
			slog.String("error", err.Error()))
		return domain.FeeRates{MakerPct: defaultMakerPct, TakerPct: defaultTakerPct}
	}
	return rates
}

// GetMakerFee returns the maker rate in percent.
func (s *FeeService) GetMakerFee(ctx context.Context, venue string, pair domain.TradingPair) float64 {
	return s.GetFees(ctx, venue, pair).MakerPct
}

// GetTakerFee returns the taker rate in percent.
func (s *FeeService) GetTakerFee(ctx context.Context, venue string, pair domain.TradingPair) float64 {
	return s.GetFees(ctx, venue, pair).TakerPct
}

// fetch queries the venue's fee schedule and writes it to both caches.
func (s *FeeService) fetch(ctx context.Context, venueName string, pair domain.TradingPair) (domain.FeeRates, error) {
	client, err := s.venues.Get(venueName)
	if err != nil {
		return domain.FeeRates{}, err
	}

	rates, err := client.TradingFees(ctx, pair)
	if err != nil {
		return domain.FeeRates{}, err
	}

	quote := domain.FeeQuote{
		Venue:     venueName,
		Pair:      pair,
		Rates:     rates,
		FetchedAt: s.now(),
	}

	s.mu.Lock()
	s.local[feeLocalKey(venueName, pair)] = quote
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Put(ctx, quote, feeTTL); err != nil {
			s.logger.Warn("fee cache write failed",
				slog.String("venue", venueName),
				slog.String("pair", pair.String()),
				slog.String("error", err.Error()))
		}
	}

	return rates, nil
}
