package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cexarb/arbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeVenue is a scriptable domain.VenueClient.
type fakeVenue struct {
	name     string
	price    float64
	priceErr error

	balances    map[string]domain.Balance
	balancesErr error

	fees    domain.FeeRates
	feesErr error

	placeOrders []domain.Order // consumed in order by PlaceMarketOrder
	placeErr    error
	placed      []domain.Order // record of accepted placements

	orderStates map[string][]domain.Order // consumed in order by Order
	orderErr    error
}

func (f *fakeVenue) Name() string { return f.name }

func (f *fakeVenue) LastPrice(context.Context, domain.TradingPair) (float64, error) {
	if f.priceErr != nil {
		return 0, f.priceErr
	}
	return f.price, nil
}

func (f *fakeVenue) Balances(context.Context) (map[string]domain.Balance, error) {
	if f.balancesErr != nil {
		return nil, f.balancesErr
	}
	return f.balances, nil
}

func (f *fakeVenue) PlaceMarketOrder(_ context.Context, side domain.OrderSide, pair domain.TradingPair, quantity float64) (domain.Order, error) {
	if f.placeErr != nil {
		return domain.Order{}, f.placeErr
	}
	if len(f.placeOrders) == 0 {
		return domain.Order{}, errors.New("fakeVenue: no scripted order")
	}
	order := f.placeOrders[0]
	f.placeOrders = f.placeOrders[1:]
	order.Pair = pair
	order.Side = side
	if order.Quantity == 0 {
		order.Quantity = quantity
	}
	f.placed = append(f.placed, order)
	return order, nil
}

func (f *fakeVenue) Order(_ context.Context, id string, pair domain.TradingPair) (domain.Order, error) {
	if f.orderErr != nil {
		return domain.Order{}, f.orderErr
	}
	states := f.orderStates[id]
	if len(states) == 0 {
		return domain.Order{}, domain.ErrNotFound
	}
	order := states[0]
	if len(states) > 1 {
		f.orderStates[id] = states[1:]
	}
	order.ID = id
	order.Pair = pair
	return order, nil
}

func (f *fakeVenue) TradingFees(context.Context, domain.TradingPair) (domain.FeeRates, error) {
	if f.feesErr != nil {
		return domain.FeeRates{}, f.feesErr
	}
	return f.fees, nil
}

// fakeRegistry implements VenueSource over a fixed set of fake venues.
type fakeRegistry struct {
	venues map[string]domain.VenueClient
}

func newFakeRegistry(venues ...*fakeVenue) *fakeRegistry {
	r := &fakeRegistry{venues: make(map[string]domain.VenueClient)}
	for _, v := range venues {
		r.venues[v.name] = v
	}
	return r
}

func (r *fakeRegistry) Get(name string) (domain.VenueClient, error) {
	c, ok := r.venues[name]
	if !ok {
		return nil, domain.ErrVenueUnknown
	}
	return c, nil
}

func (r *fakeRegistry) Names() []string {
	names := make([]string, 0, len(r.venues))
	for name := range r.venues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *fakeRegistry) All() []domain.VenueClient {
	var out []domain.VenueClient
	for _, name := range r.Names() {
		out = append(out, r.venues[name])
	}
	return out
}

// memFeeCache is an in-memory domain.FeeCache.
type memFeeCache struct {
	mu     sync.Mutex
	quotes map[string]domain.FeeQuote
	getErr error
	putErr error
}

func newMemFeeCache() *memFeeCache {
	return &memFeeCache{quotes: make(map[string]domain.FeeQuote)}
}

func (c *memFeeCache) Get(_ context.Context, venue string, pair domain.TradingPair) (domain.FeeQuote, error) {
	if c.getErr != nil {
		return domain.FeeQuote{}, c.getErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.quotes[venue+":"+pair.String()]
	if !ok {
		return domain.FeeQuote{}, domain.ErrNotFound
	}
	return q, nil
}

func (c *memFeeCache) Put(_ context.Context, quote domain.FeeQuote, _ time.Duration) error {
	if c.putErr != nil {
		return c.putErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes[quote.Venue+":"+quote.Pair.String()] = quote
	return nil
}

// memPositionStore is an in-memory domain.PositionStore.
type memPositionStore struct {
	mu      sync.Mutex
	book    *domain.PositionBook
	saveErr error
	saves   int
}

func (s *memPositionStore) Load(context.Context) (domain.PositionBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.book == nil {
		return domain.PositionBook{}, domain.ErrNotFound
	}
	return *s.book, nil
}

func (s *memPositionStore) Save(_ context.Context, book domain.PositionBook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.book = &book
	return nil
}

// memTradeStore records inserted trade records.
type memTradeStore struct {
	mu        sync.Mutex
	inserted  []domain.TradeRecord
	insertErr error
}

func (s *memTradeStore) Insert(_ context.Context, rec domain.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, rec)
	return nil
}

func (s *memTradeStore) GetByID(context.Context, string) (domain.TradeRecord, error) {
	return domain.TradeRecord{}, domain.ErrNotFound
}

func (s *memTradeStore) ListRecent(context.Context, int) ([]domain.TradeRecord, error) {
	return nil, nil
}

func (s *memTradeStore) ListBefore(context.Context, time.Time, int) ([]domain.TradeRecord, error) {
	return nil, nil
}

func (s *memTradeStore) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (s *memTradeStore) SumNetProfit(context.Context, time.Time) (float64, error) {
	return 0, nil
}

// recordingNotifier captures execution notifications.
type recordingNotifier struct {
	mu       sync.Mutex
	executed []domain.TradeRecord
	failed   []failedNotification
}

type failedNotification struct {
	tradeID  string
	opp      domain.Opportunity
	state    domain.ExecState
	cause    error
	buyOrder *domain.Order
}

func (n *recordingNotifier) TradeExecuted(_ context.Context, rec domain.TradeRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.executed = append(n.executed, rec)
	return nil
}

func (n *recordingNotifier) TradeFailed(_ context.Context, tradeID string, opp domain.Opportunity, state domain.ExecState, cause error, buyOrder *domain.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, failedNotification{
		tradeID:  tradeID,
		opp:      opp,
		state:    state,
		cause:    cause,
		buyOrder: buyOrder,
	})
	return nil
}

// staticDrift is a DriftSource returning a fixed report or error.
type staticDrift struct {
	report domain.DriftReport
	err    error
}

func (d *staticDrift) CalculateDrift(context.Context) (domain.DriftReport, error) {
	return d.report, d.err
}

func mustPair(s string) domain.TradingPair {
	pair, err := domain.ParsePair(s)
	if err != nil {
		panic(err)
	}
	return pair
}
