package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cexarb/arbot/internal/domain"
)

// Tracker owns the per-venue position snapshots: a baseline taken at
// initialization and the latest observed positions. Every mutation is
// persisted through the position store; a persistence failure degrades to
// in-memory-only operation for that cycle rather than failing the caller.
type Tracker struct {
	venues VenueSource
	store  domain.PositionStore
	quote  string
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	book domain.PositionBook
}

// NewTracker creates a Tracker. quote is the settlement currency whose value
// the drift calculation is based on.
func NewTracker(venues VenueSource, store domain.PositionStore, quote string, logger *slog.Logger) *Tracker {
	return &Tracker{
		venues: venues,
		store:  store,
		quote:  quote,
		logger: logger.With(slog.String("component", "positions")),
		now:    time.Now,
	}
}

// Load restores the last persisted position book. A missing snapshot is not
// an error; the tracker simply stays uninitialized until Initialize.
func (t *Tracker) Load(ctx context.Context) error {
	book, err := t.store.Load(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		t.logger.Info("no persisted positions, tracker uninitialized")
		return nil
	}
	if err != nil {
		return fmt.Errorf("engine: load positions: %w", err)
	}

	t.mu.Lock()
	t.book = book
	t.mu.Unlock()
	t.logger.Info("positions loaded",
		slog.Int("venues", len(book.InitialBalances)),
		slog.Time("last_updated", book.LastUpdated))
	return nil
}

// Initialized reports whether a baseline snapshot exists.
func (t *Tracker) Initialized() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.book.InitialBalances) > 0
}

// Initialize snapshots all venues' free balances as both the baseline and
// the current positions, then persists.
func (t *Tracker) Initialize(ctx context.Context) error {
	snapshot := t.snapshot(ctx)
	if len(snapshot) == 0 {
		return errors.New("engine: initialize positions: no venue balances available")
	}

	t.mu.Lock()
	t.book.InitialBalances = cloneAll(snapshot)
	t.book.CurrentPositions = snapshot
	t.book.LastUpdated = t.now()
	book := t.book
	t.mu.Unlock()

	t.persist(ctx, book)
	t.logger.Info("positions initialized", slog.Int("venues", len(snapshot)))
	return nil
}

// Refresh re-snapshots current positions only, leaving the baseline
// untouched, then persists.
func (t *Tracker) Refresh(ctx context.Context) error {
	snapshot := t.snapshot(ctx)
	if len(snapshot) == 0 {
		return errors.New("engine: refresh positions: no venue balances available")
	}

	t.mu.Lock()
	t.book.CurrentPositions = snapshot
	t.book.LastUpdated = t.now()
	book := t.book
	t.mu.Unlock()

	t.persist(ctx, book)
	return nil
}

// CalculateDrift refreshes current positions and computes the drift report
// against the baseline.
func (t *Tracker) CalculateDrift(ctx context.Context) (domain.DriftReport, error) {
	if !t.Initialized() {
		return domain.DriftReport{}, errors.New("engine: drift: positions not initialized")
	}
	if err := t.Refresh(ctx); err != nil {
		return domain.DriftReport{}, err
	}

	t.mu.Lock()
	book := t.book
	t.mu.Unlock()
	return ComputeDrift(book, t.quote), nil
}

// UpdateAfterTrade applies the exact deltas of one completed trade to the
// current positions and persists. This is an incremental update, consistent
// with what the next Refresh would observe: the buy venue loses the quote
// cost and gains the base quantity; the sell venue loses the base quantity
// and gains the quote revenue.
func (t *Tracker) UpdateAfterTrade(ctx context.Context, rec domain.TradeRecord) error {
	base := rec.Pair.Base
	quote := rec.Pair.Quote

	buyCost := rec.Quantity*rec.Buy.Price + rec.Buy.Fee
	sellRevenue := rec.Quantity*rec.Sell.Price - rec.Sell.Fee

	t.mu.Lock()
	if t.book.CurrentPositions == nil {
		t.book.CurrentPositions = make(map[string]domain.Holdings)
	}
	applyDelta(t.book.CurrentPositions, rec.Buy.Venue, quote, -buyCost)
	applyDelta(t.book.CurrentPositions, rec.Buy.Venue, base, rec.Quantity)
	applyDelta(t.book.CurrentPositions, rec.Sell.Venue, base, -rec.Quantity)
	applyDelta(t.book.CurrentPositions, rec.Sell.Venue, quote, sellRevenue)
	t.book.LastUpdated = t.now()
	book := t.book
	t.mu.Unlock()

	t.persist(ctx, book)
	return nil
}

// ResetBaseline copies current positions into the baseline, for use after a
// manual rebalancing, then persists.
func (t *Tracker) ResetBaseline(ctx context.Context) error {
	t.mu.Lock()
	if len(t.book.CurrentPositions) == 0 {
		t.mu.Unlock()
		return errors.New("engine: reset baseline: no current positions")
	}
	t.book.InitialBalances = cloneAll(t.book.CurrentPositions)
	t.book.LastUpdated = t.now()
	book := t.book
	t.mu.Unlock()

	t.persist(ctx, book)
	t.logger.Info("baseline reset")
	return nil
}

// Book returns a deep copy of the tracker's state.
func (t *Tracker) Book() domain.PositionBook {
	t.mu.Lock()
	defer t.mu.Unlock()
	return domain.PositionBook{
		InitialBalances:  cloneAll(t.book.InitialBalances),
		CurrentPositions: cloneAll(t.book.CurrentPositions),
		LastUpdated:      t.book.LastUpdated,
	}
}

// snapshot fetches free balances from every venue. A venue whose balance
// fetch fails is skipped for this snapshot, never aborting the rest.
func (t *Tracker) snapshot(ctx context.Context) map[string]domain.Holdings {
	out := make(map[string]domain.Holdings)
	for _, client := range t.venues.All() {
		balances, err := client.Balances(ctx)
		if err != nil {
			t.logger.Warn("balance fetch failed, venue skipped",
				slog.String("venue", client.Name()),
				slog.String("error", err.Error()))
			continue
		}
		holdings := make(domain.Holdings)
		for currency, b := range balances {
			if b.Free > 0 {
				holdings[currency] = b.Free
			}
		}
		out[client.Name()] = holdings
	}
	return out
}

// persist writes the book through the store, logging failures instead of
// surfacing them so persistence problems never break a trading cycle.
func (t *Tracker) persist(ctx context.Context, book domain.PositionBook) {
	if err := t.store.Save(ctx, book); err != nil {
		t.logger.Warn("position persist failed, in-memory state retained",
			slog.String("error", err.Error()))
	}
}

func applyDelta(positions map[string]domain.Holdings, venue, currency string, delta float64) {
	holdings, ok := positions[venue]
	if !ok {
		holdings = make(domain.Holdings)
		positions[venue] = holdings
	}
	next := holdings[currency] + delta
	if next > 0 {
		holdings[currency] = next
	} else {
		delete(holdings, currency)
	}
}

func cloneAll(positions map[string]domain.Holdings) map[string]domain.Holdings {
	out := make(map[string]domain.Holdings, len(positions))
	for venue, holdings := range positions {
		out[venue] = holdings.Clone()
	}
	return out
}

// Compile-time interface check.
var _ DriftSource = (*Tracker)(nil)
